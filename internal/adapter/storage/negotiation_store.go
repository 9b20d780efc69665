package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const negotiationColumns = `id, product_id, buyer_id, seller_id, quantity, list_price_cents, offer_price_cents,
	counter_price_cents, agreed_price_cents, status, message, version, created_at, updated_at`

func scanNegotiation(row scanner) (*domain.NegotiationRequest, error) {
	var n domain.NegotiationRequest
	err := row.Scan(&n.ID, &n.ProductID, &n.BuyerID, &n.SellerID, &n.Quantity, &n.ListPriceCents,
		&n.OfferPriceCents, &n.CounterPriceCents, &n.AgreedPriceCents, &n.Status, &n.Message,
		&n.Version, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *SQLStore) CreateNegotiation(ctx context.Context, n domain.NegotiationRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO negotiations (`+negotiationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ProductID, n.BuyerID, n.SellerID, n.Quantity, n.ListPriceCents, n.OfferPriceCents,
		n.CounterPriceCents, n.AgreedPriceCents, n.Status, n.Message, n.Version, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert negotiation: %w", err)
	}
	return nil
}

func (s *SQLStore) GetNegotiation(ctx context.Context, id string) (*domain.NegotiationRequest, error) {
	n, err := scanNegotiation(s.db.QueryRowContext(ctx,
		`SELECT `+negotiationColumns+` FROM negotiations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("negotiation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query negotiation: %w", err)
	}
	return n, nil
}

func (s *SQLStore) ListNegotiations(ctx context.Context, filter domain.NegotiationFilter) ([]domain.NegotiationRequest, error) {
	query := `SELECT ` + negotiationColumns + ` FROM negotiations WHERE 1=1`
	var args []any
	if filter.BuyerID != "" {
		query += ` AND buyer_id = ?`
		args = append(args, filter.BuyerID)
	}
	if filter.SellerID != "" {
		query += ` AND seller_id = ?`
		args = append(args, filter.SellerID)
	}
	if filter.ProductID != "" {
		query += ` AND product_id = ?`
		args = append(args, filter.ProductID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.OpenOnly {
		query += ` AND status IN (?, ?)`
		args = append(args, domain.NegotiationStatusPending, domain.NegotiationStatusCountered)
	}
	if !filter.Before.IsZero() {
		query += ` AND updated_at < ?`
		args = append(args, filter.Before.UTC())
	}
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}
	defer rows.Close()

	var out []domain.NegotiationRequest
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan negotiation: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateNegotiation(ctx context.Context, n domain.NegotiationRequest) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE negotiations
		SET counter_price_cents = ?, agreed_price_cents = ?, status = ?, message = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		n.CounterPriceCents, n.AgreedPriceCents, n.Status, n.Message, n.UpdatedAt,
		n.ID, n.Version,
	)
	if err := expectOneRow(result, err, ErrOptimisticLock); err != nil {
		return fmt.Errorf("update negotiation: %w", err)
	}
	return nil
}
