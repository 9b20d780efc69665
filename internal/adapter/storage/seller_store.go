package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const sellerColumns = `id, name, email, store_name, status, commission_bps, version, created_at, updated_at`

func scanSeller(row scanner) (*domain.Seller, error) {
	var s domain.Seller
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.StoreName, &s.Status, &s.CommissionBps,
		&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *SQLStore) CreateSeller(ctx context.Context, seller domain.Seller) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sellers (`+sellerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seller.ID, seller.Name, seller.Email, seller.StoreName, seller.Status,
		seller.CommissionBps, seller.Version, seller.CreatedAt, seller.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("seller %s or email %s already registered: %w", seller.ID, seller.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert seller: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSeller(ctx context.Context, id string) (*domain.Seller, error) {
	seller, err := scanSeller(s.db.QueryRowContext(ctx,
		`SELECT `+sellerColumns+` FROM sellers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("seller %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query seller: %w", err)
	}
	return seller, nil
}

func (s *SQLStore) ListSellers(ctx context.Context, filter domain.SellerFilter) ([]domain.Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}
	defer rows.Close()

	var sellers []domain.Seller
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seller: %w", err)
		}
		sellers = append(sellers, *seller)
	}
	return sellers, rows.Err()
}

func (s *SQLStore) UpdateSellerStatus(ctx context.Context, id string, from, to domain.SellerStatus, version int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sellers
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`,
		to, time.Now().UTC(), id, from, version,
	)
	if err := expectOneRow(result, err, ErrOptimisticLock); err != nil {
		return fmt.Errorf("update seller status: %w", err)
	}
	return nil
}
