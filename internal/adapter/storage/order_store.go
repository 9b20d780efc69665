package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const orderColumns = `id, request_id, buyer_id, seller_id, product_id, negotiation_id, quantity,
	unit_price_cents, total_cents, commission_cents, status, escrow_status, version, created_at, updated_at`

func scanOrder(row scanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.RequestID, &o.BuyerID, &o.SellerID, &o.ProductID, &o.NegotiationID,
		&o.Quantity, &o.UnitPriceCents, &o.TotalCents, &o.CommissionCents, &o.Status,
		&o.EscrowStatus, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts the order, takes the stock and consumes the negotiation
// it was priced from. Any failure leaves all three untouched.
func (s *SQLStore) CreateOrder(ctx context.Context, o domain.Order) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders WHERE request_id = ?`, o.RequestID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check request id: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("request %s: %w", o.RequestID, domain.ErrDuplicateRequest)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, updated_at = ?
			WHERE id = ? AND stock >= ?`,
			o.Quantity, o.CreatedAt, o.ProductID, o.Quantity,
		)
		if err := expectOneRow(result, err, domain.ErrInsufficientStock); err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}

		if o.NegotiationID != "" {
			result, err := tx.ExecContext(ctx, `
				UPDATE negotiations
				SET status = ?, version = version + 1, updated_at = ?
				WHERE id = ? AND status = ?`,
				domain.NegotiationStatusConverted, o.CreatedAt, o.NegotiationID, domain.NegotiationStatusAccepted,
			)
			if err := expectOneRow(result, err, ErrOptimisticLock); err != nil {
				return fmt.Errorf("convert negotiation: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.RequestID, o.BuyerID, o.SellerID, o.ProductID, o.NegotiationID, o.Quantity,
			o.UnitPriceCents, o.TotalCents, o.CommissionCents, o.Status, o.EscrowStatus,
			o.Version, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (s *SQLStore) GetOrderByRequestID(ctx context.Context, requestID string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE request_id = ?`, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order for request %s: %w", requestID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (s *SQLStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	var args []any
	if filter.BuyerID != "" {
		query += ` AND buyer_id = ?`
		args = append(args, filter.BuyerID)
	}
	if filter.SellerID != "" {
		query += ` AND seller_id = ?`
		args = append(args, filter.SellerID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// TransitionOrder moves the order only if it is still at t.From and t.Version.
func (s *SQLStore) TransitionOrder(ctx context.Context, t domain.OrderTransition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = ?, escrow_status = ?, commission_cents = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND status = ? AND version = ?`,
			t.To, domain.EscrowFor(t.To), t.CommissionCents, t.At,
			t.OrderID, t.From, t.Version,
		)
		if err := expectOneRow(result, err, ErrOptimisticLock); err != nil {
			return fmt.Errorf("transition order %s: %w", t.OrderID, err)
		}

		if len(t.Postings) > 0 {
			if err := insertPostings(ctx, tx, t.Postings, t.OrderID, "", t.At); err != nil {
				return err
			}
		}

		if t.Restock {
			_, err := tx.ExecContext(ctx, `
				UPDATE products
				SET stock = stock + (SELECT quantity FROM orders WHERE id = ?), updated_at = ?
				WHERE id = (SELECT product_id FROM orders WHERE id = ?)`,
				t.OrderID, t.At, t.OrderID,
			)
			if err != nil {
				return fmt.Errorf("restock order %s: %w", t.OrderID, err)
			}
		}
		return nil
	})
}
