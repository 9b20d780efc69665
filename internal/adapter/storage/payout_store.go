package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const payoutColumns = `id, seller_id, amount_cents, status, reference, statement_key, note, version, created_at, updated_at`

func scanPayout(row scanner) (*domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(&p.ID, &p.SellerID, &p.AmountCents, &p.Status, &p.Reference, &p.StatementKey,
		&p.Note, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) CreatePayout(ctx context.Context, p domain.Payout, postings []domain.Posting) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockSellerRow(ctx, tx, p.SellerID); err != nil {
			return err
		}
		available, err := accountBalance(ctx, tx, domain.SellerAvailableAccount(p.SellerID))
		if err != nil {
			return err
		}
		if p.AmountCents > available {
			return fmt.Errorf("payout of %d exceeds available %d: %w", p.AmountCents, available, domain.ErrInsufficientFunds)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO payouts (`+payoutColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.SellerID, p.AmountCents, p.Status, p.Reference, p.StatementKey, p.Note,
			p.Version, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
		return insertPostings(ctx, tx, postings, "", p.ID, p.CreatedAt)
	})
}

func (s *SQLStore) GetPayout(ctx context.Context, id string) (*domain.Payout, error) {
	p, err := scanPayout(s.db.QueryRowContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payout %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query payout: %w", err)
	}
	return p, nil
}

func (s *SQLStore) ListPayouts(ctx context.Context, filter domain.PayoutFilter) ([]domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE 1=1`
	var args []any
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
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

func (s *SQLStore) TransitionPayout(ctx context.Context, t domain.PayoutTransition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE payouts
			SET status = ?, reference = ?, statement_key = ?, note = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND status = ? AND version = ?`,
			t.To, t.Reference, t.StatementKey, t.Note, t.At,
			t.PayoutID, t.From, t.Version,
		)
		if err := expectOneRow(result, err, ErrOptimisticLock); err != nil {
			return fmt.Errorf("transition payout %s: %w", t.PayoutID, err)
		}
		if len(t.Postings) == 0 {
			return nil
		}
		return insertPostings(ctx, tx, t.Postings, "", t.PayoutID, t.At)
	})
}
