package storage

import (
	"context"
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func (s *SQLStore) AccountBalance(ctx context.Context, account string) (int64, error) {
	return accountBalance(ctx, s.db, account)
}

func (s *SQLStore) SellerBalance(ctx context.Context, sellerID string) (domain.Balance, error) {
	b := domain.Balance{SellerID: sellerID}
	var err error
	if b.EscrowCents, err = accountBalance(ctx, s.db, domain.SellerEscrowAccount(sellerID)); err != nil {
		return b, err
	}
	if b.AvailableCents, err = accountBalance(ctx, s.db, domain.SellerAvailableAccount(sellerID)); err != nil {
		return b, err
	}
	if b.PayoutCents, err = accountBalance(ctx, s.db, domain.SellerPayoutAccount(sellerID)); err != nil {
		return b, err
	}
	return b, nil
}

// PlatformSummary aggregates across every seller by account suffix.
func (s *SQLStore) PlatformSummary(ctx context.Context) (domain.PlatformSummary, error) {
	var sum domain.PlatformSummary
	var err error
	if sum.CommissionCents, err = accountBalance(ctx, s.db, domain.AccountPlatformCommission); err != nil {
		return sum, err
	}
	if sum.PaidOutCents, err = accountBalance(ctx, s.db, domain.AccountExternalPayouts); err != nil {
		return sum, err
	}
	if sum.EscrowOutstanding, err = s.sumAccountsLike(ctx, "seller:%:escrow"); err != nil {
		return sum, err
	}
	if sum.PendingPayoutsCents, err = s.sumAccountsLike(ctx, "seller:%:payout"); err != nil {
		return sum, err
	}
	return sum, nil
}

func (s *SQLStore) sumAccountsLike(ctx context.Context, pattern string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE account LIKE ?`, pattern,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum accounts %s: %w", pattern, err)
	}
	return total, nil
}

func (s *SQLStore) ListEntries(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	query := `SELECT id, tx_id, account, amount_cents, kind, order_id, payout_id, created_at
		FROM ledger_entries WHERE 1=1`
	var args []any
	if filter.Account != "" {
		query += ` AND account = ?`
		args = append(args, filter.Account)
	}
	if filter.OrderID != "" {
		query += ` AND order_id = ?`
		args = append(args, filter.OrderID)
	}
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TxID, &e.Account, &e.AmountCents, &e.Kind,
			&e.OrderID, &e.PayoutID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
