package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

const payoutLockTTL = 15 * time.Second

type PayoutService struct {
	db        port.DatabaseRepository
	locks     port.LockManager
	blobs     port.BlobWriter
	events    port.EventPublisher
	logger    *zap.Logger
	minAmount int64
}

func NewPayoutService(db port.DatabaseRepository, locks port.LockManager, blobs port.BlobWriter, events port.EventPublisher, logger *zap.Logger, minAmountCents int64) *PayoutService {
	return &PayoutService{
		db:        db,
		locks:     locks,
		blobs:     blobs,
		events:    publisherOrNop(events),
		logger:    logger.With(zap.String("component", "payouts")),
		minAmount: minAmountCents,
	}
}

func (s *PayoutService) Balance(ctx context.Context, actor domain.Actor, sellerID string) (domain.Balance, error) {
	if actor.ID != sellerID && !actor.IsAdmin() {
		return domain.Balance{}, domain.ErrForbidden
	}
	return s.db.SellerBalance(ctx, sellerID)
}

// RequestPayout moves amount from the seller's available balance into a
// pending payout. The store re-checks the balance inside its transaction.
func (s *PayoutService) RequestPayout(ctx context.Context, actor domain.Actor, amountCents int64) (*domain.Payout, error) {
	if actor.Role != domain.RoleSeller {
		return nil, domain.ErrForbidden
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if amountCents < s.minAmount {
		return nil, fmt.Errorf("%w: minimum payout is %d", domain.ErrValidation, s.minAmount)
	}
	seller, err := s.db.GetSeller(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if seller.Status == domain.SellerStatusSuspended {
		return nil, fmt.Errorf("%w: seller is suspended", domain.ErrForbidden)
	}

	unlock, err := s.locks.Acquire(ctx, "payout:"+seller.ID, payoutLockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t := now()
	p := domain.Payout{
		ID:          newID(),
		SellerID:    seller.ID,
		AmountCents: amountCents,
		Status:      domain.PayoutStatusRequested,
		CreatedAt:   t,
		UpdatedAt:   t,
	}
	if err := s.db.CreatePayout(ctx, p, domain.PayoutHoldPostings(seller.ID, amountCents)); err != nil {
		return nil, err
	}
	s.logger.Info("payout requested", zap.String("payout_id", p.ID), zap.String("seller_id", seller.ID), zap.Int64("amount_cents", amountCents))
	s.publish(ctx, p)
	return &p, nil
}

func (s *PayoutService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Payout, error) {
	p, err := s.db.GetPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.SellerID != actor.ID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

func (s *PayoutService) List(ctx context.Context, actor domain.Actor, filter domain.PayoutFilter) ([]domain.Payout, error) {
	if !actor.IsAdmin() {
		filter.SellerID = actor.ID
	}
	return s.db.ListPayouts(ctx, filter)
}

// MarkPaid settles a requested payout and stores its statement.
func (s *PayoutService) MarkPaid(ctx context.Context, actor domain.Actor, id, reference string) (*domain.Payout, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}
	p, err := s.db.GetPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := domain.CheckPayoutTransition(p.Status, domain.PayoutStatusPaid)
	if err != nil {
		return nil, err
	}
	if !changed {
		return p, nil
	}

	t := now()
	key := statementKey(*p)
	if err := s.writeStatement(ctx, key, *p, reference, t); err != nil {
		return nil, err
	}

	err = s.db.TransitionPayout(ctx, domain.PayoutTransition{
		PayoutID:     p.ID,
		From:         p.Status,
		To:           domain.PayoutStatusPaid,
		Version:      p.Version,
		Reference:    reference,
		StatementKey: key,
		Postings:     domain.PayoutSettlePostings(p.SellerID, p.AmountCents),
		At:           t,
	})
	if err != nil {
		return nil, err
	}
	p.Status = domain.PayoutStatusPaid
	p.Reference = reference
	p.StatementKey = key
	p.Version++
	p.UpdatedAt = t
	s.logger.Info("payout paid", zap.String("payout_id", p.ID), zap.String("reference", reference))
	s.publish(ctx, *p)
	return p, nil
}

// Reject returns a requested payout's amount to the seller's available balance.
func (s *PayoutService) Reject(ctx context.Context, actor domain.Actor, id, note string) (*domain.Payout, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	p, err := s.db.GetPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := domain.CheckPayoutTransition(p.Status, domain.PayoutStatusRejected)
	if err != nil {
		return nil, err
	}
	if !changed {
		return p, nil
	}

	t := now()
	note = strings.TrimSpace(note)
	err = s.db.TransitionPayout(ctx, domain.PayoutTransition{
		PayoutID: p.ID,
		From:     p.Status,
		To:       domain.PayoutStatusRejected,
		Version:  p.Version,
		Note:     note,
		Postings: domain.PayoutReversalPostings(p.SellerID, p.AmountCents),
		At:       t,
	})
	if err != nil {
		return nil, err
	}
	p.Status = domain.PayoutStatusRejected
	p.Note = note
	p.Version++
	p.UpdatedAt = t
	s.logger.Info("payout rejected", zap.String("payout_id", p.ID))
	s.publish(ctx, *p)
	return p, nil
}

func (s *PayoutService) Summary(ctx context.Context, actor domain.Actor) (domain.PlatformSummary, error) {
	if !actor.IsAdmin() {
		return domain.PlatformSummary{}, domain.ErrForbidden
	}
	return s.db.PlatformSummary(ctx)
}

func (s *PayoutService) Ledger(ctx context.Context, actor domain.Actor, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.db.ListEntries(ctx, filter)
}

func statementKey(p domain.Payout) string {
	return fmt.Sprintf("payouts/%s/%s.csv", p.SellerID, p.ID)
}

func (s *PayoutService) writeStatement(ctx context.Context, key string, p domain.Payout, reference string, paidAt time.Time) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"payout_id", "seller_id", "amount_cents", "reference", "requested_at", "paid_at"},
		{
			p.ID,
			p.SellerID,
			strconv.FormatInt(p.AmountCents, 10),
			reference,
			p.CreatedAt.Format(time.RFC3339),
			paidAt.Format(time.RFC3339),
		},
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encode statement: %w", err)
	}
	if err := s.blobs.Put(ctx, key, &buf, "text/csv"); err != nil {
		return fmt.Errorf("upload statement: %w", err)
	}
	return nil
}

func (s *PayoutService) publish(ctx context.Context, p domain.Payout) {
	s.events.Publish(ctx, domain.Event{
		Type:     domain.EventPayoutUpdated,
		SellerID: p.SellerID,
		EntityID: p.ID,
		Status:   string(p.Status),
		Data:     p,
		At:       now(),
	})
}
