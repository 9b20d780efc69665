package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// DisputeOutcome is the admin's ruling on a disputed order.
type DisputeOutcome string

const (
	OutcomeRefund  DisputeOutcome = "refund"
	OutcomeRelease DisputeOutcome = "release"
)

// EscrowService drives orders through payment, fulfilment and settlement.
// Every status change and its ledger postings commit together.
type EscrowService struct {
	db                   port.DatabaseRepository
	cache                port.CacheRepository
	events               port.EventPublisher
	logger               *zap.Logger
	defaultCommissionBps int
}

func NewEscrowService(db port.DatabaseRepository, cache port.CacheRepository, events port.EventPublisher, logger *zap.Logger, commissionBps int) *EscrowService {
	if commissionBps <= 0 {
		commissionBps = DefaultCommissionBps
	}
	return &EscrowService{
		db:                   db,
		cache:                cache,
		events:               publisherOrNop(events),
		logger:               logger.With(zap.String("component", "escrow")),
		defaultCommissionBps: commissionBps,
	}
}

type orderRole int

const (
	asBuyer orderRole = iota
	asSeller
	asParty
	asAdmin
)

func (s *EscrowService) load(ctx context.Context, actor domain.Actor, id string, role orderRole) (*domain.Order, error) {
	o, err := s.db.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return o, nil
	}
	allowed := false
	switch role {
	case asBuyer:
		allowed = actor.ID == o.BuyerID
	case asSeller:
		allowed = actor.ID == o.SellerID
	case asParty:
		allowed = actor.ID == o.BuyerID || actor.ID == o.SellerID
	}
	if !allowed {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

// Pay moves funds from the buyer into the seller's escrow account.
func (s *EscrowService) Pay(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.load(ctx, actor, id, asBuyer)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, o, domain.OrderStatusPaid)
}

func (s *EscrowService) Ship(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.load(ctx, actor, id, asSeller)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, o, domain.OrderStatusShipped)
}

// ConfirmDelivery records receipt and releases escrow to the seller.
func (s *EscrowService) ConfirmDelivery(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.load(ctx, actor, id, asBuyer)
	if err != nil {
		return nil, err
	}
	if o.Status == domain.OrderStatusCompleted {
		return o, nil
	}
	if o.Status != domain.OrderStatusDelivered {
		if o, err = s.apply(ctx, o, domain.OrderStatusDelivered); err != nil {
			return nil, err
		}
	}
	return s.apply(ctx, o, domain.OrderStatusCompleted)
}

// Release is the admin override that settles a delivered order.
func (s *EscrowService) Release(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	o, err := s.load(ctx, actor, id, asAdmin)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderStatusDelivered && o.Status != domain.OrderStatusDisputed && o.Status != domain.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: cannot release a %s order", domain.ErrInvalidTransition, o.Status)
	}
	return s.apply(ctx, o, domain.OrderStatusCompleted)
}

func (s *EscrowService) Dispute(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.load(ctx, actor, id, asBuyer)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, o, domain.OrderStatusDisputed)
}

func (s *EscrowService) ResolveDispute(ctx context.Context, actor domain.Actor, id string, outcome DisputeOutcome) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	var to domain.OrderStatus
	switch outcome {
	case OutcomeRefund:
		to = domain.OrderStatusRefunded
	case OutcomeRelease:
		to = domain.OrderStatusCompleted
	default:
		return nil, fmt.Errorf("%w: outcome must be refund or release", domain.ErrValidation)
	}
	o, err := s.load(ctx, actor, id, asAdmin)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderStatusDisputed && o.Status != to {
		return nil, fmt.Errorf("%w: order is %s, not disputed", domain.ErrInvalidTransition, o.Status)
	}
	return s.apply(ctx, o, to)
}

// Cancel aborts an unpaid order and returns its stock.
func (s *EscrowService) Cancel(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.load(ctx, actor, id, asParty)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, o, domain.OrderStatusCancelled)
}

func (s *EscrowService) commissionBps(ctx context.Context, sellerID string) int {
	seller, err := s.db.GetSeller(ctx, sellerID)
	if err != nil || seller.CommissionBps <= 0 {
		return s.defaultCommissionBps
	}
	return seller.CommissionBps
}

// apply persists one guarded transition. A transition to the current status
// is a no-op that returns the order unchanged.
func (s *EscrowService) apply(ctx context.Context, o *domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	changed, err := domain.CheckOrderTransition(o.Status, to)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}

	t := domain.OrderTransition{
		OrderID:         o.ID,
		From:            o.Status,
		To:              to,
		Version:         o.Version,
		CommissionCents: o.CommissionCents,
		At:              now(),
	}
	switch to {
	case domain.OrderStatusPaid:
		t.Postings = domain.PaymentPostings(*o)
	case domain.OrderStatusCompleted:
		t.CommissionCents = domain.Commission(o.TotalCents, s.commissionBps(ctx, o.SellerID))
		t.Postings = domain.ReleasePostings(*o, t.CommissionCents)
	case domain.OrderStatusRefunded:
		t.Postings = domain.RefundPostings(*o)
		t.Restock = true
	case domain.OrderStatusCancelled:
		t.Restock = true
	}

	if err := s.db.TransitionOrder(ctx, t); err != nil {
		return nil, err
	}

	if t.Restock {
		if err := s.cache.IncrementStock(ctx, o.ProductID, o.Quantity); err != nil {
			s.logger.Error("cache restock failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	updated := *o
	updated.Status = to
	updated.EscrowStatus = domain.EscrowFor(to)
	updated.CommissionCents = t.CommissionCents
	updated.Version++
	updated.UpdatedAt = t.At

	s.logger.Info("order transitioned",
		zap.String("order_id", o.ID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
	)
	s.events.Publish(ctx, orderEvent(domain.EventOrderUpdated, updated))
	return &updated, nil
}
