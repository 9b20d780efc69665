package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

const (
	DefaultNegotiationTTL = 72 * time.Hour
	negotiationLockTTL    = 10 * time.Second
)

type NegotiationService struct {
	db     port.DatabaseRepository
	locks  port.LockManager
	events port.EventPublisher
	logger *zap.Logger
	ttl    time.Duration
}

func NewNegotiationService(db port.DatabaseRepository, locks port.LockManager, events port.EventPublisher, logger *zap.Logger, ttl time.Duration) *NegotiationService {
	if ttl <= 0 {
		ttl = DefaultNegotiationTTL
	}
	return &NegotiationService{
		db:     db,
		locks:  locks,
		events: publisherOrNop(events),
		logger: logger.With(zap.String("component", "negotiation")),
		ttl:    ttl,
	}
}

type ProposeInput struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	OfferPriceCents int64  `json:"offer_price_cents"`
	Message         string `json:"message"`
}

// Propose opens a price negotiation. A buyer may hold one open negotiation
// per product.
func (s *NegotiationService) Propose(ctx context.Context, actor domain.Actor, in ProposeInput) (*domain.NegotiationRequest, error) {
	if actor.ID == "" {
		return nil, domain.ErrForbidden
	}
	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	product, err := s.db.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Orderable() {
		return nil, fmt.Errorf("%w: product is %s", domain.ErrValidation, product.Status)
	}
	if product.SellerID == actor.ID {
		return nil, fmt.Errorf("%w: cannot negotiate on your own product", domain.ErrForbidden)
	}
	seller, err := s.db.GetSeller(ctx, product.SellerID)
	if err != nil {
		return nil, err
	}
	if seller.Status != domain.SellerStatusApproved {
		return nil, fmt.Errorf("%w: seller is %s", domain.ErrValidation, seller.Status)
	}
	if in.OfferPriceCents <= 0 || in.OfferPriceCents >= product.PriceCents {
		return nil, fmt.Errorf("%w: offer must be between 0 and the list price %d", domain.ErrValidation, product.PriceCents)
	}

	open, err := s.db.ListNegotiations(ctx, domain.NegotiationFilter{
		BuyerID:   actor.ID,
		ProductID: product.ID,
		OpenOnly:  true,
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		return nil, fmt.Errorf("%w: negotiation %s is still open", domain.ErrConflict, open[0].ID)
	}

	t := now()
	n := domain.NegotiationRequest{
		ID:              newID(),
		ProductID:       product.ID,
		BuyerID:         actor.ID,
		SellerID:        product.SellerID,
		Quantity:        in.Quantity,
		ListPriceCents:  product.PriceCents,
		OfferPriceCents: in.OfferPriceCents,
		Status:          domain.NegotiationStatusPending,
		Message:         strings.TrimSpace(in.Message),
		CreatedAt:       t,
		UpdatedAt:       t,
	}
	if err := s.db.CreateNegotiation(ctx, n); err != nil {
		return nil, err
	}
	s.publish(ctx, n)
	return &n, nil
}

func (s *NegotiationService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.NegotiationRequest, error) {
	n, err := s.db.GetNegotiation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, n.BuyerID, n.SellerID) {
		return nil, domain.ErrForbidden
	}
	return n, nil
}

func (s *NegotiationService) List(ctx context.Context, actor domain.Actor, filter domain.NegotiationFilter) ([]domain.NegotiationRequest, error) {
	if !actor.IsAdmin() {
		if actor.Role == domain.RoleSeller {
			filter.SellerID = actor.ID
		} else {
			filter.BuyerID = actor.ID
		}
	}
	return s.db.ListNegotiations(ctx, filter)
}

// Accept takes the buyer's offer as the agreed price.
func (s *NegotiationService) Accept(ctx context.Context, actor domain.Actor, id string) (*domain.NegotiationRequest, error) {
	return s.act(ctx, actor, id, true, func(n *domain.NegotiationRequest) (domain.NegotiationStatus, error) {
		if n.Status != domain.NegotiationStatusPending && n.Status != domain.NegotiationStatusAccepted {
			return "", fmt.Errorf("%w: seller can only accept a pending offer", domain.ErrInvalidTransition)
		}
		if n.Status == domain.NegotiationStatusPending {
			n.AgreedPriceCents = n.OfferPriceCents
		}
		return domain.NegotiationStatusAccepted, nil
	})
}

func (s *NegotiationService) Reject(ctx context.Context, actor domain.Actor, id string) (*domain.NegotiationRequest, error) {
	return s.act(ctx, actor, id, true, func(n *domain.NegotiationRequest) (domain.NegotiationStatus, error) {
		if n.Status == domain.NegotiationStatusCountered {
			return "", fmt.Errorf("%w: awaiting the buyer's reply to the counter", domain.ErrInvalidTransition)
		}
		return domain.NegotiationStatusRejected, nil
	})
}

// Counter proposes a price strictly between the offer and the list price.
func (s *NegotiationService) Counter(ctx context.Context, actor domain.Actor, id string, priceCents int64, message string) (*domain.NegotiationRequest, error) {
	return s.act(ctx, actor, id, true, func(n *domain.NegotiationRequest) (domain.NegotiationStatus, error) {
		if n.Status == domain.NegotiationStatusCountered {
			if n.CounterPriceCents == priceCents {
				return n.Status, nil
			}
			return "", fmt.Errorf("%w: a counter offer is already outstanding", domain.ErrInvalidTransition)
		}
		if priceCents <= n.OfferPriceCents || priceCents >= n.ListPriceCents {
			return "", fmt.Errorf("%w: counter must be above the offer %d and below the list price %d",
				domain.ErrValidation, n.OfferPriceCents, n.ListPriceCents)
		}
		n.CounterPriceCents = priceCents
		if m := strings.TrimSpace(message); m != "" {
			n.Message = m
		}
		return domain.NegotiationStatusCountered, nil
	})
}

func (s *NegotiationService) AcceptCounter(ctx context.Context, actor domain.Actor, id string) (*domain.NegotiationRequest, error) {
	return s.act(ctx, actor, id, false, func(n *domain.NegotiationRequest) (domain.NegotiationStatus, error) {
		if n.Status != domain.NegotiationStatusCountered && n.Status != domain.NegotiationStatusAccepted {
			return "", fmt.Errorf("%w: no counter offer to accept", domain.ErrInvalidTransition)
		}
		if n.Status == domain.NegotiationStatusCountered {
			n.AgreedPriceCents = n.CounterPriceCents
		}
		return domain.NegotiationStatusAccepted, nil
	})
}

func (s *NegotiationService) DeclineCounter(ctx context.Context, actor domain.Actor, id string) (*domain.NegotiationRequest, error) {
	return s.act(ctx, actor, id, false, func(n *domain.NegotiationRequest) (domain.NegotiationStatus, error) {
		if n.Status != domain.NegotiationStatusCountered && n.Status != domain.NegotiationStatusRejected {
			return "", fmt.Errorf("%w: no counter offer to decline", domain.ErrInvalidTransition)
		}
		return domain.NegotiationStatusRejected, nil
	})
}

func (s *NegotiationService) Withdraw(ctx context.Context, actor domain.Actor, id string) (*domain.NegotiationRequest, error) {
	return s.act(ctx, actor, id, false, func(*domain.NegotiationRequest) (domain.NegotiationStatus, error) {
		return domain.NegotiationStatusWithdrawn, nil
	})
}

// act loads, authorises, mutates and stores a negotiation while holding its
// lock. mutate returns the target status and may edit price fields.
func (s *NegotiationService) act(ctx context.Context, actor domain.Actor, id string, bySeller bool,
	mutate func(n *domain.NegotiationRequest) (domain.NegotiationStatus, error)) (*domain.NegotiationRequest, error) {

	unlock, err := s.locks.Acquire(ctx, "negotiation:"+id, negotiationLockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	n, err := s.db.GetNegotiation(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := n.BuyerID
	if bySeller {
		owner = n.SellerID
	}
	if actor.ID != owner && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	next := *n
	to, err := mutate(&next)
	if err != nil {
		return nil, err
	}
	changed, err := domain.CheckNegotiationTransition(n.Status, to)
	if err != nil {
		return nil, err
	}
	if !changed && next == *n {
		return n, nil
	}

	next.Status = to
	next.UpdatedAt = now()
	if err := s.db.UpdateNegotiation(ctx, next); err != nil {
		return nil, err
	}
	next.Version++
	s.logger.Info("negotiation updated",
		zap.String("negotiation_id", id),
		zap.String("from", string(n.Status)),
		zap.String("to", string(to)),
	)
	s.publish(ctx, next)
	return &next, nil
}

// ExpireStale closes every open negotiation untouched for longer than the TTL.
func (s *NegotiationService) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.db.ListNegotiations(ctx, domain.NegotiationFilter{
		OpenOnly: true,
		Before:   now().Add(-s.ttl),
		Limit:    500,
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, n := range stale {
		next := n
		next.Status = domain.NegotiationStatusExpired
		next.UpdatedAt = now()
		if err := s.db.UpdateNegotiation(ctx, next); err != nil {
			// Touched since the scan; the next sweep will look again.
			s.logger.Debug("skip expiring negotiation", zap.String("negotiation_id", n.ID), zap.Error(err))
			continue
		}
		next.Version++
		expired++
		s.publish(ctx, next)
	}
	if expired > 0 {
		s.logger.Info("expired negotiations", zap.Int("count", expired))
	}
	return expired, nil
}

// RunSweeper calls ExpireStale every interval until ctx is done.
func (s *NegotiationService) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ExpireStale(ctx); err != nil {
				s.logger.Error("negotiation sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *NegotiationService) publish(ctx context.Context, n domain.NegotiationRequest) {
	s.events.Publish(ctx, domain.Event{
		Type:     domain.EventNegotiationUpdated,
		BuyerID:  n.BuyerID,
		SellerID: n.SellerID,
		EntityID: n.ID,
		Status:   string(n.Status),
		Data:     n,
		At:       now(),
	})
}
