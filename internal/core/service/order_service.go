package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// ErrQueueClosed is returned by Checkout after shutdown has begun.
var ErrQueueClosed = errors.New("order queue closed")

type CheckoutRequest struct {
	RequestID     string `json:"request_id"`
	BuyerID       string `json:"buyer_id"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	NegotiationID string `json:"negotiation_id,omitempty"`
}

type OrderService struct {
	db         port.DatabaseRepository
	cache      port.CacheRepository
	events     port.EventPublisher
	logger     *zap.Logger
	orderQueue chan domain.Order

	mu     sync.RWMutex
	closed bool
}

func NewOrderService(db port.DatabaseRepository, cache port.CacheRepository, events port.EventPublisher, logger *zap.Logger, queueSize int) *OrderService {
	return &OrderService{
		db:         db,
		cache:      cache,
		events:     publisherOrNop(events),
		logger:     logger.With(zap.String("component", "orders")),
		orderQueue: make(chan domain.Order, queueSize),
	}
}

func idempotencyKey(requestID string) string {
	return "order:req:" + requestID
}

// Checkout reserves stock and queues the order for persistence. The returned
// order is pending; it becomes readable once a worker has stored it.
func (s *OrderService) Checkout(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" || req.BuyerID == "" || req.ProductID == "" {
		return nil, fmt.Errorf("%w: request_id, buyer and product are required", domain.ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	key := idempotencyKey(req.RequestID)
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	order, err := s.price(ctx, req)
	if err != nil {
		s.release(key)
		return nil, err
	}

	ok, err = s.cache.DecrementStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		s.release(key)
		return nil, fmt.Errorf("stock decrement failed: %w", err)
	}
	if !ok {
		s.release(key)
		return nil, domain.ErrInsufficientStock
	}

	if err := s.enqueue(ctx, *order); err != nil {
		if rbErr := s.cache.IncrementStock(context.Background(), order.ProductID, order.Quantity); rbErr != nil {
			s.logger.Error("rollback reservation failed", zap.String("order_id", order.ID), zap.Error(rbErr))
		}
		s.release(key)
		return nil, err
	}
	return order, nil
}

// price validates the request against catalog state and builds the order.
func (s *OrderService) price(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	product, err := s.db.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Orderable() {
		return nil, fmt.Errorf("%w: product is %s", domain.ErrValidation, product.Status)
	}
	seller, err := s.db.GetSeller(ctx, product.SellerID)
	if err != nil {
		return nil, err
	}
	if seller.Status != domain.SellerStatusApproved {
		return nil, fmt.Errorf("%w: seller is %s", domain.ErrValidation, seller.Status)
	}
	if seller.ID == req.BuyerID {
		return nil, fmt.Errorf("%w: sellers cannot buy their own products", domain.ErrForbidden)
	}

	unit := product.PriceCents
	if req.NegotiationID != "" {
		n, err := s.db.GetNegotiation(ctx, req.NegotiationID)
		if err != nil {
			return nil, err
		}
		switch {
		case n.BuyerID != req.BuyerID:
			return nil, domain.ErrForbidden
		case n.ProductID != req.ProductID:
			return nil, fmt.Errorf("%w: negotiation is for another product", domain.ErrValidation)
		case n.Status != domain.NegotiationStatusAccepted:
			return nil, fmt.Errorf("%w: negotiation is %s", domain.ErrInvalidTransition, n.Status)
		case n.Quantity != req.Quantity:
			return nil, fmt.Errorf("%w: negotiation covers quantity %d", domain.ErrValidation, n.Quantity)
		}
		unit = n.AgreedPriceCents
	}

	t := now()
	return &domain.Order{
		ID:             newID(),
		RequestID:      req.RequestID,
		BuyerID:        req.BuyerID,
		SellerID:       seller.ID,
		ProductID:      product.ID,
		NegotiationID:  req.NegotiationID,
		Quantity:       req.Quantity,
		UnitPriceCents: unit,
		TotalCents:     unit * int64(req.Quantity),
		Status:         domain.OrderStatusPending,
		EscrowStatus:   domain.EscrowStatusNone,
		CreatedAt:      t,
		UpdatedAt:      t,
	}, nil
}

func (s *OrderService) enqueue(ctx context.Context, order domain.Order) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrQueueClosed
	}
	select {
	case s.orderQueue <- order:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *OrderService) release(key string) {
	if err := s.cache.ClearIdempotency(context.Background(), key); err != nil {
		s.logger.Warn("clear idempotency key failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.db.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, o.BuyerID, o.SellerID) {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

// ListOrders scopes the filter to the actor unless they are an admin.
func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor, filter domain.OrderFilter) ([]domain.Order, error) {
	if !actor.IsAdmin() {
		switch actor.Role {
		case domain.RoleSeller:
			filter.SellerID = actor.ID
		default:
			filter.BuyerID = actor.ID
		}
	}
	return s.db.ListOrders(ctx, filter)
}

func (s *OrderService) GetOrderQueue() <-chan domain.Order {
	return s.orderQueue
}

// Close stops accepting checkouts and closes the queue so workers drain and exit.
func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.orderQueue)
}
