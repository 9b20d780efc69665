package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

const persistTimeout = 5 * time.Second

// OrderWorkerPool persists queued orders. Each failed write gives the stock
// reservation back to the cache.
type OrderWorkerPool struct {
	queue   <-chan domain.Order
	db      port.OrderRepository
	cache   port.CacheRepository
	events  port.EventPublisher
	logger  *zap.Logger
	workers int
}

func NewOrderWorkerPool(queue <-chan domain.Order, db port.OrderRepository, cache port.CacheRepository, events port.EventPublisher, logger *zap.Logger, workers int) *OrderWorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &OrderWorkerPool{
		queue:   queue,
		db:      db,
		cache:   cache,
		events:  publisherOrNop(events),
		logger:  logger.With(zap.String("component", "order-worker")),
		workers: workers,
	}
}

// Run blocks until the queue is closed and drained.
func (p *OrderWorkerPool) Run() {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(id)
		}(i)
	}
	p.logger.Info("workers started", zap.Int("count", p.workers))
	wg.Wait()
	p.logger.Info("workers stopped")
}

func (p *OrderWorkerPool) workerLoop(id int) {
	for order := range p.queue {
		p.persist(id, order)
	}
}

func (p *OrderWorkerPool) persist(id int, order domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	log := p.logger.With(zap.Int("worker", id), zap.String("order_id", order.ID))

	err := p.db.CreateOrder(ctx, order)
	if err == nil {
		log.Debug("saved order")
		p.events.Publish(ctx, orderEvent(domain.EventOrderPlaced, order))
		return
	}

	log.Error("failed to save order", zap.Error(err))
	if rbErr := p.cache.IncrementStock(ctx, order.ProductID, order.Quantity); rbErr != nil {
		log.Error("CRITICAL rollback failed", zap.Error(rbErr))
	} else {
		log.Info("rolled back stock")
	}
	// A request id that already reached the database stays claimed.
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		if clrErr := p.cache.ClearIdempotency(ctx, idempotencyKey(order.RequestID)); clrErr != nil {
			log.Warn("clear idempotency key failed", zap.Error(clrErr))
		}
	}

	failed := order
	failed.Status = domain.OrderStatusCancelled
	ev := orderEvent(domain.EventOrderFailed, failed)
	ev.Data = map[string]string{"request_id": order.RequestID, "error": err.Error()}
	p.events.Publish(ctx, ev)
}
