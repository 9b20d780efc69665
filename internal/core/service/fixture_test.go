package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/domain"
)

var (
	admin  = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	buyer  = domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer}
	buyer2 = domain.Actor{ID: "buyer-2", Role: domain.RoleBuyer}
	seller = domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store   *storage.SQLStore
	cache   *storage.MemoryCache
	events  *recordingPublisher
	product domain.Product
}

// newFixture opens an in-memory store with one approved seller and one
// active product priced at 2500 cents.
func newFixture(t *testing.T, stock int) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ts := time.Now().UTC()
	require.NoError(t, store.CreateSeller(ctx, domain.Seller{
		ID: seller.ID, Name: "Ada", Email: "ada@example.com", StoreName: "Ada's Lamps",
		Status: domain.SellerStatusApproved, CreatedAt: ts, UpdatedAt: ts,
	}))
	product := domain.Product{
		ID: "product-1", SellerID: seller.ID, Name: "Brass lamp", Category: "home",
		PriceCents: 2500, Stock: stock, Status: domain.ProductStatusActive, CreatedAt: ts, UpdatedAt: ts,
	}
	require.NoError(t, store.CreateProduct(ctx, product))

	cache := storage.NewMemoryCache()
	require.NoError(t, cache.SetStock(ctx, product.ID, stock))

	return &fixture{store: store, cache: cache, events: &recordingPublisher{}, product: product}
}

// placeOrder checks out and persists synchronously through a one-off pool.
func (f *fixture) placeOrder(t *testing.T, requestID string, qty int, negotiationID string) domain.Order {
	t.Helper()
	svc := NewOrderService(f.store, f.cache, f.events, zap.NewNop(), 1)
	order, err := svc.Checkout(context.Background(), CheckoutRequest{
		RequestID: requestID, BuyerID: buyer.ID, ProductID: f.product.ID, Quantity: qty, NegotiationID: negotiationID,
	})
	require.NoError(t, err)

	pool := NewOrderWorkerPool(svc.GetOrderQueue(), f.store, f.cache, f.events, zap.NewNop(), 1)
	svc.Close()
	pool.Run()

	stored, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	return *stored
}

func (f *fixture) escrow() *EscrowService {
	return NewEscrowService(f.store, f.cache, f.events, zap.NewNop(), 0)
}
