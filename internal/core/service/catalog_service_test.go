package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/domain"
)

func TestSellerOnboarding(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	svc := NewCatalogService(f.store, f.cache, zap.NewNop())

	_, err := svc.RegisterSeller(ctx, RegisterSellerInput{Name: "Bo", Email: "not-an-email", StoreName: "Bo's"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	s, err := svc.RegisterSeller(ctx, RegisterSellerInput{ID: "seller-2", Name: "Bo", Email: "Bo@Example.com", StoreName: "Bo's"})
	require.NoError(t, err)
	assert.Equal(t, domain.SellerStatusPending, s.Status)
	assert.Equal(t, "bo@example.com", s.Email)

	bo := domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	_, err = svc.CreateProduct(ctx, bo, ProductInput{Name: "Chair", PriceCents: 100})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ApproveSeller(ctx, bo, "seller-2")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.SuspendSeller(ctx, admin, "seller-2")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	approved, err := svc.ApproveSeller(ctx, admin, "seller-2")
	require.NoError(t, err)
	assert.Equal(t, domain.SellerStatusApproved, approved.Status)

	again, err := svc.ApproveSeller(ctx, admin, "seller-2")
	require.NoError(t, err)
	assert.Equal(t, approved.Version, again.Version)

	p, err := svc.CreateProduct(ctx, bo, ProductInput{Name: " Chair ", Category: "Home", PriceCents: 100, Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, "Chair", p.Name)
	assert.Equal(t, "home", p.Category)
	assert.Equal(t, domain.ProductStatusActive, p.Status)
	stock, ok := f.cache.Stock(p.ID)
	require.True(t, ok)
	assert.Equal(t, 3, stock)

	_, err = svc.SuspendSeller(ctx, admin, "seller-2")
	require.NoError(t, err)
	pending, err := svc.ListSellers(ctx, domain.SellerFilter{Status: domain.SellerStatusSuspended})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "seller-2", pending[0].ID)
}

func TestProductUpdates(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	svc := NewCatalogService(f.store, f.cache, zap.NewNop())

	in := ProductInput{Name: "Brass lamp", Category: "home", PriceCents: 3000, Version: 0}
	_, err := svc.UpdateProduct(ctx, buyer, f.product.ID, in)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := svc.UpdateProduct(ctx, seller, f.product.ID, in)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), updated.PriceCents)
	assert.Equal(t, 4, updated.Stock)

	// stale version
	_, err = svc.UpdateProduct(ctx, seller, f.product.ID, in)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.AdjustStock(ctx, seller, f.product.ID, -5)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	adjusted, err := svc.AdjustStock(ctx, seller, f.product.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 10, adjusted.Stock)
	stock, _ := f.cache.Stock(f.product.ID)
	assert.Equal(t, 10, stock)

	archived, err := svc.ArchiveProduct(ctx, admin, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusArchived, archived.Status)

	active, err := svc.ListProducts(ctx, domain.ProductFilter{Status: domain.ProductStatusActive})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSyncStock(t *testing.T) {
	f := newFixture(t, 7)
	ctx := context.Background()
	require.NoError(t, f.cache.SetStock(ctx, f.product.ID, 0))

	n, err := NewCatalogService(f.store, f.cache, zap.NewNop()).SyncStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stock, _ := f.cache.Stock(f.product.ID)
	assert.Equal(t, 7, stock)
}

func TestActivateDraftAfterColdCache(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	draft, err := NewCatalogService(f.store, f.cache, zap.NewNop()).CreateProduct(ctx, seller, ProductInput{
		Name: "Desk fan", PriceCents: 1500, Stock: 10, Status: domain.ProductStatusDraft,
	})
	require.NoError(t, err)

	// a restart brings up an empty cache that only learns about active products
	cold := storage.NewMemoryCache()
	svc := NewCatalogService(f.store, cold, zap.NewNop())
	_, err = svc.SyncStock(ctx)
	require.NoError(t, err)
	_, ok := cold.Stock(draft.ID)
	require.False(t, ok)

	activated, err := svc.UpdateProduct(ctx, seller, draft.ID, ProductInput{
		Name: "Desk fan", PriceCents: 1500, Status: domain.ProductStatusActive, Version: draft.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusActive, activated.Status)
	stock, ok := cold.Stock(draft.ID)
	require.True(t, ok)
	assert.Equal(t, 10, stock)

	orders := NewOrderService(f.store, cold, nil, zap.NewNop(), 1)
	defer orders.Close()
	_, err = orders.Checkout(ctx, CheckoutRequest{RequestID: "fan-1", BuyerID: buyer.ID, ProductID: draft.ID, Quantity: 1})
	require.NoError(t, err)
	stock, _ = cold.Stock(draft.ID)
	assert.Equal(t, 9, stock)
}
