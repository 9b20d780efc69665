package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/adapter/blob"
	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
	"github.com/rl1809/marketplace/internal/llm"
)

var (
	admin  = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	buyer  = domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer}
	buyer2 = domain.Actor{ID: "buyer-2", Role: domain.RoleBuyer}
	seller = domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
)

type testEnv struct {
	store    *storage.SQLStore
	cache    *storage.MemoryCache
	hub      *Hub
	svc      Services
	provider *llm.MockProvider
	server   *httptest.Server
}

// newTestEnv serves the full router over an in-memory store with one approved
// seller and product-1 (2500 cents, given stock). Orders are persisted by a
// background worker.
func newTestEnv(t *testing.T, stock int, cfg HTTPConfig) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	store, err := storage.OpenMemory(ctx)
	require.NoError(t, err)
	cache := storage.NewMemoryCache()

	ts := time.Now().UTC()
	require.NoError(t, store.CreateSeller(ctx, domain.Seller{
		ID: seller.ID, Name: "Ada", Email: "ada@example.com", StoreName: "Ada's Lamps",
		Status: domain.SellerStatusApproved, CreatedAt: ts, UpdatedAt: ts,
	}))
	require.NoError(t, store.CreateProduct(ctx, domain.Product{
		ID: "product-1", SellerID: seller.ID, Name: "Brass lamp", Category: "home",
		PriceCents: 2500, Stock: stock, Status: domain.ProductStatusActive, CreatedAt: ts, UpdatedAt: ts,
	}))
	require.NoError(t, cache.SetStock(ctx, "product-1", stock))

	hub := NewHub(logger)
	provider := llm.NewMockProvider(`{"suggestedPrice":30,"minPrice":20,"maxPrice":40,"confidence":0.8}`)
	orders := service.NewOrderService(store, cache, hub, logger, 100)
	svc := Services{
		Catalog:      service.NewCatalogService(store, cache, logger),
		Orders:       orders,
		Escrow:       service.NewEscrowService(store, cache, hub, logger, 0),
		Negotiations: service.NewNegotiationService(store, cache, hub, logger, 0),
		Payouts:      service.NewPayoutService(store, cache, blob.NewMemoryWriter(), hub, logger, 100),
		Support:      service.NewSupportService(store, hub, logger),
		Pricing:      service.NewPricingService(provider, cache, logger, 0),
	}

	pool := service.NewOrderWorkerPool(orders.GetOrderQueue(), store, cache, hub, logger, 2)
	done := make(chan struct{})
	go func() {
		pool.Run()
		close(done)
	}()

	hubCtx, stopHub := context.WithCancel(context.Background())
	go func() { _ = hub.Run(hubCtx) }()

	server := httptest.NewServer(NewHTTPHandler(svc, hub, cache, cfg, logger).Router())
	t.Cleanup(func() {
		server.Close()
		stopHub()
		orders.Close()
		<-done
		_ = store.Close()
	})

	return &testEnv{store: store, cache: cache, hub: hub, svc: svc, provider: provider, server: server}
}

// do sends a JSON request as actor (zero actor sends no identity) and
// decodes the response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, actor domain.Actor, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor.ID != "" {
		req.Header.Set(HeaderUserID, actor.ID)
		req.Header.Set(HeaderUserRole, string(actor.Role))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// waitForOrder polls until the worker has stored the order.
func (e *testEnv) waitForOrder(t *testing.T, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := e.store.GetOrder(context.Background(), id)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
