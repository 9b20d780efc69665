package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, 1, HTTPConfig{})
	var body map[string]string
	assert.Equal(t, http.StatusOK, env.do(t, domain.Actor{}, http.MethodGet, "/healthz", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestIdentityRequired(t *testing.T) {
	env := newTestEnv(t, 1, HTTPConfig{})

	code := env.do(t, domain.Actor{}, http.MethodPost, "/api/orders", CheckoutHTTPRequest{RequestID: "r", ProductID: "product-1", Quantity: 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code = env.do(t, domain.Actor{ID: "x", Role: "superuser"}, http.MethodGet, "/api/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// browsing is public
	var products []domain.Product
	assert.Equal(t, http.StatusOK, env.do(t, domain.Actor{}, http.MethodGet, "/api/products", nil, &products))
	assert.Len(t, products, 1)
}

func TestCheckoutAndEscrowOverHTTP(t *testing.T) {
	env := newTestEnv(t, 3, HTTPConfig{})
	req := CheckoutHTTPRequest{RequestID: "req-1", ProductID: "product-1", Quantity: 2}

	var placed CheckoutHTTPResponse
	require.Equal(t, http.StatusAccepted, env.do(t, buyer, http.MethodPost, "/api/orders", req, &placed))
	require.True(t, placed.Success)
	require.NotNil(t, placed.Order)
	assert.Equal(t, int64(5000), placed.Order.TotalCents)

	var dup CheckoutHTTPResponse
	assert.Equal(t, http.StatusConflict, env.do(t, buyer, http.MethodPost, "/api/orders", req, &dup))
	assert.Equal(t, "duplicate request", dup.Message)

	var soldOut CheckoutHTTPResponse
	assert.Equal(t, http.StatusGone, env.do(t, buyer, http.MethodPost, "/api/orders",
		CheckoutHTTPRequest{RequestID: "req-2", ProductID: "product-1", Quantity: 2}, &soldOut))
	assert.Equal(t, "sold out", soldOut.Message)

	id := placed.Order.ID
	env.waitForOrder(t, id)

	var order domain.Order
	require.Equal(t, http.StatusOK, env.do(t, buyer, http.MethodGet, "/api/orders/"+id, nil, &order))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, http.StatusForbidden, env.do(t, buyer2, http.MethodGet, "/api/orders/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, buyer, http.MethodGet, "/api/orders/missing", nil, nil))

	assert.Equal(t, http.StatusForbidden, env.do(t, seller, http.MethodPost, "/api/orders/"+id+"/pay", nil, nil))
	require.Equal(t, http.StatusOK, env.do(t, buyer, http.MethodPost, "/api/orders/"+id+"/pay", nil, &order))
	assert.Equal(t, domain.EscrowStatusHeld, order.EscrowStatus)
	assert.Equal(t, http.StatusConflict, env.do(t, buyer, http.MethodPost, "/api/orders/"+id+"/cancel", nil, nil))

	require.Equal(t, http.StatusOK, env.do(t, buyer, http.MethodPost, "/api/orders/"+id+"/dispute", nil, &order))
	assert.Equal(t, domain.OrderStatusDisputed, order.Status)

	assert.Equal(t, http.StatusForbidden, env.do(t, buyer, http.MethodPost, "/api/admin/orders/"+id+"/resolve",
		map[string]string{"outcome": "refund"}, nil))
	require.Equal(t, http.StatusOK, env.do(t, admin, http.MethodPost, "/api/admin/orders/"+id+"/resolve",
		map[string]string{"outcome": "refund"}, &order))
	assert.Equal(t, domain.OrderStatusRefunded, order.Status)

	var orders []domain.Order
	require.Equal(t, http.StatusOK, env.do(t, seller, http.MethodGet, "/api/orders", nil, &orders))
	assert.Len(t, orders, 1)
}

func TestNegotiationOverHTTP(t *testing.T) {
	env := newTestEnv(t, 5, HTTPConfig{})

	var n domain.NegotiationRequest
	require.Equal(t, http.StatusCreated, env.do(t, buyer, http.MethodPost, "/api/negotiations",
		service.ProposeInput{ProductID: "product-1", Quantity: 1, OfferPriceCents: 1800}, &n))
	assert.Equal(t, domain.NegotiationStatusPending, n.Status)

	require.Equal(t, http.StatusOK, env.do(t, seller, http.MethodPost, "/api/negotiations/"+n.ID+"/counter",
		counterRequest{PriceCents: 2200}, &n))
	assert.Equal(t, domain.NegotiationStatusCountered, n.Status)

	require.Equal(t, http.StatusOK, env.do(t, buyer, http.MethodPost, "/api/negotiations/"+n.ID+"/accept-counter", nil, &n))
	assert.Equal(t, int64(2200), n.AgreedPriceCents)

	var placed CheckoutHTTPResponse
	require.Equal(t, http.StatusAccepted, env.do(t, buyer, http.MethodPost, "/api/orders",
		CheckoutHTTPRequest{RequestID: "neg-1", ProductID: "product-1", Quantity: 1, NegotiationID: n.ID}, &placed))
	assert.Equal(t, int64(2200), placed.Order.TotalCents)
}

func TestProductAndAdminRoutes(t *testing.T) {
	env := newTestEnv(t, 1, HTTPConfig{})

	assert.Equal(t, http.StatusForbidden, env.do(t, buyer, http.MethodPost, "/api/products",
		service.ProductInput{Name: "Chair", PriceCents: 100}, nil))

	var p domain.Product
	require.Equal(t, http.StatusCreated, env.do(t, seller, http.MethodPost, "/api/products",
		service.ProductInput{Name: "Chair", PriceCents: 100, Stock: 2}, &p))
	require.Equal(t, http.StatusOK, env.do(t, seller, http.MethodPost, "/api/products/"+p.ID+"/stock", stockRequest{Delta: 3}, &p))
	assert.Equal(t, 5, p.Stock)

	var got domain.Product
	require.Equal(t, http.StatusOK, env.do(t, domain.Actor{}, http.MethodGet, "/api/products/"+p.ID, nil, &got))
	assert.Equal(t, "Chair", got.Name)

	var s domain.Seller
	require.Equal(t, http.StatusCreated, env.do(t, buyer2, http.MethodPost, "/api/sellers",
		service.RegisterSellerInput{Name: "Bo", Email: "bo@example.com", StoreName: "Bo's"}, &s))
	assert.Equal(t, buyer2.ID, s.ID)
	assert.Equal(t, http.StatusConflict, env.do(t, buyer, http.MethodPost, "/api/sellers",
		service.RegisterSellerInput{Name: "Bo again", Email: "BO@example.com", StoreName: "Bo's"}, nil))

	assert.Equal(t, http.StatusForbidden, env.do(t, seller, http.MethodPost, "/api/admin/sellers/"+s.ID+"/approve", nil, nil))
	require.Equal(t, http.StatusOK, env.do(t, admin, http.MethodPost, "/api/admin/sellers/"+s.ID+"/approve", nil, &s))
	assert.Equal(t, domain.SellerStatusApproved, s.Status)

	var summary domain.PlatformSummary
	assert.Equal(t, http.StatusOK, env.do(t, admin, http.MethodGet, "/api/admin/summary", nil, &summary))

	var bal domain.Balance
	assert.Equal(t, http.StatusOK, env.do(t, seller, http.MethodGet, "/api/balance", nil, &bal))
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, seller, http.MethodPost, "/api/payouts", payoutRequest{AmountCents: 500}, nil))
}

func TestSupportOverHTTP(t *testing.T) {
	env := newTestEnv(t, 1, HTTPConfig{})

	var view service.ThreadView
	require.Equal(t, http.StatusCreated, env.do(t, buyer, http.MethodPost, "/api/support/threads",
		service.OpenThreadInput{Subject: "Help", Concierge: true}, &view))

	var msgs []domain.SupportMessage
	require.Equal(t, http.StatusCreated, env.do(t, buyer, http.MethodPost, "/api/support/threads/"+view.ID+"/messages",
		messageRequest{Body: "How do refunds work?"}, &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleConcierge, msgs[1].SenderRole)

	assert.Equal(t, http.StatusForbidden, env.do(t, buyer2, http.MethodGet, "/api/support/threads/"+view.ID, nil, nil))
	assert.Equal(t, http.StatusOK, env.do(t, buyer, http.MethodPost, "/api/support/threads/"+view.ID+"/close", nil, nil))
	assert.Equal(t, http.StatusConflict, env.do(t, buyer, http.MethodPost, "/api/support/threads/"+view.ID+"/messages",
		messageRequest{Body: "still there?"}, nil))
}

func TestPricingOverHTTP(t *testing.T) {
	env := newTestEnv(t, 1, HTTPConfig{PricingRateLimit: 3, PricingRateWindow: time.Minute})

	var analysis analysisResponse
	require.Equal(t, http.StatusOK, env.do(t, domain.Actor{}, http.MethodPost, "/api/pricing",
		domain.PricingRequest{ProductName: "lamp", AnchorPrice: 50}, &analysis))
	assert.Equal(t, 30.0, analysis.SuggestedPrice)
	assert.Equal(t, 25.0, analysis.MinPrice)
	assert.True(t, analysis.Clamped)

	var errBody errorResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, domain.Actor{}, http.MethodPost, "/api/pricing",
		domain.PricingRequest{}, &errBody))

	env.provider.Response.Content = "no idea"
	assert.Equal(t, http.StatusBadGateway, env.do(t, domain.Actor{}, http.MethodPost, "/api/pricing",
		domain.PricingRequest{ProductName: "chair"}, &errBody))
	assert.Equal(t, "failed to parse model response", errBody.Error)
	assert.Equal(t, "no idea", errBody.Raw)

	assert.Equal(t, http.StatusTooManyRequests, env.do(t, domain.Actor{}, http.MethodPost, "/api/pricing",
		domain.PricingRequest{ProductName: "chair"}, nil))
}

func TestPricingRateLimitKeys(t *testing.T) {
	env := newTestEnv(t, 1, HTTPConfig{PricingRateLimit: 2, PricingRateWindow: time.Minute})

	anonymous := func(forwardedFor string) int {
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/pricing",
			strings.NewReader(`{"productName":"lamp"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	// rotating a forged X-Forwarded-For does not buy more requests
	assert.Equal(t, http.StatusOK, anonymous("10.0.0.1"))
	assert.Equal(t, http.StatusOK, anonymous("10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, anonymous("10.0.0.3"))

	// an identified caller is limited on its own user id
	req := domain.PricingRequest{ProductName: "lamp"}
	assert.Equal(t, http.StatusOK, env.do(t, buyer, http.MethodPost, "/api/pricing", req, nil))
	assert.Equal(t, http.StatusOK, env.do(t, buyer, http.MethodPost, "/api/pricing", req, nil))
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, buyer, http.MethodPost, "/api/pricing", req, nil))
	assert.Equal(t, http.StatusOK, env.do(t, buyer2, http.MethodPost, "/api/pricing", req, nil))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("get: %w", domain.ErrConflict), http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrValidation, http.StatusBadRequest},
		{domain.ErrInsufficientStock, http.StatusGone},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrDuplicateRequest, http.StatusConflict},
		{domain.ErrLockHeld, http.StatusLocked},
		{service.ErrQueueClosed, http.StatusServiceUnavailable},
		{service.ErrUpstream, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}
