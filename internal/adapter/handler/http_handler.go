package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
	"github.com/rl1809/marketplace/internal/port"
)

// Services bundles the application services exposed over HTTP.
type Services struct {
	Catalog      *service.CatalogService
	Orders       *service.OrderService
	Escrow       *service.EscrowService
	Negotiations *service.NegotiationService
	Payouts      *service.PayoutService
	Support      *service.SupportService
	Pricing      *service.PricingService
}

type HTTPConfig struct {
	AllowedOrigins    []string
	RequestTimeout    time.Duration
	PricingRateLimit  int
	PricingRateWindow time.Duration
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

type HTTPHandler struct {
	svc     Services
	hub     *Hub
	limiter port.RateLimiter
	cfg     HTTPConfig
	logger  *zap.Logger
}

func NewHTTPHandler(svc Services, hub *Hub, limiter port.RateLimiter, cfg HTTPConfig, logger *zap.Logger) *HTTPHandler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.PricingRateWindow <= 0 {
		cfg.PricingRateWindow = time.Minute
	}
	return &HTTPHandler{
		svc:     svc,
		hub:     hub,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "http")),
	}
}

// Router builds the chi router for the public API.
func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if h.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	origins := h.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderUserID, HeaderUserRole},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.HealthCheck)

	// The websocket route sits outside the timeout middleware.
	if h.hub != nil {
		r.With(withActor).Get("/api/ws", h.hub.HandleWS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(h.cfg.RequestTimeout))

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/sellers", h.ListSellers)
		r.Get("/sellers/{id}", h.GetSeller)
		r.With(optionalActor, rateLimit(h.limiter, "pricing", h.cfg.PricingRateLimit, h.cfg.PricingRateWindow, h.logger)).
			Post("/pricing", h.Price)

		r.Group(func(r chi.Router) {
			r.Use(withActor)

			r.Post("/sellers", h.RegisterSeller)

			sellers := r.With(requireRole(domain.RoleSeller, domain.RoleAdmin))
			sellers.Post("/products", h.CreateProduct)
			sellers.Put("/products/{id}", h.UpdateProduct)
			sellers.Post("/products/{id}/archive", h.ArchiveProduct)
			sellers.Post("/products/{id}/stock", h.AdjustStock)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.Checkout)
				r.Get("/", h.ListOrders)
				r.Get("/{id}", h.GetOrder)
				r.Post("/{id}/pay", h.orderAction(h.svc.Escrow.Pay))
				r.Post("/{id}/ship", h.orderAction(h.svc.Escrow.Ship))
				r.Post("/{id}/confirm", h.orderAction(h.svc.Escrow.ConfirmDelivery))
				r.Post("/{id}/cancel", h.orderAction(h.svc.Escrow.Cancel))
				r.Post("/{id}/dispute", h.orderAction(h.svc.Escrow.Dispute))
			})

			r.Route("/negotiations", func(r chi.Router) {
				r.Post("/", h.ProposeNegotiation)
				r.Get("/", h.ListNegotiations)
				r.Get("/{id}", h.GetNegotiation)
				r.Post("/{id}/accept", h.negotiationAction(h.svc.Negotiations.Accept))
				r.Post("/{id}/reject", h.negotiationAction(h.svc.Negotiations.Reject))
				r.Post("/{id}/counter", h.CounterNegotiation)
				r.Post("/{id}/accept-counter", h.negotiationAction(h.svc.Negotiations.AcceptCounter))
				r.Post("/{id}/decline-counter", h.negotiationAction(h.svc.Negotiations.DeclineCounter))
				r.Post("/{id}/withdraw", h.negotiationAction(h.svc.Negotiations.Withdraw))
			})

			r.Get("/balance", h.Balance)
			r.Route("/payouts", func(r chi.Router) {
				r.Post("/", h.RequestPayout)
				r.Get("/", h.ListPayouts)
				r.Get("/{id}", h.GetPayout)
			})

			r.Route("/support/threads", func(r chi.Router) {
				r.Post("/", h.OpenThread)
				r.Get("/", h.ListThreads)
				r.Get("/{id}", h.GetThread)
				r.Post("/{id}/messages", h.PostMessage)
				r.Post("/{id}/close", h.CloseThread)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(domain.RoleAdmin))
				r.Post("/sellers/{id}/approve", h.sellerAction(h.svc.Catalog.ApproveSeller))
				r.Post("/sellers/{id}/suspend", h.sellerAction(h.svc.Catalog.SuspendSeller))
				r.Post("/orders/{id}/release", h.orderAction(h.svc.Escrow.Release))
				r.Post("/orders/{id}/resolve", h.ResolveDispute)
				r.Post("/payouts/{id}/paid", h.MarkPayoutPaid)
				r.Post("/payouts/{id}/reject", h.RejectPayout)
				r.Get("/summary", h.Summary)
				r.Get("/ledger", h.Ledger)
			})
		})
	})
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type CheckoutHTTPRequest struct {
	RequestID     string `json:"request_id"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	NegotiationID string `json:"negotiation_id,omitempty"`
}

type CheckoutHTTPResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   *domain.Order `json:"order,omitempty"`
}

// Checkout reserves stock and queues the order. The order is persisted
// asynchronously, so the response is 202.
func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, CheckoutHTTPResponse{Message: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.RequestID) == "" || req.ProductID == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, CheckoutHTTPResponse{Message: "missing required fields"})
		return
	}

	order, err := h.svc.Orders.Checkout(r.Context(), service.CheckoutRequest{
		RequestID:     req.RequestID,
		BuyerID:       actorFrom(r.Context()).ID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		NegotiationID: req.NegotiationID,
	})
	if err != nil {
		status := errorStatus(err)
		message := err.Error()
		switch {
		case errors.Is(err, domain.ErrDuplicateRequest):
			message = "duplicate request"
		case errors.Is(err, domain.ErrInsufficientStock):
			message = "sold out"
		case status == http.StatusInternalServerError:
			h.logger.Error("checkout failed", zap.String("request_id", req.RequestID), zap.Error(err))
			message = "internal error"
		}
		writeJSON(w, status, CheckoutHTTPResponse{Message: message})
		return
	}

	writeJSON(w, http.StatusAccepted, CheckoutHTTPResponse{
		Success: true,
		Message: "order placed successfully",
		Order:   order,
	})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Orders.GetOrder(r.Context(), actorFrom(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := listOpts(r)
	q := r.URL.Query()
	orders, err := h.svc.Orders.ListOrders(r.Context(), actorFrom(r.Context()), domain.OrderFilter{
		BuyerID:  q.Get("buyer_id"),
		SellerID: q.Get("seller_id"),
		Status:   domain.OrderStatus(q.Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type orderFunc func(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)

func (h *HTTPHandler) orderAction(fn orderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := fn(r.Context(), actorFrom(r.Context()), idParam(r))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

type resolveRequest struct {
	Outcome service.DisputeOutcome `json:"outcome"`
}

func (h *HTTPHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	order, err := h.svc.Escrow.ResolveDispute(r.Context(), actorFrom(r.Context()), idParam(r), req.Outcome)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
