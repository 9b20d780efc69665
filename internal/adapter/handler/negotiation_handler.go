package handler

import (
	"context"
	"net/http"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

func (h *HTTPHandler) ProposeNegotiation(w http.ResponseWriter, r *http.Request) {
	var in service.ProposeInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	n, err := h.svc.Negotiations.Propose(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *HTTPHandler) GetNegotiation(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Negotiations.Get(r.Context(), actorFrom(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *HTTPHandler) ListNegotiations(w http.ResponseWriter, r *http.Request) {
	limit, offset := listOpts(r)
	q := r.URL.Query()
	list, err := h.svc.Negotiations.List(r.Context(), actorFrom(r.Context()), domain.NegotiationFilter{
		ProductID: q.Get("product_id"),
		Status:    domain.NegotiationStatus(q.Get("status")),
		OpenOnly:  q.Get("open") == "true",
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type negotiationFunc func(ctx context.Context, actor domain.Actor, id string) (*domain.NegotiationRequest, error)

func (h *HTTPHandler) negotiationAction(fn negotiationFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := fn(r.Context(), actorFrom(r.Context()), idParam(r))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

type counterRequest struct {
	PriceCents int64  `json:"price_cents"`
	Message    string `json:"message"`
}

func (h *HTTPHandler) CounterNegotiation(w http.ResponseWriter, r *http.Request) {
	var req counterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	n, err := h.svc.Negotiations.Counter(r.Context(), actorFrom(r.Context()), idParam(r), req.PriceCents, req.Message)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
