package handler

import (
	"net/http"

	"github.com/rl1809/marketplace/internal/core/domain"
)

// Balance reports the caller's balance; admins may pass seller_id.
func (h *HTTPHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	sellerID := actor.ID
	if v := r.URL.Query().Get("seller_id"); v != "" {
		sellerID = v
	}
	bal, err := h.svc.Payouts.Balance(r.Context(), actor, sellerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

type payoutRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func (h *HTTPHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.Payouts.RequestPayout(r.Context(), actorFrom(r.Context()), req.AmountCents)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *HTTPHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Payouts.Get(r.Context(), actorFrom(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	limit, offset := listOpts(r)
	q := r.URL.Query()
	list, err := h.svc.Payouts.List(r.Context(), actorFrom(r.Context()), domain.PayoutFilter{
		SellerID: q.Get("seller_id"),
		Status:   domain.PayoutStatus(q.Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type markPaidRequest struct {
	Reference string `json:"reference"`
}

func (h *HTTPHandler) MarkPayoutPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.Payouts.MarkPaid(r.Context(), actorFrom(r.Context()), idParam(r), req.Reference)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type rejectPayoutRequest struct {
	Note string `json:"note"`
}

func (h *HTTPHandler) RejectPayout(w http.ResponseWriter, r *http.Request) {
	var req rejectPayoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.Payouts.Reject(r.Context(), actorFrom(r.Context()), idParam(r), req.Note)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Payouts.Summary(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	limit, offset := listOpts(r)
	q := r.URL.Query()
	entries, err := h.svc.Payouts.Ledger(r.Context(), actorFrom(r.Context()), domain.LedgerFilter{
		Account: q.Get("account"),
		OrderID: q.Get("order_id"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
