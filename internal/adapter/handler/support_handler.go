package handler

import (
	"net/http"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

func (h *HTTPHandler) OpenThread(w http.ResponseWriter, r *http.Request) {
	var in service.OpenThreadInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	view, err := h.svc.Support.OpenThread(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *HTTPHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Support.GetThread(r.Context(), actorFrom(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	limit, offset := listOpts(r)
	threads, err := h.svc.Support.ListThreads(r.Context(), actorFrom(r.Context()), domain.ThreadFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: domain.ThreadStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

type messageRequest struct {
	Body string `json:"body"`
}

// PostMessage returns the stored message, followed by the concierge reply
// when one was generated.
func (h *HTTPHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	msgs, err := h.svc.Support.PostMessage(r.Context(), actorFrom(r.Context()), idParam(r), req.Body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msgs)
}

func (h *HTTPHandler) CloseThread(w http.ResponseWriter, r *http.Request) {
	thread, err := h.svc.Support.CloseThread(r.Context(), actorFrom(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}
