package handler

import (
	"context"
	"net/http"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

// RegisterSeller registers the caller as a pending seller.
func (h *HTTPHandler) RegisterSeller(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterSellerInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	in.ID = actorFrom(r.Context()).ID
	seller, err := h.svc.Catalog.RegisterSeller(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, seller)
}

func (h *HTTPHandler) GetSeller(w http.ResponseWriter, r *http.Request) {
	seller, err := h.svc.Catalog.GetSeller(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seller)
}

func (h *HTTPHandler) ListSellers(w http.ResponseWriter, r *http.Request) {
	limit, offset := listOpts(r)
	sellers, err := h.svc.Catalog.ListSellers(r.Context(), domain.SellerFilter{
		Status: domain.SellerStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sellers)
}

type sellerFunc func(ctx context.Context, actor domain.Actor, id string) (*domain.Seller, error)

func (h *HTTPHandler) sellerAction(fn sellerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seller, err := fn(r.Context(), actorFrom(r.Context()), idParam(r))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, seller)
	}
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	product, err := h.svc.Catalog.CreateProduct(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	product, err := h.svc.Catalog.UpdateProduct(r.Context(), actorFrom(r.Context()), idParam(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) ArchiveProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.Catalog.ArchiveProduct(r.Context(), actorFrom(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type stockRequest struct {
	Delta int `json:"delta"`
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	product, err := h.svc.Catalog.AdjustStock(r.Context(), actorFrom(r.Context()), idParam(r), req.Delta)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.Catalog.GetProduct(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// ListProducts browses the catalog. Only active listings are shown unless a
// status is asked for.
func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := listOpts(r)
	q := r.URL.Query()
	status := domain.ProductStatus(q.Get("status"))
	if status == "" {
		status = domain.ProductStatusActive
	}
	products, err := h.svc.Catalog.ListProducts(r.Context(), domain.ProductFilter{
		SellerID: q.Get("seller_id"),
		Category: q.Get("category"),
		Status:   status,
		Query:    q.Get("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}
