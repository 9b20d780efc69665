package handler

import (
	"net/http"

	"github.com/rl1809/marketplace/internal/core/domain"
)

// Price proxies to the pricing model. Suggest mode answers with
// {suggestions:[...]}; analyze mode answers with the flat analysis object.
func (h *HTTPHandler) Price(w http.ResponseWriter, r *http.Request) {
	var req domain.PricingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.Pricing.Price(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result.Mode == domain.PricingModeSuggest {
		writeJSON(w, http.StatusOK, map[string]any{
			"suggestions": result.Suggestions,
			"clamped":     result.Clamped,
		})
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{PriceAnalysis: *result.Analysis, Clamped: result.Clamped})
}

type analysisResponse struct {
	domain.PriceAnalysis
	Clamped bool `json:"clamped"`
}
