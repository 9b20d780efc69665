package domain

type PricingMode string

const (
	PricingModeSuggest PricingMode = "suggest"
	PricingModeAnalyze PricingMode = "analyze"
)

type PricingRequest struct {
	ProductName string      `json:"productName"`
	Region      string      `json:"region"`
	Mode        PricingMode `json:"mode"`
	AnchorPrice float64     `json:"anchorPrice"`
}

type ProductSuggestion struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	SuggestedPrice float64 `json:"suggestedPrice"`
	Currency       string  `json:"currency"`
	Reason         string  `json:"reason"`
}

type PriceAnalysis struct {
	ProductName    string  `json:"productName"`
	Region         string  `json:"region"`
	Currency       string  `json:"currency"`
	SuggestedPrice float64 `json:"suggestedPrice"`
	MinPrice       float64 `json:"minPrice"`
	MaxPrice       float64 `json:"maxPrice"`
	Confidence     float64 `json:"confidence"`
	MarketTrend    string  `json:"marketTrend"`
	Reasoning      string  `json:"reasoning"`
}

// PricingResult carries exactly one of Suggestions or Analysis.
type PricingResult struct {
	Mode        PricingMode         `json:"mode"`
	Suggestions []ProductSuggestion `json:"suggestions,omitempty"`
	Analysis    *PriceAnalysis      `json:"analysis,omitempty"`
	Clamped     bool                `json:"clamped"`
}

// ClampRange returns the inclusive band around anchor within which model
// prices are accepted. ok is false when no anchor was supplied.
func ClampRange(anchor float64) (lo, hi float64, ok bool) {
	if anchor <= 0 {
		return 0, 0, false
	}
	return anchor * 0.5, anchor * 1.5, true
}

// ClampPrice pins price into [lo, hi]. changed reports whether it moved.
func ClampPrice(price, lo, hi float64) (float64, bool) {
	if price < lo {
		return lo, true
	}
	if price > hi {
		return hi, true
	}
	return price, false
}
