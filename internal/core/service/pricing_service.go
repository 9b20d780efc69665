package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/llm"
	"github.com/rl1809/marketplace/internal/port"
)

const (
	DefaultPricingCacheTTL = 15 * time.Minute
	defaultRegion          = "global"
	maxProductNameLen      = 200
)

// ErrUpstream marks a failed call to the model provider.
var ErrUpstream = errors.New("pricing provider failed")

// ParseError is returned when the model answered but not with usable JSON.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return "failed to parse model response: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

type PricingService struct {
	provider llm.Provider
	cache    port.PricingCache
	logger   *zap.Logger
	ttl      time.Duration
}

func NewPricingService(provider llm.Provider, cache port.PricingCache, logger *zap.Logger, ttl time.Duration) *PricingService {
	if ttl <= 0 {
		ttl = DefaultPricingCacheTTL
	}
	return &PricingService{
		provider: provider,
		cache:    cache,
		logger:   logger.With(zap.String("component", "pricing"), zap.String("provider", provider.Name())),
		ttl:      ttl,
	}
}

func normalizePricingRequest(req domain.PricingRequest) (domain.PricingRequest, error) {
	req.ProductName = strings.TrimSpace(req.ProductName)
	if req.ProductName == "" {
		return req, fmt.Errorf("%w: productName is required", domain.ErrValidation)
	}
	if len(req.ProductName) > maxProductNameLen {
		return req, fmt.Errorf("%w: productName is too long", domain.ErrValidation)
	}
	req.Region = strings.TrimSpace(req.Region)
	if req.Region == "" {
		req.Region = defaultRegion
	}
	switch req.Mode {
	case domain.PricingModeSuggest, domain.PricingModeAnalyze:
	case "":
		req.Mode = domain.PricingModeAnalyze
	default:
		return req, fmt.Errorf("%w: mode must be suggest or analyze", domain.ErrValidation)
	}
	if req.AnchorPrice < 0 {
		req.AnchorPrice = 0
	}
	return req, nil
}

// pricingCacheKey length-prefixes the free-text parts so no name or region
// can spill into its neighbour.
func pricingCacheKey(req domain.PricingRequest) string {
	name := strings.ToLower(req.ProductName)
	region := strings.ToLower(req.Region)
	return fmt.Sprintf("%s|%d:%s|%d:%s", req.Mode, len(name), name, len(region), region)
}

func buildPricingPrompt(req domain.PricingRequest) string {
	hint := ""
	if req.AnchorPrice > 0 {
		hint = fmt.Sprintf(anchorHintTemplate, req.AnchorPrice)
	}
	if req.Mode == domain.PricingModeSuggest {
		return fmt.Sprintf(suggestPromptTemplate, req.Region, req.ProductName, hint)
	}
	return fmt.Sprintf(analyzePromptTemplate, req.ProductName, req.Region, req.ProductName, req.Region, hint)
}

// Price asks the model for suggestions or an analysis and clamps every price
// into the anchor band when an anchor is given.
func (s *PricingService) Price(ctx context.Context, req domain.PricingRequest) (*domain.PricingResult, error) {
	req, err := normalizePricingRequest(req)
	if err != nil {
		return nil, err
	}

	raw, err := s.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := decodePricing(req.Mode, raw)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	clampResult(result, req.AnchorPrice)
	if result.Analysis != nil {
		if result.Analysis.ProductName == "" {
			result.Analysis.ProductName = req.ProductName
		}
		if result.Analysis.Region == "" {
			result.Analysis.Region = req.Region
		}
	}
	return result, nil
}

// complete returns the model text for req, from cache when possible. Only
// output that decodes is cached.
func (s *PricingService) complete(ctx context.Context, req domain.PricingRequest) (string, error) {
	key := pricingCacheKey(req)
	if data, ok, err := s.cache.GetPricing(ctx, key); err != nil {
		s.logger.Warn("pricing cache read failed", zap.Error(err))
	} else if ok {
		return string(data), nil
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: pricingSystemPrompt},
			{Role: llm.RoleUser, Content: buildPricingPrompt(req)},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		s.logger.Error("provider call failed", zap.String("mode", string(req.Mode)), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if _, err := decodePricing(req.Mode, resp.Content); err == nil {
		if err := s.cache.SetPricing(ctx, key, []byte(resp.Content), s.ttl); err != nil {
			s.logger.Warn("pricing cache write failed", zap.Error(err))
		}
	}
	return resp.Content, nil
}

func decodePricing(mode domain.PricingMode, raw string) (*domain.PricingResult, error) {
	fragment, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	result := &domain.PricingResult{Mode: mode}

	if mode == domain.PricingModeSuggest {
		if strings.HasPrefix(fragment, "[") {
			if err := json.Unmarshal([]byte(fragment), &result.Suggestions); err != nil {
				return nil, err
			}
			return result, nil
		}
		var wrapped struct {
			Suggestions []domain.ProductSuggestion `json:"suggestions"`
		}
		if err := json.Unmarshal([]byte(fragment), &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Suggestions == nil {
			return nil, errors.New("no suggestions in response")
		}
		result.Suggestions = wrapped.Suggestions
		return result, nil
	}

	var analysis domain.PriceAnalysis
	if err := json.Unmarshal([]byte(fragment), &analysis); err != nil {
		return nil, err
	}
	result.Analysis = &analysis
	return result, nil
}

// extractJSON returns the first balanced JSON object or array in s, skipping
// prose and code fences around it. Brackets inside strings are ignored.
func extractJSON(s string) (string, error) {
	start := strings.IndexAny(s, "{[")
	for start >= 0 {
		if end := matchBracket(s, start); end > 0 {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", errors.New("no JSON value found")
}

// matchBracket returns the index closing the bracket at open, or -1.
func matchBracket(s string, open int) int {
	var stack []byte
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

func clampResult(r *domain.PricingResult, anchor float64) {
	lo, hi, ok := domain.ClampRange(anchor)

	for i := range r.Suggestions {
		if ok {
			var moved bool
			r.Suggestions[i].SuggestedPrice, moved = domain.ClampPrice(r.Suggestions[i].SuggestedPrice, lo, hi)
			r.Clamped = r.Clamped || moved
		}
	}

	a := r.Analysis
	if a == nil {
		return
	}
	if ok {
		var m1, m2, m3 bool
		a.SuggestedPrice, m1 = domain.ClampPrice(a.SuggestedPrice, lo, hi)
		a.MinPrice, m2 = domain.ClampPrice(a.MinPrice, lo, hi)
		a.MaxPrice, m3 = domain.ClampPrice(a.MaxPrice, lo, hi)
		r.Clamped = r.Clamped || m1 || m2 || m3
	}
	if a.MinPrice > a.SuggestedPrice {
		a.MinPrice = a.SuggestedPrice
	}
	if a.MaxPrice < a.SuggestedPrice {
		a.MaxPrice = a.SuggestedPrice
	}
	if a.Confidence < 0 {
		a.Confidence = 0
	} else if a.Confidence > 1 {
		a.Confidence = 1
	}
}
