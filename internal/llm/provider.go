// Package llm wraps hosted language model APIs behind one Provider interface.
package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by the disabled provider.
var ErrNotConfigured = errors.New("llm provider not configured")

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// Disabled answers every request with ErrNotConfigured. It stands in when no
// API key is present so the rest of the server still starts.
type Disabled struct{}

func (Disabled) Name() string { return "disabled" }

func (Disabled) Complete(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return nil, ErrNotConfigured
}
