package llm

import (
	"context"
	"errors"
	"fmt"
)

// Generator abstracts language model providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a single-prompt completion request.
type Request struct {
	Prompt          string
	MaxOutputTokens int
	Temperature     float32
}

// ErrNotConfigured is returned when no provider credentials are set.
var ErrNotConfigured = errors.New("llm provider not configured")

// UpstreamError carries a non-2xx provider response.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm upstream status %d: %s", e.Status, e.Detail)
}

// Disabled is the Generator used when no provider is configured.
type Disabled struct{}

// Generate returns ErrNotConfigured.
func (Disabled) Generate(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}
