package generator

import (
	"context"
	"time"
)

// Client sends a composed request to the model provider. Failures are
// reported through GenerationResult.Reason, never as an error.
type Client interface {
	Generate(ctx context.Context, req GenerationRequest) GenerationResult
}

// LLMSettings is the base configuration handed to a Client implementation.
type LLMSettings struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 120 * time.Second
