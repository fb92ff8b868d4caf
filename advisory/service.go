// Package advisory puts a cache and rate limiter in front of the
// text-generation service used to classify movement and phrase coaching tips,
// and falls back to deterministic text whenever the service is unavailable,
// throttled or misbehaving.
package advisory

import "context"

const DefaultModel = "gemini-2.5-flash"

// Request is one call to the advisory service.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Service is the external text generator. Implementations do not retry.
type Service interface {
	Classify(ctx context.Context, req Request) (string, error)
	GenerateTip(ctx context.Context, req Request) (string, error)
}
