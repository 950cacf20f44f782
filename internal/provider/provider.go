// Package provider defines the Provider interface for communicating with LLMs,
// the sentinel errors backends map their failures to, and a retrying wrapper.
package provider

import "context"

// Provider is the interface for communicating with an LLM.
// Concrete implementations live in separate packages (e.g., provider.gemini)
// and typically also implement core.Module for lifecycle management.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing from the gateway.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Set is implemented by provider modules that expose one or more named
// providers. Each key becomes an evaluator key.
type Set interface {
	Providers() map[string]Provider
}
