// Package provider abstracts the LLM completion backend. The interface
// is protocol-agnostic: each adapter handles its own backend protocol
// internally and reports failures as api.APIError values so callers can
// surface them unchanged.
package provider

import (
	"context"
)

// Completer performs a single non-streaming completion call.
//
// Implementations must be safe for concurrent use by multiple
// goroutines; the engine fans out many calls at once.
type Completer interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Complete performs one completion request and returns all choices.
	Complete(ctx context.Context, req *Request) (*Result, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
