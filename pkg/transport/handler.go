package transport

import (
	"context"

	"github.com/entfalten/entfalten/pkg/api"
)

// Completer handles the core completion operation. It is the contract
// middleware wraps.
type Completer interface {
	Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error)
}

// CompleterFunc is an adapter that allows using an ordinary function as
// a Completer.
type CompleterFunc func(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error)

// Complete calls f(ctx, req).
func (f CompleterFunc) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	return f(ctx, req)
}

// CompletionHandler is the full contract the HTTP adapter serves: the
// completion operation plus template enumeration and health reporting.
type CompletionHandler interface {
	Completer

	// ListTemplates enumerates the stored template set.
	ListTemplates(ctx context.Context) (*api.TemplateList, error)

	// HealthCheck reports dependency health.
	HealthCheck(ctx context.Context) error
}
