package transport

import (
	"context"

	"github.com/entfalten/entfalten/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// request. If the incoming request context already carries a request ID
// (set by the HTTP adapter from the X-Request-ID header), that value is
// used. Otherwise, a new unique ID is generated.
//
// The request ID is stored in the context and can be retrieved with
// RequestIDFromContext.
func RequestID() Middleware {
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
			id := RequestIDFromContext(ctx)
			if id == "" {
				id = api.NewRequestID()
				ctx = ContextWithRequestID(ctx, id)
			}
			return next.Complete(ctx, req)
		})
	}
}
