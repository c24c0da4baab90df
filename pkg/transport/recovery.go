package transport

import (
	"context"
	"fmt"

	"github.com/entfalten/entfalten/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server error responses. The server continues to
// accept new requests after a panic is recovered.
func Recovery() Middleware {
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, req *api.CompletionRequest) (resp *api.CompletionResponse, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					resp = nil
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Complete(ctx, req)
		})
	}
}
