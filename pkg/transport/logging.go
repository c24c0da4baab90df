package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/entfalten/entfalten/pkg/api"
)

// Logging returns middleware that emits structured log entries for each
// completion request. The log entry includes the template address, the
// request ID (from context), duration, and whether the request
// succeeded or failed.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			resp, err := next.Complete(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("category", req.Category),
				slog.String("template", req.ID),
				slog.String("item", req.Item),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				attrs = append(attrs, slog.Int("lines", len(resp.Response)))
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return resp, err
		})
	}
}
