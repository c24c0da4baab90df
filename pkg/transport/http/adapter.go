// Package http serves the entfalten gateway over HTTP. The adapter
// translates path segments, query parameters, and request bodies into
// completion requests and serializes responses as JSON.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/transport"
)

// Adapter serves the completion API over HTTP.
type Adapter struct {
	handler   transport.CompletionHandler
	completer transport.Completer // handler.Complete wrapped in middleware
	mux       *http.ServeMux
	config    Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     1 << 20, // 1 MB
		ShutdownTimeout: 30,
	}
}

// NewAdapter creates an HTTP adapter around the given handler.
// Middleware is applied to the completion operation in the given order.
func NewAdapter(handler transport.CompletionHandler, cfg Config, middlewares ...transport.Middleware) *Adapter {
	var completer transport.Completer = handler
	if len(middlewares) > 0 {
		completer = transport.Chain(middlewares...)(completer)
	}

	a := &Adapter{
		handler:   handler,
		completer: completer,
		mux:       http.NewServeMux(),
		config:    cfg,
	}

	a.mux.HandleFunc("GET /list", a.handleList)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /favicon.ico", a.handleFavicon)
	a.mux.HandleFunc("/", a.handleCompletion)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to
// integrate with an http.Server or test with httptest. The returned
// handler includes HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded to
// the response. After the handler runs, it checks the context for a
// request ID (set by the transport-level RequestID middleware) and adds
// it to the response headers if not already set.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleCompletion serves the path-addressed completion endpoint:
//
//	/{item}                    item only, no template
//	/{category}/{id}           stored template
//	/{category}/{id}/{item}    stored template plus item
func (a *Adapter) handleCompletion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("method", "method not allowed"),
			http.StatusMethodNotAllowed,
		)
		return
	}

	segments, err := pathSegments(r.URL.Path)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	if len(segments) == 0 {
		a.handleIndex(w, r)
		return
	}

	req := &api.CompletionRequest{
		Query:  flattenQuery(r.URL.Query()),
		Origin: requestOrigin(r),
	}

	switch len(segments) {
	case 1:
		req.Item = segments[0]
	case 2:
		req.Category, req.ID = segments[0], segments[1]
	case 3:
		req.Category, req.ID, req.Item = segments[0], segments[1], segments[2]
	default:
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("path", "at most three path segments are supported"),
			http.StatusNotFound,
		)
		return
	}

	if v := req.QueryValue("debug"); v == "true" || v == "1" {
		req.Debug = true
	}

	if r.Method == http.MethodPost {
		if !a.decodeBody(w, r, &req.Body) {
			return
		}
	}

	resp, err := a.completer.Complete(r.Context(), req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeBody decodes the request body into dst, writing an error
// response and returning false on failure. An empty body is accepted.
func (a *Adapter) decodeBody(w http.ResponseWriter, r *http.Request, dst *api.RequestBody) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	// An empty body is accepted; io.EOF marks a body with no content.
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
			http.StatusRequestEntityTooLarge,
		)
		return false
	}

	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
		http.StatusBadRequest,
	)
	return false
}

// handleIndex serves a small service description at the root.
func (a *Adapter) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "entfalten",
		"description": "template-driven completion orchestration gateway",
		"endpoints": map[string]string{
			"list":     "/list",
			"template": "/{category}/{id}",
			"item":     "/{category}/{id}/{item}",
			"health":   "/healthz",
		},
	})
}

// handleList serves the template enumeration endpoint.
func (a *Adapter) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := a.handler.ListTemplates(r.Context())
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleHealthz reports liveness and dependency health.
func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := a.handler.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFavicon answers browser favicon requests without content.
func (a *Adapter) handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// pathSegments splits and URL-decodes the request path.
func pathSegments(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return nil, api.NewInvalidRequestError("path", fmt.Sprintf("invalid path segment %q", p))
		}
		if decoded != "" {
			segments = append(segments, decoded)
		}
	}
	return segments, nil
}

// flattenQuery keeps the first value of each query parameter.
func flattenQuery(values url.Values) map[string]string {
	if len(values) == 0 {
		return nil
	}
	q := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			q[k] = v[0]
		}
	}
	return q
}

// requestOrigin derives the request origin (scheme://host), honoring
// forwarding proxies.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
