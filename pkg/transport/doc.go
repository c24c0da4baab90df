// Package transport defines the handler interfaces and middleware chain
// for the entfalten HTTP transport layer.
//
// The transport layer bridges external clients and the orchestration
// engine. It deserializes incoming requests into the core protocol types
// defined in pkg/api, dispatches them for processing, and serializes
// responses back to the client as JSON.
//
// # Handler Interfaces
//
//   - Completer handles the core completion operation; middleware wraps
//     this interface.
//   - CompletionHandler extends Completer with template enumeration and
//     health checks, the full contract the HTTP adapter serves.
//
// # Middleware
//
// The middleware chain wraps Completer with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog.
package transport
