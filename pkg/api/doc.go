// Package api defines the wire types for the entfalten completion
// gateway: inbound completion requests, the outbound response shape,
// and the structured error taxonomy shared by all layers.
//
// The types here are transport-agnostic. The HTTP adapter in
// pkg/transport/http assembles a CompletionRequest from path segments,
// query parameters, and the JSON body; the engine consumes it and
// produces a CompletionResponse or an *APIError.
package api
