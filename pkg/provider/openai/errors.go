package openai

import (
	"encoding/json"
	"fmt"

	"github.com/entfalten/entfalten/pkg/api"
)

// mapHTTPError converts a non-2xx backend response into an APIError.
// The raw payload is preserved when it is valid JSON so callers see the
// backend's own error shape.
func mapHTTPError(status int, body []byte) *api.APIError {
	message := extractErrorMessage(body)
	if message == "" {
		message = fmt.Sprintf("completion backend error (HTTP %d)", status)
	}

	var payload json.RawMessage
	if json.Valid(body) {
		payload = json.RawMessage(body)
	}

	return api.NewUpstreamError(message, payload)
}

// mapNetworkError converts a transport-level failure (connection
// refused, timeout, DNS) into an APIError.
func mapNetworkError(err error) *api.APIError {
	return api.NewUpstreamError(fmt.Sprintf("completion backend unreachable: %s", err.Error()), nil)
}

// extractErrorMessage pulls the message out of the backend's error
// envelope, if the body parses as one.
func extractErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var errResp chatErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return ""
}
