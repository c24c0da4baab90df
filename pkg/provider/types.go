package provider

import (
	"encoding/json"

	"github.com/entfalten/entfalten/pkg/api"
)

// Request is a fully normalized completion request. All precedence and
// policy decisions (parameter merging, token clamping, model tiering)
// happen before a Request is built; adapters send it as-is.
type Request struct {
	Model       string
	Messages    []api.Message
	N           int
	MaxTokens   int
	Temperature *float64
	Functions   []api.FunctionDecl
	User        string
}

// Result is the outcome of one completion call.
type Result struct {
	// Texts holds the assistant content of each choice, in choice order.
	Texts []string

	// Raw is the unmodified backend response payload, kept for debug
	// echo in responses.
	Raw json.RawMessage

	// Model is the model the backend reports having used.
	Model string

	Usage Usage
}

// Usage reports token consumption for one completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
