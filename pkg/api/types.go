package api

import "encoding/json"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single conversation turn. Content may contain {{key}}
// placeholders that are substituted by the template resolver.
type Message struct {
	Role    Role   `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// FunctionDecl declares a callable function forwarded opaquely to the
// completion backend. The gateway never executes functions itself.
type FunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// RequestBody is the optional JSON body of a completion request.
//
// Numeric fields are pointers so that "absent" and "zero" stay
// distinguishable during normalization (query > body > template).
type RequestBody struct {
	Messages    []Message      `json:"messages,omitempty"`
	Functions   []FunctionDecl `json:"functions,omitempty"`
	N           *int           `json:"n,omitempty"`
	MaxTokens   *int           `json:"maxTokens,omitempty"`
	Model       string         `json:"model,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	Store       bool           `json:"store,omitempty"`
	User        string         `json:"user,omitempty"`
	System      string         `json:"system,omitempty"`
}

// CompletionRequest is the fully assembled inbound request. The
// transport layer fills it from the URL path, the query string, and
// the decoded body before handing it to the engine.
type CompletionRequest struct {
	// Category and ID address a stored template. Both empty means the
	// request runs purely on caller-supplied messages.
	Category string
	ID       string

	// Item is the URL-decoded trailing path segment, if any. It becomes
	// the "item" substitution variable.
	Item string

	// Query holds the raw query parameters (first value wins).
	Query map[string]string

	// Origin is the request origin (scheme://host), one half of the
	// conversation store identity.
	Origin string

	Body RequestBody

	// Debug requests echo of completions, functions, and input messages.
	Debug bool
}

// QueryValue returns the named query parameter, or "" when absent.
func (r *CompletionRequest) QueryValue(key string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query[key]
}

// ForkTrace records one fork of a fan-out step: the extracted item it
// was forked on, the resolved input messages, the raw backend payload,
// and the cleaned response lines it contributed.
type ForkTrace struct {
	Item          string          `json:"item"`
	InputMessages []Message       `json:"inputMessages,omitempty"`
	Completion    json.RawMessage `json:"completion,omitempty"`
	Response      []string        `json:"response"`
	Error         string          `json:"error,omitempty"`
}

// StepTrace is the ordered fork list produced by one fan-out step.
type StepTrace struct {
	Forks []ForkTrace `json:"forks"`
}

// CompletionResponse is the outbound response shape.
//
// Response always carries the final flattened lines. The remaining
// fields are populated only when the caller asked for debug output.
type CompletionResponse struct {
	Response      []string        `json:"response"`
	Completion    json.RawMessage `json:"completion,omitempty"`
	Completions   []StepTrace     `json:"completions,omitempty"`
	Functions     []FunctionDecl  `json:"functions,omitempty"`
	InputMessages []Message       `json:"inputMessages,omitempty"`
}

// TemplateList is the response shape of the list endpoint: template ids
// grouped by category, both sorted.
type TemplateList struct {
	Templates map[string][]string `json:"templates"`
}
