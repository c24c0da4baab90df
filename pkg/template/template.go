// Package template provides the stored prompt template model, the
// remote template store gateway, and the {{key}} placeholder resolver.
package template

import (
	"encoding/json"
	"strings"

	"github.com/entfalten/entfalten/pkg/api"
)

// Step is one stage of the fan-out sequence: a message list resolved
// once per fork with {item, ...input}.
type Step []api.Message

// StepList decodes the template "forEach" field, which may be either a
// single step (a message list) or an ordered sequence of steps (a list
// of message lists).
type StepList []Step

// UnmarshalJSON accepts both encodings. A bare message list becomes a
// single-step sequence.
func (s *StepList) UnmarshalJSON(data []byte) error {
	var steps []Step
	if err := json.Unmarshal(data, &steps); err == nil {
		*s = steps
		return nil
	}

	var single Step
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = StepList{single}
	return nil
}

// Template is a stored prompt specification, addressed by (category, id).
// Immutable once fetched; the gateway returns a fresh copy per request.
type Template struct {
	N         *int           `json:"n,omitempty"`
	MaxTokens *int           `json:"maxTokens,omitempty"`
	Model     string         `json:"model,omitempty"`
	Messages  []api.Message  `json:"messages,omitempty"`
	List      []string       `json:"list,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ForEach   StepList       `json:"forEach,omitempty"`
}

// EffectiveMessages returns the template's message list. When the
// compact "list" encoding is used instead of "messages", each entry is
// decoded as "role: content"; entries without a known role prefix
// default to the user role.
func (t *Template) EffectiveMessages() []api.Message {
	if len(t.Messages) > 0 {
		out := make([]api.Message, len(t.Messages))
		copy(out, t.Messages)
		return out
	}

	var out []api.Message
	for _, entry := range t.List {
		out = append(out, decodeListEntry(entry))
	}
	return out
}

// decodeListEntry parses one compact-list entry. A leading "system:",
// "user:", "assistant:" prefix selects the role; anything else is
// treated as user content verbatim.
func decodeListEntry(entry string) api.Message {
	if role, content, ok := strings.Cut(entry, ":"); ok {
		r := api.Role(strings.TrimSpace(strings.ToLower(role)))
		if api.ValidRole(r) {
			return api.Message{Role: r, Content: strings.TrimSpace(content)}
		}
	}
	return api.Message{Role: api.RoleUser, Content: entry}
}

// Set is a fetched template-set document keyed category → id → Template.
type Set map[string]map[string]*Template

// Lookup returns the template at (category, id), or nil when absent.
func (s Set) Lookup(category, id string) *Template {
	if byID, ok := s[category]; ok {
		return byID[id]
	}
	return nil
}
