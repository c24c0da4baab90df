package engine

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/template"
)

// reasoningModelPattern matches the numeric-suffixed reasoning model
// families (o1, o1-mini, o3, o4-mini, ...). These models reject
// function declarations.
var reasoningModelPattern = regexp.MustCompile(`^o[0-9]+(-|$)`)

// higherTierPattern matches the higher-capability model tier that is
// reserved for elevated callers.
var higherTierPattern = regexp.MustCompile(`^gpt-4`)

// EffectiveRequest is the normalized, merged configuration actually
// sent to the completion backend, plus the fan-out plan derived from
// the template.
type EffectiveRequest struct {
	Model       string
	Messages    []api.Message
	N           int // 0 means unset
	MaxTokens   int // 0 means unset
	Temperature *float64
	Functions   []api.FunctionDecl
	User        string

	// Steps is the declared fan-out sequence, empty when the template
	// declares none.
	Steps template.StepList

	// Input is the merged substitution mapping; forks extend it with
	// their item.
	Input map[string]any
}

// reservedParams are query keys consumed by normalization itself; they
// never become substitution variables.
var reservedParams = map[string]bool{
	"n":           true,
	"maxTokens":   true,
	"model":       true,
	"temperature": true,
	"store":       true,
	"user":        true,
	"system":      true,
	"debug":       true,
	"file":        true,
}

// normalize merges query parameters, body fields, and template defaults
// into an EffectiveRequest. Precedence: query > body > template.
//
// seed is the stored conversation history; it backs the message list
// only when the caller supplied no explicit messages.
func (e *Engine) normalize(req *api.CompletionRequest, tmpl *template.Template, fileText string, seed []api.Message, elevated bool) (*EffectiveRequest, error) {
	eff := &EffectiveRequest{
		Functions: req.Body.Functions,
	}
	if tmpl != nil {
		eff.Steps = tmpl.ForEach
	}

	// n and maxTokens: query > body > template, integers only.
	n, err := intParam(req.QueryValue("n"), "n")
	if err != nil {
		return nil, err
	}
	switch {
	case n != nil:
		eff.N = *n
	case req.Body.N != nil:
		eff.N = *req.Body.N
	case tmpl != nil && tmpl.N != nil:
		eff.N = *tmpl.N
	}

	maxTokens, err := intParam(req.QueryValue("maxTokens"), "maxTokens")
	if err != nil {
		return nil, err
	}
	switch {
	case maxTokens != nil:
		eff.MaxTokens = *maxTokens
	case req.Body.MaxTokens != nil:
		eff.MaxTokens = *req.Body.MaxTokens
	case tmpl != nil && tmpl.MaxTokens != nil:
		eff.MaxTokens = *tmpl.MaxTokens
	}
	if ceiling := e.cfg.maxTokensCeiling(); eff.MaxTokens > ceiling && !elevated {
		eff.MaxTokens = ceiling
	}

	temp, err := floatParam(req.QueryValue("temperature"), "temperature")
	if err != nil {
		return nil, err
	}
	if temp != nil {
		eff.Temperature = temp
	} else {
		eff.Temperature = req.Body.Temperature
	}

	// Model: query > body > template > default.
	switch {
	case req.QueryValue("model") != "":
		eff.Model = req.QueryValue("model")
	case req.Body.Model != "":
		eff.Model = req.Body.Model
	case tmpl != nil && tmpl.Model != "":
		eff.Model = tmpl.Model
	default:
		eff.Model = e.cfg.defaultModel()
	}

	// Reasoning-tier models reject function declarations. Fail before
	// any remote call.
	if reasoningModelPattern.MatchString(eff.Model) && len(eff.Functions) > 0 {
		return nil, api.NewInvalidRequestError("model",
			fmt.Sprintf("model %s does not support function declarations", eff.Model))
	}

	// Higher-capability tier requires elevation; downgrade silently.
	if higherTierPattern.MatchString(eff.Model) && !elevated {
		eff.Model = e.cfg.defaultModel()
	}

	if u := req.QueryValue("user"); u != "" {
		eff.User = u
	} else {
		eff.User = req.Body.User
	}

	// Message list: explicit body messages win, then stored history,
	// then the template's own messages.
	switch {
	case len(req.Body.Messages) > 0:
		eff.Messages = append([]api.Message(nil), req.Body.Messages...)
	case len(seed) > 0:
		eff.Messages = append([]api.Message(nil), seed...)
	case tmpl != nil:
		eff.Messages = tmpl.EffectiveMessages()
	}

	// Substitution mapping: template defaults overlaid with free query
	// parameters.
	eff.Input = make(map[string]any)
	if tmpl != nil {
		for k, v := range tmpl.Input {
			eff.Input[k] = v
		}
	}
	for k, v := range req.Query {
		if !reservedParams[k] {
			eff.Input[k] = v
		}
	}

	// Path item: becomes the item variable and, when no user message
	// exists yet, a trailing user message.
	if req.Item != "" {
		eff.Input["item"] = req.Item
		if !hasRole(eff.Messages, api.RoleUser) {
			eff.Messages = append(eff.Messages, api.Message{Role: api.RoleUser, Content: req.Item})
		}
	}

	// Fetched file: becomes the file variable; appended as a user
	// message unless some message already references {{file}}. The
	// guard holds for an empty message list.
	if fileText != "" {
		eff.Input["file"] = fileText
		if !template.References(eff.Messages, "file") {
			eff.Messages = append(eff.Messages, api.Message{Role: api.RoleUser, Content: fileText})
		}
	}

	// Synthesize a leading system message when absent.
	if !hasRole(eff.Messages, api.RoleSystem) {
		system := req.QueryValue("system")
		if system == "" {
			system = req.Body.System
		}
		if system == "" {
			system = e.cfg.defaultSystem()
		}
		eff.Messages = append([]api.Message{{Role: api.RoleSystem, Content: system}}, eff.Messages...)
	}

	// Final substitution pass over the assembled list.
	if len(eff.Input) > 0 {
		eff.Messages = template.Resolve(eff.Messages, eff.Input)
	}

	return eff, nil
}

// hasRole reports whether any message carries the given role.
func hasRole(messages []api.Message, role api.Role) bool {
	for _, m := range messages {
		if m.Role == role {
			return true
		}
	}
	return false
}

// intParam parses an optional integer query parameter. An empty value
// yields nil; a non-numeric value yields a validation error.
func intParam(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, api.NewInvalidRequestError(name, fmt.Sprintf("%q is not a valid integer", raw))
	}
	return &v, nil
}

// floatParam parses an optional float query parameter.
func floatParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, api.NewInvalidRequestError(name, fmt.Sprintf("%q is not a valid number", raw))
	}
	return &v, nil
}
