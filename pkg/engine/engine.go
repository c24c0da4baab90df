package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/auth"
	"github.com/entfalten/entfalten/pkg/conversation"
	"github.com/entfalten/entfalten/pkg/debug"
	"github.com/entfalten/entfalten/pkg/observability"
	"github.com/entfalten/entfalten/pkg/provider"
	"github.com/entfalten/entfalten/pkg/template"
	"github.com/entfalten/entfalten/pkg/transport"
)

// TemplateSource supplies stored templates and caller-referenced files.
// *template.Gateway is the production implementation.
type TemplateSource interface {
	FetchSet(ctx context.Context) (template.Set, error)
	Lookup(ctx context.Context, category, id string) (*template.Template, error)
	FetchFile(ctx context.Context, url string) (string, error)
}

// Ensure the gateway satisfies the source contract.
var _ TemplateSource = (*template.Gateway)(nil)

// Engine orchestrates request processing between the transport layer,
// the template store, the conversation store, and the completion
// backend.
type Engine struct {
	templates TemplateSource
	completer provider.Completer
	store     conversation.Store
	cfg       Config
}

// Ensure Engine implements transport.CompletionHandler at compile time.
var _ transport.CompletionHandler = (*Engine)(nil)

// New creates a new Engine. The template source and completer must not
// be nil. The store can be nil to disable conversation persistence.
func New(templates TemplateSource, completer provider.Completer, store conversation.Store, cfg Config) (*Engine, error) {
	if templates == nil {
		return nil, fmt.Errorf("engine: template source must not be nil")
	}
	if completer == nil {
		return nil, fmt.Errorf("engine: completer must not be nil")
	}
	return &Engine{
		templates: templates,
		completer: completer,
		store:     store,
		cfg:       cfg,
	}, nil
}

// Complete runs the full pipeline for one request: template lookup,
// conversation seeding, normalization, the root completion call, the
// declared fan-out steps, and the optional conversation write.
func (e *Engine) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	elevated := auth.Elevated(ctx)

	var tmpl *template.Template
	if req.Category != "" && req.ID != "" {
		var err error
		tmpl, err = e.templates.Lookup(ctx, req.Category, req.ID)
		if err != nil {
			return nil, err
		}
	}

	var fileText string
	if ref := req.QueryValue("file"); ref != "" {
		var err error
		fileText, err = e.templates.FetchFile(ctx, ref)
		if err != nil {
			return nil, err
		}
	}

	identity, opted := e.conversationIdentity(req)

	// Stored history seeds the message list only when the caller
	// supplied no explicit messages.
	var seed []api.Message
	if opted && len(req.Body.Messages) == 0 {
		rec, err := e.store.Read(ctx, identity)
		switch {
		case err == nil:
			seed = rec.Messages
			observability.ConversationOpsTotal.WithLabelValues("read", "success").Inc()
		case errors.Is(err, conversation.ErrNotFound):
			observability.ConversationOpsTotal.WithLabelValues("read", "success").Inc()
		default:
			observability.ConversationOpsTotal.WithLabelValues("read", "error").Inc()
			slog.Warn("conversation read failed", "identity", identity.Key(), "error", err)
		}
	}

	eff, err := e.normalize(req, tmpl, fileText, seed, elevated)
	if err != nil {
		return nil, err
	}

	// Root completion: a failure here aborts the whole request.
	rootResult, err := e.callBackend(ctx, eff, eff.Messages, eff.N)
	if err != nil {
		return nil, err
	}

	var rootText string
	if len(rootResult.Texts) > 0 {
		rootText = rootResult.Texts[0]
	}
	rootLines := CleanLines(rootText)

	traces := e.runSteps(ctx, eff, rootLines)

	lines := rootLines
	if len(traces) > 0 {
		lines = nil
		for _, f := range traces[len(traces)-1].Forks {
			lines = append(lines, f.Response...)
		}
	}

	if opted {
		history := append(append([]api.Message(nil), eff.Messages...),
			api.Message{Role: api.RoleAssistant, Content: rootText})
		if err := e.store.Write(ctx, identity, history); err != nil {
			// The completion already succeeded; a persistence failure is
			// reported but does not fail the request.
			observability.ConversationOpsTotal.WithLabelValues("write", "error").Inc()
			slog.Warn("conversation write failed", "identity", identity.Key(), "error", err)
		} else {
			observability.ConversationOpsTotal.WithLabelValues("write", "success").Inc()
		}
	}

	resp := &api.CompletionResponse{Response: lines}
	if req.Debug {
		resp.Completion = rootResult.Raw
		resp.Completions = traces
		resp.Functions = eff.Functions
		resp.InputMessages = eff.Messages
	}
	return resp, nil
}

// ListTemplates enumerates the fetched template set: ids grouped by
// category, both sorted.
func (e *Engine) ListTemplates(ctx context.Context) (*api.TemplateList, error) {
	set, err := e.templates.FetchSet(ctx)
	if err != nil {
		return nil, err
	}

	list := &api.TemplateList{Templates: make(map[string][]string, len(set))}
	for category, byID := range set {
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		list.Templates[category] = ids
	}
	return list, nil
}

// HealthCheck reports engine dependency health. Only the conversation
// store carries persistent connections worth probing.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.HealthCheck(ctx)
}

// conversationIdentity derives the store identity and reports whether
// the caller opted in to persistence.
func (e *Engine) conversationIdentity(req *api.CompletionRequest) (conversation.Identity, bool) {
	if e.store == nil {
		return conversation.Identity{}, false
	}

	opted := req.Body.Store
	if v := req.QueryValue("store"); v != "" {
		opted = v == "true" || v == "1"
	}
	if !opted {
		return conversation.Identity{}, false
	}

	user := req.QueryValue("user")
	if user == "" {
		user = req.Body.User
	}

	id := conversation.Identity{Origin: req.Origin, User: user}
	return id, id.Valid()
}

// callBackend issues one completion call and records provider metrics.
// n overrides the effective sample count; zero leaves it to the backend
// default.
func (e *Engine) callBackend(ctx context.Context, eff *EffectiveRequest, messages []api.Message, n int) (*provider.Result, error) {
	start := time.Now()
	result, err := e.completer.Complete(ctx, &provider.Request{
		Model:       eff.Model,
		Messages:    messages,
		N:           n,
		MaxTokens:   eff.MaxTokens,
		Temperature: eff.Temperature,
		Functions:   eff.Functions,
		User:        eff.User,
	})
	duration := time.Since(start)
	name := e.completer.Name()

	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(name, eff.Model, "error").Inc()
		observability.ProviderLatency.WithLabelValues(name, eff.Model).Observe(duration.Seconds())
		return nil, err
	}

	observability.ProviderRequestsTotal.WithLabelValues(name, eff.Model, "success").Inc()
	observability.ProviderLatency.WithLabelValues(name, eff.Model).Observe(duration.Seconds())
	observability.ProviderTokensTotal.WithLabelValues(name, eff.Model, "input").Add(float64(result.Usage.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues(name, eff.Model, "output").Add(float64(result.Usage.CompletionTokens))

	debug.Log("engine", "completion finished",
		"model", eff.Model,
		"choices", len(result.Texts),
		"duration_ms", duration.Milliseconds(),
	)

	return result, nil
}
