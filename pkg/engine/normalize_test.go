package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/provider"
	"github.com/entfalten/entfalten/pkg/template"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func newNormalizeEngine(t *testing.T) *Engine {
	t.Helper()
	completer := &fakeCompleter{respond: func(*provider.Request) (string, error) { return "", nil }}
	e, err := New(&fakeTemplates{set: template.Set{}}, completer, nil, Config{})
	require.NoError(t, err)
	return e
}

func TestNormalize_MaxTokensCeiling(t *testing.T) {
	e := newNormalizeEngine(t)

	req := &api.CompletionRequest{Body: api.RequestBody{MaxTokens: intp(5000)}}

	eff, err := e.normalize(req, nil, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1000, eff.MaxTokens, "non-elevated callers are clamped")

	eff, err = e.normalize(req, nil, "", nil, true)
	require.NoError(t, err)
	assert.Equal(t, 5000, eff.MaxTokens, "elevated callers keep their budget")
}

func TestNormalize_QueryBeatsBodyBeatsTemplate(t *testing.T) {
	e := newNormalizeEngine(t)

	tmpl := &template.Template{
		N:         intp(1),
		MaxTokens: intp(100),
		Model:     "template-model",
	}
	req := &api.CompletionRequest{
		Query: map[string]string{"n": "3", "model": "query-model"},
		Body: api.RequestBody{
			N:         intp(2),
			MaxTokens: intp(200),
			Model:     "body-model",
		},
	}

	eff, err := e.normalize(req, tmpl, "", nil, false)
	require.NoError(t, err)

	assert.Equal(t, 3, eff.N, "query n wins")
	assert.Equal(t, 200, eff.MaxTokens, "body maxTokens wins over template")
	assert.Equal(t, "query-model", eff.Model)
}

func TestNormalize_TemplateDefaultsApplyLast(t *testing.T) {
	e := newNormalizeEngine(t)

	tmpl := &template.Template{N: intp(4), MaxTokens: intp(300), Model: "template-model"}
	eff, err := e.normalize(&api.CompletionRequest{}, tmpl, "", nil, false)
	require.NoError(t, err)

	assert.Equal(t, 4, eff.N)
	assert.Equal(t, 300, eff.MaxTokens)
	assert.Equal(t, "template-model", eff.Model)
}

func TestNormalize_NonNumericParamsRejected(t *testing.T) {
	e := newNormalizeEngine(t)

	for _, tc := range []struct {
		name  string
		query map[string]string
	}{
		{"n", map[string]string{"n": "many"}},
		{"maxTokens", map[string]string{"maxTokens": "lots"}},
		{"temperature", map[string]string{"temperature": "warm"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.normalize(&api.CompletionRequest{Query: tc.query}, nil, "", nil, false)
			require.Error(t, err)

			var apiErr *api.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, api.ErrorTypeInvalidRequest, apiErr.Type)
		})
	}
}

func TestNormalize_HigherTierDowngradesSilently(t *testing.T) {
	e := newNormalizeEngine(t)

	eff, err := e.normalize(&api.CompletionRequest{
		Body: api.RequestBody{Model: "gpt-4-turbo"},
	}, nil, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", eff.Model)

	eff, err = e.normalize(&api.CompletionRequest{
		Body: api.RequestBody{Model: "gpt-4-turbo"},
	}, nil, "", nil, true)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo", eff.Model)
}

func TestNormalize_ReasoningModelAcceptsNoFunctions(t *testing.T) {
	e := newNormalizeEngine(t)

	// Without functions the model passes through.
	eff, err := e.normalize(&api.CompletionRequest{
		Body: api.RequestBody{Model: "o3-mini"},
	}, nil, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "o3-mini", eff.Model)

	// With functions it is rejected.
	_, err = e.normalize(&api.CompletionRequest{
		Body: api.RequestBody{
			Model:     "o3-mini",
			Functions: []api.FunctionDecl{{Name: "f"}},
		},
	}, nil, "", nil, false)
	require.Error(t, err)
}

func TestNormalize_ReasoningPatternBoundaries(t *testing.T) {
	e := newNormalizeEngine(t)
	fns := []api.FunctionDecl{{Name: "f"}}

	for _, tc := range []struct {
		model    string
		rejected bool
	}{
		{"o1", true},
		{"o1-mini", true},
		{"o3", true},
		{"o12-preview", true},
		{"open-model", false},
		{"gpt-3.5-turbo", false},
		{"olympus", false},
	} {
		_, err := e.normalize(&api.CompletionRequest{
			Body: api.RequestBody{Model: tc.model, Functions: fns},
		}, nil, "", nil, false)
		if tc.rejected {
			assert.Error(t, err, "model %s", tc.model)
		} else {
			assert.NoError(t, err, "model %s", tc.model)
		}
	}
}

func TestNormalize_ItemBecomesUserMessageOnlyWhenMissing(t *testing.T) {
	e := newNormalizeEngine(t)

	// No user message yet: the item is appended.
	eff, err := e.normalize(&api.CompletionRequest{Item: "a haiku"}, nil, "", nil, false)
	require.NoError(t, err)
	require.Len(t, eff.Messages, 2)
	assert.Equal(t, api.RoleSystem, eff.Messages[0].Role)
	assert.Equal(t, "a haiku", eff.Messages[1].Content)

	// A user message already exists: the item only feeds substitution.
	tmpl := &template.Template{
		Messages: []api.Message{{Role: api.RoleUser, Content: "Write about {{item}}"}},
	}
	eff, err = e.normalize(&api.CompletionRequest{Item: "rivers"}, tmpl, "", nil, false)
	require.NoError(t, err)
	require.Len(t, eff.Messages, 2)
	assert.Equal(t, "Write about rivers", eff.Messages[1].Content)
}

func TestNormalize_FileAppendedUnlessReferenced(t *testing.T) {
	e := newNormalizeEngine(t)

	// No {{file}} reference: the file text becomes a trailing user message.
	eff, err := e.normalize(&api.CompletionRequest{Item: "summarize"}, nil, "file contents", nil, false)
	require.NoError(t, err)
	last := eff.Messages[len(eff.Messages)-1]
	assert.Equal(t, "file contents", last.Content)

	// A {{file}} reference consumes the text via substitution instead.
	tmpl := &template.Template{
		Messages: []api.Message{{Role: api.RoleUser, Content: "Summarize: {{file}}"}},
	}
	eff, err = e.normalize(&api.CompletionRequest{}, tmpl, "file contents", nil, false)
	require.NoError(t, err)
	require.Len(t, eff.Messages, 2)
	assert.Equal(t, "Summarize: file contents", eff.Messages[1].Content)
}

func TestNormalize_SystemMessagePrecedence(t *testing.T) {
	e := newNormalizeEngine(t)

	// Default when nothing is supplied.
	eff, err := e.normalize(&api.CompletionRequest{Item: "hi"}, nil, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful assistant.", eff.Messages[0].Content)

	// Body system beats the default.
	eff, err = e.normalize(&api.CompletionRequest{
		Item: "hi",
		Body: api.RequestBody{System: "Be brief."},
	}, nil, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", eff.Messages[0].Content)

	// Query system beats both.
	eff, err = e.normalize(&api.CompletionRequest{
		Item:  "hi",
		Query: map[string]string{"system": "Be verbose."},
		Body:  api.RequestBody{System: "Be brief."},
	}, nil, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Be verbose.", eff.Messages[0].Content)

	// An existing system message is never duplicated.
	eff, err = e.normalize(&api.CompletionRequest{
		Body: api.RequestBody{Messages: []api.Message{
			{Role: api.RoleSystem, Content: "already here"},
			{Role: api.RoleUser, Content: "hi"},
		}},
	}, nil, "", nil, false)
	require.NoError(t, err)
	require.Len(t, eff.Messages, 2)
	assert.Equal(t, "already here", eff.Messages[0].Content)
}

func TestNormalize_QueryParamsFeedSubstitution(t *testing.T) {
	e := newNormalizeEngine(t)

	tmpl := &template.Template{
		Messages: []api.Message{{Role: api.RoleUser, Content: "Write a {{form}} about {{topic}}"}},
		Input:    map[string]any{"form": "poem", "topic": "rain"},
	}
	eff, err := e.normalize(&api.CompletionRequest{
		Query: map[string]string{
			"topic":     "rivers", // overrides the template default
			"maxTokens": "50",     // reserved, never substituted
			"debug":     "true",   // reserved
		},
	}, tmpl, "", nil, false)
	require.NoError(t, err)

	assert.Equal(t, "Write a poem about rivers", eff.Messages[1].Content)
	assert.NotContains(t, eff.Input, "maxTokens")
	assert.NotContains(t, eff.Input, "debug")
}

func TestNormalize_BodyMessagesBeatSeedAndTemplate(t *testing.T) {
	e := newNormalizeEngine(t)

	tmpl := &template.Template{
		Messages: []api.Message{{Role: api.RoleUser, Content: "from template"}},
	}
	seed := []api.Message{
		{Role: api.RoleSystem, Content: "seeded"},
		{Role: api.RoleUser, Content: "from history"},
	}

	eff, err := e.normalize(&api.CompletionRequest{
		Body: api.RequestBody{Messages: []api.Message{{Role: api.RoleUser, Content: "from body"}}},
	}, tmpl, "", seed, false)
	require.NoError(t, err)
	require.Len(t, eff.Messages, 2)
	assert.Equal(t, "from body", eff.Messages[1].Content)

	eff, err = e.normalize(&api.CompletionRequest{}, tmpl, "", seed, false)
	require.NoError(t, err)
	require.Len(t, eff.Messages, 2)
	assert.Equal(t, "from history", eff.Messages[1].Content)
}

func TestNormalize_TemperatureQueryOverridesBody(t *testing.T) {
	e := newNormalizeEngine(t)

	eff, err := e.normalize(&api.CompletionRequest{
		Query: map[string]string{"temperature": "0.2"},
		Body:  api.RequestBody{Temperature: floatp(0.9)},
	}, nil, "", nil, false)
	require.NoError(t, err)
	require.NotNil(t, eff.Temperature)
	assert.InDelta(t, 0.2, *eff.Temperature, 1e-9)

	eff, err = e.normalize(&api.CompletionRequest{
		Body: api.RequestBody{Temperature: floatp(0.9)},
	}, nil, "", nil, false)
	require.NoError(t, err)
	require.NotNil(t, eff.Temperature)
	assert.InDelta(t, 0.9, *eff.Temperature, 1e-9)
}

func TestNormalize_CompactListTemplate(t *testing.T) {
	e := newNormalizeEngine(t)

	tmpl := &template.Template{
		List: []string{"system: You rhyme.", "Write about {{item}}"},
	}
	eff, err := e.normalize(&api.CompletionRequest{Item: "the sea"}, tmpl, "", nil, false)
	require.NoError(t, err)

	require.Len(t, eff.Messages, 2)
	assert.Equal(t, api.RoleSystem, eff.Messages[0].Role)
	assert.Equal(t, "You rhyme.", eff.Messages[0].Content)
	assert.Equal(t, "Write about the sea", eff.Messages[1].Content)
}
