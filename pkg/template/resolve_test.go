package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entfalten/entfalten/pkg/api"
)

func TestResolve_Substitutes(t *testing.T) {
	messages := []api.Message{
		{Role: api.RoleSystem, Content: "{{x}}"},
		{Role: api.RoleUser, Name: "alice", Content: "expand {{item}} in {{lang}}"},
	}
	vars := map[string]any{"x": "A", "item": "topic one", "lang": "go"}

	got := Resolve(messages, vars)

	assert.Equal(t, "A", got[0].Content)
	assert.Equal(t, "expand topic one in go", got[1].Content)
	assert.Equal(t, api.RoleUser, got[1].Role)
	assert.Equal(t, "alice", got[1].Name)
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	messages := []api.Message{{Role: api.RoleUser, Content: "{{a}}"}}

	Resolve(messages, map[string]any{"a": "changed"})

	assert.Equal(t, "{{a}}", messages[0].Content)
}

func TestResolve_IdempotentWithoutMatches(t *testing.T) {
	messages := []api.Message{
		{Role: api.RoleSystem, Content: "no placeholders here"},
		{Role: api.RoleUser, Content: "still {{kept}} nothing"},
	}
	vars := map[string]any{"unrelated": "x"}

	got := Resolve(messages, vars)

	assert.Equal(t, "no placeholders here", got[0].Content)
	// Missing keys resolve to the empty string.
	assert.Equal(t, "still  nothing", got[1].Content)
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name    string
		content string
		vars    map[string]any
		want    string
	}{
		{"plain", "hello", nil, "hello"},
		{"single", "hi {{name}}", map[string]any{"name": "bob"}, "hi bob"},
		{"repeated", "{{a}}{{a}}", map[string]any{"a": "x"}, "xx"},
		{"whitespace in braces", "{{ key }}", map[string]any{"key": "v"}, "v"},
		{"missing key", "a{{gone}}b", map[string]any{}, "ab"},
		{"integral number", "n={{n}}", map[string]any{"n": float64(3)}, "n=3"},
		{"fractional number", "t={{t}}", map[string]any{"t": 0.5}, "t=0.5"},
		{"bool", "{{flag}}", map[string]any{"flag": true}, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.content, tt.vars))
		})
	}
}

func TestReferences(t *testing.T) {
	messages := []api.Message{
		{Role: api.RoleSystem, Content: "you are helpful"},
		{Role: api.RoleUser, Content: "summarize {{file}}"},
	}

	assert.True(t, References(messages, "file"))
	assert.False(t, References(messages, "item"))
	assert.False(t, References(nil, "file"))
}
