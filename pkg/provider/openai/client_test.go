package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/provider"
)

func TestClient_Complete(t *testing.T) {
	var captured chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-3.5-turbo-0125",
			"choices": [
				{"index": 0, "message": {"role": "assistant", "content": "- alpha\n- beta"}, "finish_reason": "stop"},
				{"index": 1, "message": {"role": "assistant", "content": "gamma"}, "finish_reason": "stop"}
			],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk-test", 5*time.Second)
	defer client.Close()

	temp := 0.7
	result, err := client.Complete(context.Background(), &provider.Request{
		Model:       "gpt-3.5-turbo",
		Messages:    []api.Message{{Role: api.RoleUser, Content: "list things"}},
		N:           2,
		MaxTokens:   100,
		Temperature: &temp,
		User:        "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"- alpha\n- beta", "gamma"}, result.Texts)
	assert.Equal(t, "gpt-3.5-turbo-0125", result.Model)
	assert.Equal(t, 19, result.Usage.TotalTokens)
	assert.NotEmpty(t, result.Raw)

	assert.Equal(t, "gpt-3.5-turbo", captured.Model)
	assert.Equal(t, 2, captured.N)
	assert.Equal(t, 100, captured.MaxTokens)
	assert.Equal(t, "alice", captured.User)
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.7, *captured.Temperature, 1e-9)
}

func TestClient_Complete_ForwardsFunctions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Functions, 1)
		assert.Equal(t, "get_weather", req.Functions[0].Name)

		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": ""}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	defer client.Close()

	_, err := client.Complete(context.Background(), &provider.Request{
		Model:    "gpt-3.5-turbo",
		Messages: []api.Message{{Role: api.RoleUser, Content: "weather?"}},
		Functions: []api.FunctionDecl{{
			Name:       "get_weather",
			Parameters: json.RawMessage(`{"type":"object"}`),
		}},
	})
	require.NoError(t, err)
}

func TestClient_Complete_UpstreamErrorCarriesPayload(t *testing.T) {
	payload := `{"error": {"message": "model overloaded", "type": "server_error"}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	defer client.Close()

	_, err := client.Complete(context.Background(), &provider.Request{
		Model:    "gpt-3.5-turbo",
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.ErrorTypeUpstreamError, apiErr.Type)
	assert.Equal(t, "model overloaded", apiErr.Message)
	assert.JSONEq(t, payload, string(apiErr.Upstream))
}

func TestClient_Complete_UpstreamErrorNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream gateway timeout"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	defer client.Close()

	_, err := client.Complete(context.Background(), &provider.Request{
		Model:    "gpt-3.5-turbo",
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})

	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.ErrorTypeUpstreamError, apiErr.Type)
	assert.Contains(t, apiErr.Message, "502")
	assert.Empty(t, apiErr.Upstream)
}

func TestClient_Complete_NetworkError(t *testing.T) {
	// Point at a closed server.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	defer client.Close()

	_, err := client.Complete(context.Background(), &provider.Request{
		Model:    "gpt-3.5-turbo",
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})

	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.ErrorTypeUpstreamError, apiErr.Type)
	assert.Contains(t, apiErr.Message, "unreachable")
}

func TestClient_NoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	defer client.Close()

	result, err := client.Complete(context.Background(), &provider.Request{
		Model:    "local",
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, result.Texts)
}
