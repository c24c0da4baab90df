// Package openai implements provider.Completer against an
// OpenAI-compatible Chat Completions backend.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/debug"
	"github.com/entfalten/entfalten/pkg/provider"
)

// maxResponseBytes bounds how much of a backend response is read.
const maxResponseBytes = 4 << 20

// Client performs HTTP requests against an OpenAI-compatible Chat
// Completions backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Ensure Client implements provider.Completer at compile time.
var _ provider.Completer = (*Client)(nil)

// NewClient creates a new Client. An empty apiKey omits the
// Authorization header, which suits local mock backends.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "openai"
}

// Complete performs one call against the Chat Completions endpoint and
// returns every choice plus the raw payload.
func (c *Client) Complete(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	chatReq := translateRequest(req)

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	debug.Log("providers", "completion request", "model", req.Model, "messages", len(req.Messages), "n", req.N)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to read backend response: %s", err.Error()))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp.StatusCode, raw)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	return translateResponse(&chatResp, raw), nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// translateRequest converts a normalized request to the wire format.
func translateRequest(req *provider.Request) *chatRequest {
	msgs := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chatMessage{
			Role:    string(m.Role),
			Name:    m.Name,
			Content: m.Content,
		}
	}

	return &chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		N:           req.N,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Functions:   req.Functions,
		User:        req.User,
	}
}

// translateResponse converts the wire response to a provider.Result,
// keeping the raw payload alongside the extracted choice texts.
func translateResponse(resp *chatResponse, raw json.RawMessage) *provider.Result {
	texts := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		texts = append(texts, choice.Message.Content)
	}

	return &provider.Result{
		Texts: texts,
		Raw:   raw,
		Model: resp.Model,
		Usage: provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}
