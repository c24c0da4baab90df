package openai

import (
	"encoding/json"

	"github.com/entfalten/entfalten/pkg/api"
)

// chatRequest is the Chat Completions wire format.
type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []chatMessage      `json:"messages"`
	N           int                `json:"n,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Functions   []api.FunctionDecl `json:"functions,omitempty"`
	User        string             `json:"user,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// chatResponse is the subset of the Chat Completions response the
// gateway consumes. The full payload is preserved separately as raw
// bytes for debug echo.
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int             `json:"index"`
	Message      chatChoiceMsg   `json:"message"`
	FinishReason string          `json:"finish_reason"`
	FunctionCall json.RawMessage `json:"function_call,omitempty"`
}

type chatChoiceMsg struct {
	Role         string          `json:"role"`
	Content      string          `json:"content"`
	FunctionCall json.RawMessage `json:"function_call,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatErrorResponse is the backend's error envelope.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
		Code    any    `json:"code"`
	} `json:"error"`
}
