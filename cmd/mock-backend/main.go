// Command mock-backend runs a deterministic Chat Completions server
// for exercising the gateway without a real provider. Responses are
// derived from the last user message, so multi-step fan-out runs
// produce stable, inspectable output.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	N         int           `json:"n"`
	Functions []any         `json:"functions,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handler ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	n := req.N
	if n <= 0 {
		n = 1
	}

	text := respondTo(lastUserMessage(&req))

	choices := make([]chatChoice, n)
	for i := range choices {
		choices[i] = chatChoice{
			Index:        i,
			Message:      chatMsg{Role: "assistant", Content: text},
			FinishReason: "stop",
		}
	}

	resp := chatResponse{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Model:   model,
		Choices: choices,
		Usage:   chatUsage{PromptTokens: 10, CompletionTokens: 5 * n, TotalTokens: 10 + 5*n},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// respondTo derives a deterministic answer from the prompt. Prompts
// asking for lists or ideas get a bulleted list, so templates with
// fan-out steps fork on predictable items.
func respondTo(prompt string) string {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "list") || strings.Contains(lower, "ideas") || strings.Contains(lower, "brainstorm"):
		return "- first idea\n- second idea\n- third idea"
	case strings.Contains(lower, "expand"):
		return fmt.Sprintf("expanded: %s", prompt)
	case strings.Contains(lower, "haiku"):
		return "mock wind stirring / three deterministic lines / tests pass quietly"
	case prompt == "":
		return "Hello, nice day!"
	default:
		return fmt.Sprintf("echo: %s", prompt)
	}
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "entfalten-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Helpers ---

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}
