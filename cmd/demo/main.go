// Command demo exercises a running entfalten gateway end to end: it
// lists the stored templates, runs an item-only completion, and runs a
// template completion with debug output, printing each result.
//
// Configuration:
//
//	ENTFALTEN_URL - Gateway base URL (default: http://localhost:8080)
//
// Start the gateway against the mock backend first:
//
//	go run ./cmd/mock-backend &
//	ENTFALTEN_BACKEND_URL=http://localhost:9090 \
//	ENTFALTEN_TEMPLATES_URL=https://templates.example/set.json \
//	go run ./cmd/server &
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/entfalten/entfalten/pkg/api"
)

func main() {
	base := os.Getenv("ENTFALTEN_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	fmt.Println("=== entfalten gateway demo ===")
	fmt.Println()

	// 1. Enumerate stored templates.
	var list api.TemplateList
	if err := getJSON(base+"/list", &list); err != nil {
		fmt.Printf("listing templates: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("[1] Stored templates:")
	for category, ids := range list.Templates {
		for _, id := range ids {
			fmt.Printf("    %s/%s\n", category, id)
		}
	}

	// 2. Item-only completion: the trailing path segment becomes the
	// user message.
	item := url.PathEscape("write one sentence about rivers")
	var resp api.CompletionResponse
	if err := getJSON(base+"/"+item, &resp); err != nil {
		fmt.Printf("item completion: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n[2] Item-only completion:")
	for _, line := range resp.Response {
		fmt.Printf("    %s\n", line)
	}

	// 3. Template completion with debug echo, when the template store
	// carries a writing/brainstorm template.
	var debugResp api.CompletionResponse
	if err := getJSON(base+"/writing/brainstorm?debug=true", &debugResp); err != nil {
		fmt.Printf("\n[3] Template completion skipped: %v\n", err)
		return
	}

	fmt.Println("\n[3] Template completion (writing/brainstorm):")
	for _, line := range debugResp.Response {
		fmt.Printf("    %s\n", line)
	}

	fmt.Printf("\n    input messages: %d\n", len(debugResp.InputMessages))
	for stepIdx, step := range debugResp.Completions {
		fmt.Printf("    step %d: %d forks\n", stepIdx, len(step.Forks))
		for _, fork := range step.Forks {
			if fork.Error != "" {
				fmt.Printf("      %q -> error: %s\n", fork.Item, fork.Error)
				continue
			}
			fmt.Printf("      %q -> %d lines\n", fork.Item, len(fork.Response))
		}
	}

	fmt.Println("\n=== demo complete ===")
}

// getJSON fetches url and decodes the JSON response into dst. Non-2xx
// responses are returned as errors carrying the body.
func getJSON(url string, dst any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
