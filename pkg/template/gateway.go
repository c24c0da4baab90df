package template

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/debug"
)

// maxFileSize caps caller-referenced file fetches at 1 MB.
const maxFileSize = 1 << 20

// Gateway fetches the template-set document and caller-referenced text
// files from the remote template store. The document is fetched fresh
// for every request; this layer does no caching.
type Gateway struct {
	httpClient *http.Client
	setURL     string
}

// NewGateway creates a Gateway for the template-set document at setURL.
func NewGateway(setURL string, timeout time.Duration) *Gateway {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		httpClient: &http.Client{Timeout: timeout},
		setURL:     strings.TrimRight(setURL, "/"),
	}
}

// FetchSet retrieves and decodes the full template-set document.
func (g *Gateway) FetchSet(ctx context.Context) (Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.setURL, nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("building template store request: %s", err.Error()))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("template store unreachable: %s", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, api.NewServerError(fmt.Sprintf("template store returned HTTP %d", resp.StatusCode))
	}

	var set Set
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("decoding template set: %s", err.Error()))
	}

	debug.Log("templates", "template set fetched", "url", g.setURL, "categories", len(set))
	return set, nil
}

// Lookup fetches the template set and returns the template at
// (category, id). A missing template yields a not-found error.
func (g *Gateway) Lookup(ctx context.Context, category, id string) (*Template, error) {
	set, err := g.FetchSet(ctx)
	if err != nil {
		return nil, err
	}

	tmpl := set.Lookup(category, id)
	if tmpl == nil {
		return nil, api.NewNotFoundError(fmt.Sprintf("template %s/%s not found", category, id))
	}
	return tmpl, nil
}

// FetchFile retrieves a caller-referenced plain-text file. The result
// feeds the {{file}} substitution variable.
func (g *Gateway) FetchFile(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", api.NewInvalidRequestError("file", fmt.Sprintf("invalid file reference: %s", err.Error()))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", api.NewServerError(fmt.Sprintf("fetching file: %s", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", api.NewServerError(fmt.Sprintf("file fetch returned HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return "", api.NewServerError(fmt.Sprintf("reading file: %s", err.Error()))
	}

	debug.Log("templates", "file fetched", "url", url, "bytes", len(data))
	return string(data), nil
}
