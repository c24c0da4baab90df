package template

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/entfalten/entfalten/pkg/api"
)

const testSetDoc = `{
	"code": {
		"arrow": {"model": "gpt-3.5-turbo", "messages": [{"role":"user","content":"// {{item}}"}]}
	}
}`

func TestGateway_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testSetDoc))
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, 5*time.Second)

	tmpl, err := g.Lookup(context.Background(), "code", "arrow")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if tmpl.Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q", tmpl.Model)
	}
}

func TestGateway_Lookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testSetDoc))
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, 5*time.Second)

	_, err := g.Lookup(context.Background(), "code", "missing")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.APIError, got %T", err)
	}
	if apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("error type = %q, want not_found", apiErr.Type)
	}
}

func TestGateway_FetchSet_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, 5*time.Second)

	_, err := g.FetchSet(context.Background())
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeServerError {
		t.Fatalf("expected server_error, got %v", err)
	}
}

func TestGateway_FetchFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file contents\n"))
	}))
	defer srv.Close()

	g := NewGateway("http://unused.invalid", 5*time.Second)

	text, err := g.FetchFile(context.Background(), srv.URL+"/notes.txt")
	if err != nil {
		t.Fatalf("FetchFile: %v", err)
	}
	if text != "file contents\n" {
		t.Errorf("text = %q", text)
	}
}
