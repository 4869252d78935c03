package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeSearchBackend struct {
	results []SearchResult
	err     error
	gotEngine, gotQuery string
}

func (f *fakeSearchBackend) Search(ctx context.Context, engine, query string) ([]SearchResult, error) {
	f.gotEngine, f.gotQuery = engine, query
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestWebSearchTool_DefaultsToGoogle(t *testing.T) {
	backend := &fakeSearchBackend{results: []SearchResult{
		{Title: "Go", URL: "https://go.dev", Description: "The Go language"},
	}}
	tool := &WebSearchTool{Backend: backend}

	params, _ := json.Marshal(map[string]string{"query": "golang"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if backend.gotEngine != "google" {
		t.Fatalf("got engine %q", backend.gotEngine)
	}

	var out struct {
		Results []map[string]string `json:"results"`
		Success bool                `json:"success"`
	}
	if err := json.Unmarshal(result.Value, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Success || len(out.Results) != 1 || out.Results[0]["url"] != "https://go.dev" {
		t.Fatalf("got %+v", out)
	}
}

func TestWebSearchTool_UnsupportedEngine(t *testing.T) {
	tool := &WebSearchTool{Backend: &fakeSearchBackend{}}
	params, _ := json.Marshal(map[string]string{"query": "golang", "engine": "bing"})
	if _, err := tool.Execute(context.Background(), params); err == nil {
		t.Fatalf("expected an error for an unsupported engine")
	}
}

func TestWebSearchTool_BackendError(t *testing.T) {
	tool := &WebSearchTool{Backend: &fakeSearchBackend{err: errors.New("network down")}}
	params, _ := json.Marshal(map[string]string{"query": "golang"})
	if _, err := tool.Execute(context.Background(), params); err == nil {
		t.Fatalf("expected the backend error to propagate")
	}
}

func TestWebSearchTool_NoBackendConfigured(t *testing.T) {
	tool := &WebSearchTool{}
	params, _ := json.Marshal(map[string]string{"query": "golang"})
	if _, err := tool.Execute(context.Background(), params); err == nil {
		t.Fatalf("expected an error when no backend is configured")
	}
}
