package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrelchat/kestrel/internal/agent"
)

// SearchResult is one entry returned by a SearchBackend, mirroring the
// original SearchData shape.
type SearchResult struct {
	Title       string
	URL         string
	Description string
}

// SearchBackend performs a web search against a specific engine. The
// original tool hard-coded Google and DuckDuckGo behind an enum; this
// module keeps the same two named engines but makes the implementation
// pluggable so a backend that can actually reach the network in a given
// deployment can be swapped in without touching the tool itself.
type SearchBackend interface {
	Search(ctx context.Context, engine, query string) ([]SearchResult, error)
}

// WebSearchTool looks up a query against a named search engine, mirroring
// the original websearch tool.
type WebSearchTool struct {
	Backend SearchBackend
}

var webSearchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "The query you are trying to find."},
		"engine": {"type": "string", "description": "The search engine to use: 'google' or 'duckduckgo'. Defaults to 'google'."}
	},
	"required": ["query"]
}`)

func (t *WebSearchTool) Name() string            { return "web_search" }
func (t *WebSearchTool) Schema() json.RawMessage { return webSearchSchema }
func (t *WebSearchTool) Description() string {
	return "Searches the web via Google or DuckDuckGo and returns matching pages."
}

type webSearchParams struct {
	Query  string `json:"query"`
	Engine string `json:"engine"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p webSearchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("decode parameters: %w", err))
	}
	if strings.TrimSpace(p.Query) == "" {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("missing 'query' argument"))
	}

	engine := strings.ToLower(strings.TrimSpace(p.Engine))
	if engine == "" {
		engine = "google"
	}
	if engine != "google" && engine != "duckduckgo" {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("unsupported search engine: %s. Supported engines are 'google' and 'duckduckgo'", p.Engine))
	}

	if t.Backend == nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("no search backend configured"))
	}

	results, err := t.Backend.Search(ctx, engine, p.Query)
	if err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("%s search failed: %w", engine, err))
	}

	formatted := make([]map[string]string, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, map[string]string{
			"title":       r.Title,
			"url":         r.URL,
			"description": r.Description,
		})
	}

	value, err := json.Marshal(map[string]any{
		"results": formatted,
		"success": true,
	})
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{ToolName: t.Name(), Value: value}, nil
}
