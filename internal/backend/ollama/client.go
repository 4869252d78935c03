// Package ollama implements the Model Backend Client contract against an
// Ollama-style HTTP API: GET /api/tags to list models, POST /api/chat with
// stream:true for newline-delimited JSON chat deltas.
//
// Deliberately unlike a general-purpose Ollama client, this one never reads
// the response's tool_calls field. Tool calls are parsed in-band from plain
// text by the agent package's StreamingParser; this client only ever
// forwards message.content text deltas.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kestrelchat/kestrel/internal/agent"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// LegacyToolRole, when true, sends tool-role messages to the backend
	// under the "system" wire role instead of "tool", for servers that
	// predate tool-role support. Ollama itself accepts "tool"; this exists
	// for the rare backend that doesn't.
	LegacyToolRole bool
}

// Client is a Backend implementation talking to an Ollama-compatible server.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	legacyToolRole bool
}

var _ agent.Backend = (*Client)(nil)

// New creates a Client. An empty BaseURL defaults to Ollama's usual local
// address.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		legacyToolRole: cfg.LegacyToolRole,
	}
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels queries GET /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]agent.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &agent.BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama: decode /api/tags response: %w", err)
	}

	models := make([]agent.ModelInfo, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		models = append(models, agent.ModelInfo{Name: m.Name})
	}
	return models, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseLine struct {
	Message *chatMessage `json:"message"`
	Done    bool         `json:"done"`
	Error   string       `json:"error"`
}

// ChatCompletionStream opens a streaming /api/chat request and forwards
// message.content text as Delta values. The returned channel is always
// closed, with the last Delta carrying Err on any failure.
func (c *Client) ChatCompletionStream(ctx context.Context, model string, messages []agent.BackendMessage) (<-chan agent.Delta, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("ollama: model is required")
	}

	payload := chatRequest{
		Model:    model,
		Stream:   true,
		Messages: c.wireMessages(messages),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &agent.BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}

	out := make(chan agent.Delta)
	go c.streamResponse(ctx, resp.Body, out)
	return out, nil
}

func (c *Client) streamResponse(ctx context.Context, body io.ReadCloser, out chan<- agent.Delta) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !utf8.ValidString(line) {
			sendDelta(ctx, out, agent.Delta{Err: &agent.StreamDecodeError{Cause: errors.New("response frame is not valid UTF-8")}})
			return
		}

		var resp chatResponseLine
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			sendDelta(ctx, out, agent.Delta{Err: &agent.StreamDecodeError{Cause: err}})
			return
		}
		if resp.Error != "" {
			sendDelta(ctx, out, agent.Delta{Err: errors.New(resp.Error)})
			return
		}
		if resp.Message != nil && resp.Message.Content != "" {
			if !sendDelta(ctx, out, agent.Delta{Text: resp.Message.Content}) {
				return
			}
		}
		if resp.Done {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		sendDelta(ctx, out, agent.Delta{Err: &agent.StreamDecodeError{Cause: err}})
	}
}

func sendDelta(ctx context.Context, out chan<- agent.Delta, d agent.Delta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) wireMessages(messages []agent.BackendMessage) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		out[i] = chatMessage{Role: c.wireRole(m.Role), Content: m.Content}
	}
	return out
}

func (c *Client) wireRole(r agent.Role) string {
	if r == agent.RoleTool && c.legacyToolRole {
		return string(agent.RoleSystem)
	}
	return string(r)
}
