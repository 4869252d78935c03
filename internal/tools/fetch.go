package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"

	"github.com/kestrelchat/kestrel/internal/agent"
)

// WebFetchTool retrieves a URL and renders it down to Markdown, mirroring
// the original webbrowser tool's fetch_and_markdown behaviour. HTML pages
// are converted to Markdown by walking their token stream; the result is
// then reparsed with goldmark to recover a title from its first level-1
// heading.
type WebFetchTool struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

var webFetchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "The URL you are trying to visit."}
	},
	"required": ["url"]
}`)

func (t *WebFetchTool) Name() string            { return "web_fetch" }
func (t *WebFetchTool) Schema() json.RawMessage { return webFetchSchema }
func (t *WebFetchTool) Description() string {
	return "Visits a web page and returns its content converted to Markdown."
}

type webFetchParams struct {
	URL string `json:"url"`
}

func (t *WebFetchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p webFetchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("decode parameters: %w", err))
	}
	if strings.TrimSpace(p.URL) == "" {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("missing 'url' argument"))
	}

	client := t.HTTPClient
	if client == nil {
		timeout := t.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("page visit failed: %w", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("page visit failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("page visit failed: %w", err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindNetwork, fmt.Errorf("page visit failed: status %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	var markdown string
	if strings.Contains(contentType, "html") {
		markdown = htmlToMarkdown(body)
	} else {
		markdown = string(body)
	}

	value, err := json.Marshal(map[string]any{
		"result":  markdown,
		"title":   markdownTitle(markdown),
		"success": true,
	})
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{ToolName: t.Name(), Value: value}, nil
}

// htmlToMarkdown walks an HTML token stream, emitting a Markdown-ish
// rendering of headings, paragraphs, list items and links. It favours
// readability for a model's context window over fidelity.
func htmlToMarkdown(body []byte) string {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))

	var out strings.Builder
	var skipDepth int
	var pendingHref string
	inLink := false

	flushLine := func() {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n\n") {
			out.WriteString("\n")
		}
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(out.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tokenizer.Token()
			switch tok.Data {
			case "script", "style", "noscript":
				if tt == html.StartTagToken {
					skipDepth++
				}
			case "h1", "h2", "h3", "h4", "h5", "h6":
				level := int(tok.Data[1] - '0')
				out.WriteString("\n" + strings.Repeat("#", level) + " ")
			case "p", "div", "br":
				flushLine()
			case "li":
				out.WriteString("\n- ")
			case "a":
				for _, attr := range tok.Attr {
					if attr.Key == "href" {
						pendingHref = attr.Val
					}
				}
				if pendingHref != "" {
					inLink = true
					out.WriteString("[")
				}
			}
		case html.EndTagToken:
			tok := tokenizer.Token()
			switch tok.Data {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			case "h1", "h2", "h3", "h4", "h5", "h6":
				out.WriteString("\n")
			case "p", "li":
				out.WriteString("\n")
			case "a":
				if inLink {
					out.WriteString("](" + pendingHref + ")")
					inLink = false
					pendingHref = ""
				}
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text != "" {
				out.WriteString(text)
			}
		}
	}
}

// markdownTitle reparses rendered Markdown with goldmark and returns the
// text of the first level-1 heading, or "" if there is none.
func markdownTitle(content string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(content))
	doc := md.Parser().Parse(reader)

	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if heading, ok := n.(*ast.Heading); ok && entering && heading.Level == 1 {
			title = string(heading.Text([]byte(content)))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}
