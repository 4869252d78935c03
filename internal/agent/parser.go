package agent

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Default fence tokens bounding a fenced tool-call block. They
// are deliberately distinct from ordinary Markdown code fences so a model
// that also emits example code blocks in its answers cannot accidentally
// trigger tool detection.
const (
	DefaultOpenFence  = "<<<TOOL_CALL>>>"
	DefaultCloseFence = "<<<END_TOOL_CALL>>>"
)

type parserState int

const (
	parserStateText parserState = iota
	parserStateInBlock
)

// StreamingParser incrementally splits a model's token stream into display
// text and fenced tool-call blocks. One StreamingParser serves
// exactly one stream iteration; create a fresh one for each.
type StreamingParser struct {
	openFence  string
	closeFence string

	state     parserState
	pending   string // held-back, not yet emitted suffix of the text that might be a prefix of openFence
	blockBuf  strings.Builder
	suspended bool // true once a ToolCallDetected has been emitted this iteration
}

// NewStreamingParser creates a parser using the given fence tokens.
func NewStreamingParser(openFence, closeFence string) *StreamingParser {
	return &StreamingParser{openFence: openFence, closeFence: closeFence}
}

// toolCallDoc is the structured document between fences, read by
// a standard YAML parser which also accepts plain JSON (YAML is a JSON
// superset) so both block-style and inline/flow-style documents work.
type toolCallDoc struct {
	ToolName   string         `yaml:"tool_name"`
	Parameters map[string]any `yaml:"parameters"`
}

// Ingest feeds the next delta of model output through the state machine and
// returns the Events it produces, in causal order.
func (p *StreamingParser) Ingest(delta string) []Event {
	if p.suspended {
		return nil
	}
	switch p.state {
	case parserStateInBlock:
		return p.ingestBlock(delta)
	default:
		return p.ingestText(p.pending + delta)
	}
}

// Close signals end of stream and returns any final events required to
// leave the parser in a terminal, consistent state (the "stream end"
// rows).
func (p *StreamingParser) Close() []Event {
	if p.suspended {
		return nil
	}
	switch p.state {
	case parserStateInBlock:
		raw := p.blockBuf.String()
		p.blockBuf.Reset()
		return []Event{{Kind: EventToolBlockParseWarning, Raw: raw}}
	default:
		if p.pending == "" {
			return nil
		}
		text := p.pending
		p.pending = ""
		return []Event{{Kind: EventAiResponseChunk, Text: text}}
	}
}

func (p *StreamingParser) ingestText(combined string) []Event {
	if combined == "" {
		p.pending = ""
		return nil
	}

	if idx := strings.Index(combined, p.openFence); idx >= 0 {
		before := combined[:idx]
		after := combined[idx+len(p.openFence):]

		p.pending = ""
		var events []Event
		if before != "" {
			events = append(events, Event{Kind: EventPendingDisplayContent, Text: before})
		}
		p.state = parserStateInBlock
		p.blockBuf.Reset()
		events = append(events, Event{Kind: EventAttemptingToolDetection})
		events = append(events, p.ingestBlock(after)...)
		return events
	}

	maxSuffix := len(p.openFence) - 1
	if maxSuffix > len(combined) {
		maxSuffix = len(combined)
	}
	for l := maxSuffix; l > 0; l-- {
		cut := len(combined) - l
		if !utf8.RuneStart(combined[cut]) {
			continue
		}
		suffix := combined[cut:]
		if strings.HasPrefix(p.openFence, suffix) {
			safe := combined[:cut]
			p.pending = suffix
			if safe == "" {
				return nil
			}
			return []Event{{Kind: EventAiResponseChunk, Text: safe}}
		}
	}

	p.pending = ""
	return []Event{{Kind: EventAiResponseChunk, Text: combined}}
}

func (p *StreamingParser) ingestBlock(delta string) []Event {
	p.blockBuf.WriteString(delta)
	full := p.blockBuf.String()

	idx := strings.Index(full, p.closeFence)
	if idx < 0 {
		return nil
	}

	raw := full[:idx]
	after := full[idx+len(p.closeFence):]
	p.blockBuf.Reset()
	p.state = parserStateText

	events := p.finalizeBlock(raw)
	if p.suspended {
		return events
	}
	events = append(events, p.ingestText(after)...)
	return events
}

func (p *StreamingParser) finalizeBlock(raw string) []Event {
	var doc toolCallDoc
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return []Event{
			{Kind: EventToolBlockParseWarning, Raw: raw},
			{Kind: EventAiResponseChunk, Text: raw},
		}
	}

	if strings.TrimSpace(doc.ToolName) == "" {
		return []Event{
			{Kind: EventYamlParseError, Message: "missing required key: tool_name", Raw: raw},
			{Kind: EventAiResponseChunk, Text: raw},
		}
	}

	params, err := json.Marshal(doc.Parameters)
	if err != nil {
		return []Event{
			{Kind: EventYamlParseError, Message: "parameters: " + err.Error(), Raw: raw},
			{Kind: EventAiResponseChunk, Text: raw},
		}
	}

	p.suspended = true
	return []Event{{
		Kind: EventToolCallDetected,
		ToolCall: &ToolCall{
			ToolName:   strings.TrimSpace(doc.ToolName),
			Parameters: params,
		},
	}}
}
