// Package tokencount estimates context-window usage for the Conversation
// Log, for the REPL's /log diagnostic command and the orchestrator's
// context-watermark diagnostic.
package tokencount

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/kestrelchat/kestrel/internal/agent"
)

const defaultEncoding = "cl100k_base"

// Per-message overhead tokens for role and formatting, following OpenAI's
// chat token counting convention; the concrete tokenizer varies by model
// but this stays close enough for a diagnostic estimate.
const (
	messageOverhead = 4
	replyPriming    = 2
)

// Counter wraps a tiktoken encoder for estimating Conversation Log size.
type Counter struct {
	encoder  *tiktoken.Tiktoken
	encoding string
}

// NewCounter creates a Counter for encoding, falling back to cl100k_base if
// encoding is empty or unknown.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}

	encoder, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		encoder, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, err
		}
		encoding = defaultEncoding
	}

	return &Counter{encoder: encoder, encoding: encoding}, nil
}

// Encoding returns the active encoding name.
func (c *Counter) Encoding() string {
	return c.encoding
}

// Count returns the token count of a single string.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoder.Encode(text, nil, nil))
}

// CountLog estimates the total token cost of sending the whole Conversation
// Log to the model, including per-message and reply-priming overhead.
func (c *Counter) CountLog(messages []agent.Message) int {
	if len(messages) == 0 {
		return 0
	}
	total := replyPriming
	for _, m := range messages {
		total += messageOverhead
		total += c.Count(m.Content)
	}
	return total
}
