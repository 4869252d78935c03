package agent

import "sync"

// Role identifies who produced a Message in the Conversation Log.
type Role string

const (
	// RoleSystem marks the persona/tool-schema message that seeds every run.
	RoleSystem Role = "system"
	// RoleUser marks text supplied by the human operator.
	RoleUser Role = "user"
	// RoleAssistant marks text produced by the model.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a tool execution folded back into history.
	//
	// The source this module is derived from used System for this in some
	// code paths and a dedicated role in others; this module always uses
	// RoleTool internally and only degrades to "system" at the wire
	// boundary of a backend that has no tool role in its chat template.
	RoleTool Role = "tool"
)

// Message is one entry in the Conversation Log.
type Message struct {
	Role    Role
	Content string
}

// ConversationLog is the ordered, append-only (except for revert) message
// history that defines a model's context on each stream iteration.
//
// The zero value is not usable; use NewConversationLog.
type ConversationLog struct {
	mu       sync.Mutex
	messages []Message
}

// NewConversationLog creates a log seeded with the given system message.
// A ConversationLog always has a System message at index 0.
func NewConversationLog(systemPrompt string) *ConversationLog {
	return &ConversationLog{
		messages: []Message{{Role: RoleSystem, Content: systemPrompt}},
	}
}

// Append adds a message to the end of the log.
func (c *ConversationLog) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Snapshot returns a copy of the current message sequence. The returned
// slice is safe to retain; mutating it does not affect the log.
func (c *ConversationLog) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages currently in the log.
func (c *ConversationLog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// RevertToBeforeLastUser pops the tail while it is Assistant or Tool, then
// pops one User message if present at the new tail. It never pops the
// System message at index 0 and is idempotent once only System remains.
func (c *ConversationLog) RevertToBeforeLastUser() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.messages) > 1 {
		last := c.messages[len(c.messages)-1]
		if last.Role != RoleAssistant && last.Role != RoleTool {
			break
		}
		c.messages = c.messages[:len(c.messages)-1]
	}

	if len(c.messages) > 1 && c.messages[len(c.messages)-1].Role == RoleUser {
		c.messages = c.messages[:len(c.messages)-1]
	}
}

// SetSystemPrompt replaces the content of the System message at index 0.
func (c *ConversationLog) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		c.messages = []Message{{Role: RoleSystem, Content: prompt}}
		return
	}
	c.messages[0] = Message{Role: RoleSystem, Content: prompt}
}
