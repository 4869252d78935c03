package agent

import "context"

// BackendMessage is the role/content pair sent to a Model Backend Client.
// It is a narrower view of Message: the backend only ever sees text, never
// the Conversation Log's internal bookkeeping.
type BackendMessage struct {
	Role    Role
	Content string
}

// ModelInfo describes one entry returned by ListModels.
type ModelInfo struct {
	Name string
}

// Delta is one incremental piece of a chat completion stream. Exactly one
// of Text or Err should be set on any given Delta; a Delta with Err set is
// always the last one sent on the channel.
type Delta struct {
	Text string
	Err  error
}

// Backend is the Model Backend Client contract: it issues
// chat-completion requests and returns a lazy, finite, single-consumer,
// non-restartable sequence of text deltas, and can list available models.
type Backend interface {
	// ListModels returns the backend's available models.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// ChatCompletionStream opens a streaming completion for model over
	// messages. The returned channel is closed when the stream ends,
	// whether cleanly or via an error delta. Cancelling ctx must close the
	// underlying transport promptly.
	ChatCompletionStream(ctx context.Context, model string, messages []BackendMessage) (<-chan Delta, error)
}
