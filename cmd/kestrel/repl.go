package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kestrelchat/kestrel/internal/agent"
	"github.com/kestrelchat/kestrel/internal/tokencount"
)

const (
	ansiReset  = "\x1b[0m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiCyan   = "\x1b[36m"
	ansiBlue   = "\x1b[34m"
	ansiRed    = "\x1b[31m"
)

// repl is the interactive front-end driving a Session. It owns
// no agent state itself: every command either reads from the Session or
// calls one of its mutating operations.
type repl struct {
	session *agent.Session
	logger  *slog.Logger
	counter *tokencount.Counter
}

func newREPL(session *agent.Session, logger *slog.Logger) *repl {
	counter, err := tokencount.NewCounter("")
	if err != nil {
		logger.Warn("token counter unavailable, /log will omit size estimates", "error", err)
		counter = nil
	}
	return &repl{session: session, logger: logger, counter: counter}
}

func (r *repl) Run(in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "kestrel chat. Type /help for commands, /exit to quit.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for {
		fmt.Fprint(out, ansiYellow+"> "+ansiReset)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if !r.handleCommand(out, line) {
				return nil
			}
			continue
		}

		r.session.AddUserMessage(line)
		r.streamTurn(out)
	}
}

// handleCommand processes a slash command. It returns false when the REPL
// should exit.
func (r *repl) handleCommand(out io.Writer, line string) bool {
	parts := strings.Fields(line)
	name := parts[0]

	switch {
	case name == "/exit" || name == "/quit":
		fmt.Fprintln(out, "Exiting.")
		return false

	case name == "/model":
		if len(parts) < 2 {
			fmt.Fprintln(out, ansiYellow+"Usage: /model <model_name>"+ansiReset)
			return true
		}
		r.session.SetModel(parts[1])
		fmt.Fprintf(out, "Model set to: %s%s%s\n", ansiGreen, parts[1], ansiReset)

	case name == "/list" && len(parts) > 1 && parts[1] == "models":
		models, err := r.session.ListModels(context.Background())
		if err != nil {
			fmt.Fprintf(out, ansiRed+"Error listing models: %v"+ansiReset+"\n", err)
			return true
		}
		fmt.Fprintln(out, ansiCyan+"Available Models:"+ansiReset)
		for _, m := range models {
			fmt.Fprintf(out, "- %s%s%s\n", ansiBlue, m.Name, ansiReset)
		}

	case name == "/revert":
		r.session.RevertLastTurn()
		fmt.Fprintln(out, ansiGreen+"Last turn reverted."+ansiReset)

	case name == "/clear":
		for len(r.session.GetMessages()) > 1 {
			r.session.RevertLastTurn()
		}
		fmt.Fprintln(out, ansiGreen+"Chat history cleared."+ansiReset)

	case name == "/log":
		messages := r.session.GetMessages()
		if r.counter == nil {
			fmt.Fprintf(out, "%d messages in history.\n", len(messages))
			return true
		}
		fmt.Fprintf(out, "%d messages, ~%d tokens (%s encoding).\n",
			len(messages), r.counter.CountLog(messages), r.counter.Encoding())

	case name == "/help":
		fmt.Fprintln(out, ansiCyan+"Available commands:"+ansiReset)
		fmt.Fprintln(out, "- /help: Show this help message")
		fmt.Fprintln(out, "- /model <model_name>: Switch model")
		fmt.Fprintln(out, "- /list models: List available models")
		fmt.Fprintln(out, "- /revert: Undo your last message and the assistant's response")
		fmt.Fprintln(out, "- /clear: Clear the chat history")
		fmt.Fprintln(out, "- /log: Show history size and an approximate token count")
		fmt.Fprintln(out, "- /exit or /quit: Exit the application")

	default:
		fmt.Fprintf(out, ansiRed+"Unknown command: %s"+ansiReset+"\n", name)
	}
	return true
}

// streamTurn drives one turn and renders its events as they arrive.
func (r *repl) streamTurn(out io.Writer) {
	fmt.Fprint(out, ansiGreen+"AI: "+ansiReset)
	var wroteAny bool

	for ev := range r.session.StartRealtimeChat(context.Background()) {
		switch ev.Kind {
		case agent.EventAiResponseChunk, agent.EventPendingDisplayContent:
			fmt.Fprint(out, ev.Text)
			wroteAny = true
		case agent.EventToolExecuting:
			fmt.Fprintf(out, "\n%s[running %s...]%s\n", ansiBlue, ev.ToolName, ansiReset)
		case agent.EventToolResult:
			fmt.Fprintf(out, "%s[%s result received]%s\n", ansiBlue, ev.ToolName, ansiReset)
		case agent.EventToolError:
			fmt.Fprintf(out, "%s[%s failed: %s]%s\n", ansiRed, ev.ToolName, ev.Message, ansiReset)
		case agent.EventThinking:
			fmt.Fprintf(out, "\n%s[%s]%s\n", ansiCyan, ev.Message, ansiReset)
		case agent.EventToolBlockParseWarning:
			r.logger.Warn("unparsable tool call block", "raw", ev.Raw)
		case agent.EventYamlParseError:
			r.logger.Warn("tool call block failed schema", "message", ev.Message, "raw", ev.Raw)
		case agent.EventError:
			fmt.Fprintf(out, "\n%sError: %v%s\n", ansiRed, ev.Err, ansiReset)
		}
	}

	if wroteAny {
		fmt.Fprintln(out)
	}
}
