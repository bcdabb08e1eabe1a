package pipeline

import (
	"strings"
	"time"

	"github.com/kalambet/alumnirag/internal/engine"
	"github.com/kalambet/alumnirag/internal/intent"
	"github.com/kalambet/alumnirag/internal/profile"
	"github.com/kalambet/alumnirag/internal/temporal"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// ToolRetrieve is the only tool the controller calls.
const ToolRetrieve = "retrieve"

// ToolCall is a pending tool invocation carried by an ai message.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
}

// ToolResult is the content of a tool message.
type ToolResult struct {
	CallID  string          `json:"call_id"`
	Payload string          `json:"payload"`
	Chunks  []profile.Chunk `json:"chunks"`
}

// Message is one transcript entry.
type Message struct {
	Role     Role        `json:"role"`
	Content  string      `json:"content,omitempty"`
	ToolCall *ToolCall   `json:"tool_call,omitempty"`
	Tool     *ToolResult `json:"tool,omitempty"`
}

// Turn is the request-scoped state of one question. It is never shared
// between requests.
type Turn struct {
	ID        string
	Messages  []Message
	Now       time.Time
	Tense     intent.Tense
	Qualifier temporal.Qualifier

	// Faults holds the conditions the turn degraded through, such as
	// intent.ErrAmbiguousQuery or retrieval.ErrIndexUnavailable.
	Faults []error

	start      int
	retrievals int
	states     []State
}

// States returns the sequence of states the turn passed through.
func (t *Turn) States() []State {
	return append([]State(nil), t.states...)
}

// Question returns the content of the latest human message.
func (t *Turn) Question() string {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleHuman {
			return t.Messages[i].Content
		}
	}
	return ""
}

// Final returns the content of the last message.
func (t *Turn) Final() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[len(t.Messages)-1].Content
}

// ToolMessages returns the tool messages produced by this turn, in order.
// Tool messages carried in from prior turns are excluded.
func (t *Turn) ToolMessages() []Message {
	var out []Message
	for _, m := range t.Messages[t.start:] {
		if m.Role == RoleTool {
			out = append(out, m)
		}
	}
	return out
}

// trailingTools returns the run of tool messages at the end of the
// transcript.
func (t *Turn) trailingTools() []Message {
	i := len(t.Messages)
	for i > 0 && t.Messages[i-1].Role == RoleTool {
		i--
	}
	return t.Messages[i:]
}

// pendingCall returns the tool call of the last ai message, if any.
func (t *Turn) pendingCall() *ToolCall {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleAI {
			return t.Messages[i].ToolCall
		}
	}
	return nil
}

func (t *Turn) append(m Message) {
	t.Messages = append(t.Messages, m)
}

// history converts the transcript before the latest human message into chat
// messages for the canonicalizer. Tool traffic is omitted.
func (t *Turn) history() []engine.Message {
	last := -1
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleHuman {
			last = i
			break
		}
	}
	var out []engine.Message
	for i, m := range t.Messages {
		if i == last {
			break
		}
		switch {
		case m.Role == RoleHuman:
			out = append(out, engine.Message{Role: engine.RoleUser, Content: m.Content})
		case m.Role == RoleAI && m.ToolCall == nil && strings.TrimSpace(m.Content) != "":
			out = append(out, engine.Message{Role: engine.RoleAssistant, Content: m.Content})
		}
	}
	return out
}
