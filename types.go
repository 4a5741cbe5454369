package parley

import (
	"encoding/json"
	"time"
)

// Sender identifies who authored a conversation message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is a single entry in the conversation transcript.
type Message struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Sender    Sender         `json:"sender"`
	Timestamp time.Time      `json:"timestamp"`
	Options   []ChoiceOption `json:"options,omitempty"`
}

// ChoiceOption is a quick-reply choice attached to an assistant message.
// Hosts may render these as buttons; selecting one sends Value as user input.
type ChoiceOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ToolCall is a single tool invocation requested by the model.
// Args is the raw argument payload as received: a map, a JSON-encoded
// string, or nil. ParseArguments normalizes it before dispatch.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args any    `json:"args"`
}

// RuntimeTool describes a tool exposed to the model for the current turn.
type RuntimeTool struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
	Route        string          `json:"route,omitempty"`
	Transport    string          `json:"transport,omitempty"`
}

// ToolChoiceKind discriminates the ToolChoice union.
type ToolChoiceKind int

const (
	// ToolChoiceAuto lets the model decide whether to call tools.
	ToolChoiceAuto ToolChoiceKind = iota
	// ToolChoiceForced requires the model to call the named tool.
	ToolChoiceForced
	// ToolChoiceNone forbids tool calls for this request.
	ToolChoiceNone
)

// ToolChoice is a tagged union controlling tool use for one provider call.
// Name is only meaningful when Kind is ToolChoiceForced.
type ToolChoice struct {
	Kind ToolChoiceKind
	Name string
}

// AutoChoice returns the default tool choice.
func AutoChoice() ToolChoice { return ToolChoice{Kind: ToolChoiceAuto} }

// ForcedChoice returns a choice that forces the named tool.
func ForcedChoice(name string) ToolChoice {
	return ToolChoice{Kind: ToolChoiceForced, Name: name}
}

// NoneChoice returns a choice that forbids tool calls.
func NoneChoice() ToolChoice { return ToolChoice{Kind: ToolChoiceNone} }

// String returns the wire-style name of the choice.
func (c ToolChoice) String() string {
	switch c.Kind {
	case ToolChoiceForced:
		return "forced:" + c.Name
	case ToolChoiceNone:
		return "none"
	default:
		return "auto"
	}
}

// ToolContext carries per-session identity injected into every tool run.
type ToolContext struct {
	BusinessID string `json:"businessId"`
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId"`
}

// Usage tracks token consumption for a single provider call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatResponse is the provider's reply to a single request.
type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// StreamChunk is one increment of a streamed provider response.
// Done is sent exactly once, after the final delta.
type StreamChunk struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`
}

// --- Message constructors ---

func UserMessage(text string) Message {
	return Message{ID: NewID(), Content: text, Sender: SenderUser, Timestamp: time.Now()}
}

func AssistantMessage(text string) Message {
	return Message{ID: NewID(), Content: text, Sender: SenderAssistant, Timestamp: time.Now()}
}
