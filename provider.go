package parley

import "context"

// Provider abstracts the LLM backend.
type Provider interface {
	// SendMessage sends a request and returns a complete response.
	// When req.Tools is non-empty, the response may contain ToolCalls.
	SendMessage(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// SendMessageStream streams response increments into ch. The provider
	// closes ch before returning, on every path. Tool calls are not
	// streamed; use SendMessage for tool-bearing turns.
	SendMessageStream(ctx context.Context, req ChatRequest, ch chan<- StreamChunk) error
	// Name returns the provider name (e.g. "openai").
	Name() string
}

// ChatRequest is the input to a Provider call.
type ChatRequest struct {
	Messages     []Message     `json:"messages"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Tools        []RuntimeTool `json:"tools,omitempty"`
	ToolChoice   ToolChoice    `json:"tool_choice"`
	Debug        bool          `json:"debug,omitempty"`
}
