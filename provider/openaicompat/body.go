package openaicompat

import (
	"encoding/json"

	parley "github.com/parley-ai/parley"
)

// BuildBody converts a parley ChatRequest into the OpenAI wire format.
// The system prompt becomes a leading role:"system" message; conversation
// messages map Sender to "user"/"assistant". Options configure generation
// parameters (temperature, top_p, etc.).
func BuildBody(req parley.ChatRequest, model string, opts ...Option) ChatRequest {
	var msgs []Message

	if req.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.SystemPrompt})
	}

	for _, m := range req.Messages {
		role := "user"
		if m.Sender == parley.SenderAssistant {
			role = "assistant"
		}
		msgs = append(msgs, Message{Role: role, Content: m.Content})
	}

	body := ChatRequest{
		Model:    model,
		Messages: msgs,
	}

	if len(req.Tools) > 0 {
		body.Tools = BuildToolDefs(req.Tools)
	}
	body.ToolChoice = buildToolChoice(req.ToolChoice)

	for _, opt := range opts {
		opt(&body)
	}

	return body
}

// BuildToolDefs converts runtime tool definitions to the OpenAI tool format.
func BuildToolDefs(tools []parley.RuntimeTool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		params := t.InputSchema
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, Tool{
			Type: "function",
			Function: Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// buildToolChoice maps the tagged union onto the OpenAI tool_choice field.
// Auto is the API default, so it is omitted from the body.
func buildToolChoice(tc parley.ToolChoice) any {
	switch tc.Kind {
	case parley.ToolChoiceNone:
		return "none"
	case parley.ToolChoiceForced:
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.Name},
		}
	default:
		return nil
	}
}
