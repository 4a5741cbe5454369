package parley

import (
	"context"
	"fmt"
)

// contextMarker prefixes resolved context when it is prepended to the
// system prompt, so the model can tell grounding data from instructions.
const contextMarker = "[Context]\n"

// PromptRule selects a system prompt variant for a turn.
// A nil When makes the rule unconditional (a literal).
type PromptRule struct {
	Text string
	When func(in RoutingInput) bool
}

// Literal returns an unconditional prompt rule.
func Literal(text string) PromptRule { return PromptRule{Text: text} }

// When returns a conditional prompt rule.
func When(cond func(in RoutingInput) bool, text string) PromptRule {
	return PromptRule{Text: text, When: cond}
}

// ContextProducer resolves grounding context on demand, per turn.
type ContextProducer func(ctx context.Context) (any, error)

// ContextFormatter overrides the default serialization of a resolved
// context value. Returning an error falls back to the default.
type ContextFormatter func(v any) (string, error)

// pickPrompt returns the first matching rule's text, falling back to the
// static system prompt. A rule with a nil predicate always matches. A
// panicking predicate skips that rule.
func pickPrompt(rules []PromptRule, in RoutingInput, fallback string) string {
	for _, r := range rules {
		if r.When == nil {
			return r.Text
		}
		if safePromptMatch(r, in) {
			return r.Text
		}
	}
	return fallback
}

func safePromptMatch(r PromptRule, in RoutingInput) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return r.When(in)
}

// resolveContext turns a configured context source into prompt text.
// Strings pass through. A ContextProducer is invoked with ctx. Any other
// value is serialized as canonical JSON so identical semantic content
// yields byte-identical prompts. A configured formatter takes precedence
// over the default serialization.
func resolveContext(ctx context.Context, source any, format ContextFormatter) (string, error) {
	if source == nil {
		return "", nil
	}

	value := source
	if producer, ok := source.(ContextProducer); ok {
		resolved, err := producer(ctx)
		if err != nil {
			return "", fmt.Errorf("resolve context: %w", err)
		}
		value = resolved
	}

	if s, ok := value.(string); ok {
		return s, nil
	}
	if value == nil {
		return "", nil
	}

	if format != nil {
		if out, err := format(value); err == nil {
			return out, nil
		}
	}

	out, err := CanonicalJSON(value)
	if err != nil {
		return "", fmt.Errorf("serialize context: %w", err)
	}
	return out, nil
}

// composePrompt joins resolved context and the chosen prompt text.
// Empty context leaves the prompt untouched; empty prompt yields just the
// marked context block.
func composePrompt(contextText, promptText string) string {
	if contextText == "" {
		return promptText
	}
	if promptText == "" {
		return contextMarker + contextText
	}
	return contextMarker + contextText + "\n\n" + promptText
}
