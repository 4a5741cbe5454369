package parley

import (
	"context"
	"log/slog"
)

// Default messages used when the corresponding AgentConfig field is empty.
const (
	defaultFirstMessage    = "Hi! How can I help you today?"
	defaultFallbackMessage = "Something went wrong. Please try again."
)

// defaultMaxDelegationDepth bounds nested delegation when
// AgentConfig.MaxDelegationDepth is zero.
const defaultMaxDelegationDepth = 8

// ToolContextProvider resolves the session identity injected into tool runs.
// When configured, a resolved context with an empty BusinessID aborts the
// tool batch (the user must select a business first).
type ToolContextProvider func(ctx context.Context) (ToolContext, error)

// BriefFormatter builds the task brief handed to a delegate child.
type BriefFormatter func(dc DelegationContext) string

// PostDelegateHook observes a finished delegation on the parent side.
// The returned string, when non-empty, replaces the delegate's reply.
type PostDelegateHook func(dc DelegationContext, reply string) string

// AgentConfig declares everything about an agent except its provider.
// The zero value is usable: NewAgent fills in defaults for the first and
// fallback messages, the logger, and the delegation depth limit.
type AgentConfig struct {
	// Name identifies the agent in logs, events, and delegation briefs.
	Name string
	// Description is surfaced to hosts and orchestrators. Informational.
	Description string
	// Avatar is an optional image URL for host UIs.
	Avatar string

	// SystemPrompt is the static fallback prompt when no PromptRules match.
	SystemPrompt string
	// PromptRules pick a prompt variant per turn, first match wins.
	PromptRules []PromptRule
	// ContextSource grounds the prompt: a string, a ContextProducer, or a
	// plain value serialized as canonical JSON.
	ContextSource any
	// ContextFormatter overrides default context serialization.
	ContextFormatter ContextFormatter

	// FirstMessage seeds the transcript as the opening assistant message.
	FirstMessage string
	// FallbackMessage is appended whenever a turn fails terminally.
	FallbackMessage string

	// Tools are the runtime tools advertised to the provider.
	Tools []RuntimeTool
	// Runners execute tool calls, keyed by tool name (sanitized at build).
	Runners map[string]ToolRunner
	// ToolContextProvider resolves the per-session ToolContext. When nil,
	// tools run with an empty context and no business gating applies.
	ToolContextProvider ToolContextProvider

	// Routing forces tool choices before the provider call.
	Routing *RoutingPolicy

	// BriefFormatter builds delegation briefs for children of this agent.
	BriefFormatter BriefFormatter
	// PostDelegate observes (and may rewrite) delegate replies.
	PostDelegate PostDelegateHook
	// MaxDelegationDepth bounds nested delegation. Zero means the default (8).
	MaxDelegationDepth int

	// Observability configures diagnostic event emission.
	Observability Observability
	// Processors run at the PreSend and PostTool hook points.
	Processors []any

	// Logger receives structured logs. Nil means no output.
	Logger *slog.Logger
	// Tracer receives spans. Nil disables tracing.
	Tracer Tracer
	// Debug is passed through to the provider and loosens event redaction.
	Debug bool
}

// withDefaults returns cfg with empty ambient fields filled in.
func (cfg AgentConfig) withDefaults() AgentConfig {
	if cfg.FirstMessage == "" {
		cfg.FirstMessage = defaultFirstMessage
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = defaultFallbackMessage
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger
	}
	if cfg.MaxDelegationDepth <= 0 {
		cfg.MaxDelegationDepth = defaultMaxDelegationDepth
	}
	return cfg
}
