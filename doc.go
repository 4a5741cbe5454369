// Package parley is an embeddable conversational copilot runtime.
//
// An Agent owns one conversation: it keeps the transcript, notifies
// subscribers about message, loading, stream, and error events, and runs
// the provider loop including sequential tool dispatch. Providers abstract
// the LLM backend (see provider/openaicompat); tools are plain ToolRunner
// implementations registered by name. Delegation wraps a whole child agent
// as a tool of its parent, and NewOrchestratorConfig assembles a parent
// config from a set of children.
//
// Routing policies force tool choices per turn, prompt rules and context
// sources ground the system prompt, and the Observability hooks emit
// redacted diagnostic events to pluggable sinks (see journal and observer).
package parley
