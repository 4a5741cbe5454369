package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for spans and metrics emitted by the observer wrappers.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrToolCount  = attribute.Key("llm.tool_count")
	AttrToolChoice = attribute.Key("llm.tool_choice")

	AttrStreamChunks = attribute.Key("llm.stream_chunks")

	AttrToolName   = attribute.Key("tool.name")
	AttrToolStatus = attribute.Key("tool.status")

	AttrAgentName  = attribute.Key("agent.name")
	AttrEventName  = attribute.Key("event.name")
	AttrDelegChild = attribute.Key("delegation.child")
)
