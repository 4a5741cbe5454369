package parley

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// Literal replies the agent produces on well-known degenerate paths.
const (
	// msgSelectBusiness aborts a tool batch when no business is selected.
	msgSelectBusiness = "Select a business to continue"
	// msgEmptyContinuation stands in for a continuation turn where neither
	// the tool result nor the model produced any text.
	msgEmptyContinuation = "Operation completed with no additional details."
)

// toolFailureMessage is the fail-soft transcript entry for one broken
// tool call. The batch continues after it.
func toolFailureMessage(name string) string {
	return fmt.Sprintf("Tool '%s' failed.", name)
}

// Agent owns one conversation: transcript, event subscribers, tool
// dispatch, and the provider loop. Send and SendStream serialize through
// an internal mutex, so an Agent is safe for concurrent use but processes
// one turn at a time.
type Agent struct {
	provider Provider
	cfg      AgentConfig
	history  *historyLog
	subs     *subscriberSet
	runners  *RunnerRegistry
	chain    *ProcessorChain
	logger   *slog.Logger
	loading  atomic.Bool

	// sendMu serializes turns. Tool handling runs inside the critical
	// section, so transcript order is deterministic per agent.
	sendMu sync.Mutex
}

// NewAgent builds an agent, applies config defaults, and seeds the
// transcript with the opening assistant message.
func NewAgent(provider Provider, cfg AgentConfig) (*Agent, error) {
	if provider == nil {
		return nil, errors.New("parley: provider is required")
	}
	cfg = cfg.withDefaults()

	chain, err := NewProcessorChain(cfg.Processors)
	if err != nil {
		return nil, fmt.Errorf("parley: %w", err)
	}

	a := &Agent{
		provider: provider,
		cfg:      cfg,
		history:  newHistoryLog(),
		subs:     newSubscriberSet(),
		runners:  NewRunnerRegistry(cfg.Runners),
		chain:    chain,
		logger:   cfg.Logger.With("agent", cfg.Name),
	}
	a.history.append(AssistantMessage(cfg.FirstMessage))
	return a, nil
}

// Name returns the configured agent name.
func (a *Agent) Name() string { return a.cfg.Name }

// Description returns the configured description.
func (a *Agent) Description() string { return a.cfg.Description }

// Config returns a copy of the effective configuration.
func (a *Agent) Config() AgentConfig { return a.cfg }

// On subscribes fn to events of type t and returns a cancel func.
func (a *Agent) On(t EventType, fn func(Event)) func() {
	return a.subs.add(t, fn)
}

// Messages returns a snapshot of the transcript.
func (a *Agent) Messages() []Message { return a.history.snapshot() }

// Loading reports whether a turn is in flight.
func (a *Agent) Loading() bool { return a.loading.Load() }

// SeedFirstAssistant plants brief as the opening assistant message. The
// seeded content is brief, or the configured FirstMessage when brief is
// empty. With reset, the transcript collapses to the seed followed by all
// prior user messages in order; prior assistant messages are dropped.
// Without reset the brief applies only when no assistant message exists
// yet or the first assistant message is blank, so a live conversation is
// never clobbered. Delegation uses this to brief a child before its turn.
func (a *Agent) SeedFirstAssistant(brief string, reset bool) {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	content := brief
	if content == "" {
		content = a.cfg.FirstMessage
	}

	if reset {
		var users []Message
		for _, m := range a.history.snapshot() {
			if m.Sender == SenderUser {
				users = append(users, m)
			}
		}
		a.history.reset()
		seed := AssistantMessage(content)
		a.history.append(seed)
		for _, m := range users {
			a.history.append(m)
		}
		a.subs.emit(Event{Type: EventMessage, Message: seed})
		return
	}

	for _, m := range a.history.snapshot() {
		if m.Sender != SenderAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) != "" {
			return
		}
		a.history.amend(m.ID, content)
		if updated, ok := a.history.get(m.ID); ok {
			a.subs.emit(Event{Type: EventMessage, Message: updated})
		}
		return
	}
	seed := AssistantMessage(content)
	a.history.append(seed)
	a.subs.emit(Event{Type: EventMessage, Message: seed})
}

// SendOption tweaks a single Send call.
type SendOption func(*sendConfig)

type sendConfig struct {
	forceTool string
}

// ForceTool forces the named tool for this turn, overriding any routing
// policy decision.
func ForceTool(name string) SendOption {
	return func(c *sendConfig) { c.forceTool = name }
}

// Send runs one non-streaming turn: append the user message, call the
// provider, and append the reply (running the tool batch when the model
// calls tools). Whitespace-only input is a no-op.
//
// Send never leaves the transcript without a terminal assistant message:
// provider failures append the fallback message and return the error as an
// advisory. Loading is guaranteed false on every exit path.
func (a *Agent) Send(ctx context.Context, text string, opts ...SendOption) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sc sendConfig
	for _, opt := range opts {
		opt(&sc)
	}

	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	correlationID := NewID()

	if err := a.chain.RunPreSend(ctx, &text); err != nil {
		var halt *ErrHalt
		if errors.As(err, &halt) {
			a.pushAssistant(halt.Response)
			return nil
		}
		a.emit("send_error", correlationID, map[string]any{"stage": "pre_send", "error": err.Error()})
		a.failTurn(err)
		return err
	}

	preTurn := a.history.snapshot()
	a.pushUser(text)

	a.setLoading(true)
	defer a.setLoading(false)

	in := RoutingInput{Text: text, History: preTurn, Tools: a.cfg.Tools}
	choice := a.resolveToolChoice(sc, in)
	systemPrompt := a.resolveSystemPrompt(ctx, correlationID, in)

	req := ChatRequest{
		Messages:     a.history.snapshot(),
		SystemPrompt: systemPrompt,
		Tools:        a.cfg.Tools,
		ToolChoice:   choice,
		Debug:        a.cfg.Debug,
	}
	a.emit("send", correlationID, map[string]any{
		"text_length": len(text),
		"tool_choice": choice.String(),
		"tool_count":  len(req.Tools),
	})

	resp, err := a.callProvider(ctx, "agent.send", req)
	if err != nil {
		a.emit("provider_error", correlationID, map[string]any{"error": err.Error()})
		a.failTurn(err)
		return err
	}

	if len(resp.ToolCalls) > 0 {
		a.runToolBatch(ctx, correlationID, systemPrompt, resp.ToolCalls)
		return nil
	}
	if resp.Content != "" {
		a.pushAssistant(resp.Content)
	}
	return nil
}

// SendStream runs one streaming turn. An empty assistant placeholder is
// appended immediately and amended in place as deltas arrive; each delta
// also fires a stream event. On stream failure the placeholder is replaced
// with the fallback message and the error is returned as an advisory.
// Tool calls are not dispatched on the streaming path.
func (a *Agent) SendStream(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	correlationID := NewID()

	if err := a.chain.RunPreSend(ctx, &text); err != nil {
		var halt *ErrHalt
		if errors.As(err, &halt) {
			a.pushAssistant(halt.Response)
			return nil
		}
		a.emit("stream_error", correlationID, map[string]any{"stage": "pre_send", "error": err.Error()})
		a.failTurn(err)
		return err
	}

	preTurn := a.history.snapshot()
	a.pushUser(text)

	a.setLoading(true)
	defer a.setLoading(false)

	in := RoutingInput{Text: text, History: preTurn}
	systemPrompt := a.resolveSystemPrompt(ctx, correlationID, in)

	req := ChatRequest{
		Messages:     a.history.snapshot(),
		SystemPrompt: systemPrompt,
		Debug:        a.cfg.Debug,
	}

	placeholder := AssistantMessage("")
	a.history.append(placeholder)
	a.subs.emit(Event{Type: EventMessage, Message: placeholder})
	a.emit("stream_start", correlationID, map[string]any{"text_length": len(text)})

	ch := make(chan StreamChunk, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.provider.SendMessageStream(ctx, req, ch)
	}()

	var full strings.Builder
	for chunk := range ch {
		if chunk.Delta == "" {
			continue
		}
		full.WriteString(chunk.Delta)
		a.history.amend(placeholder.ID, full.String())
		a.subs.emit(Event{Type: EventStream, Delta: chunk.Delta, MessageID: placeholder.ID})
	}

	if err := <-errCh; err != nil {
		a.history.amend(placeholder.ID, a.cfg.FallbackMessage)
		if m, ok := a.history.get(placeholder.ID); ok {
			a.subs.emit(Event{Type: EventMessage, Message: m})
		}
		a.subs.emit(Event{Type: EventError, Err: err})
		a.emit("stream_error", correlationID, map[string]any{"error": err.Error()})
		return err
	}

	if m, ok := a.history.get(placeholder.ID); ok {
		a.subs.emit(Event{Type: EventMessage, Message: m})
	}
	a.emit("stream_done", correlationID, map[string]any{"content_length": full.Len()})
	return nil
}

// runToolBatch executes the model's tool calls strictly in order. Each
// successful call is followed by a continuation request with tool choice
// "none" so the model narrates the result without chaining further calls.
// Failures are fail-soft per call; the batch keeps going.
func (a *Agent) runToolBatch(ctx context.Context, correlationID, systemPrompt string, calls []ToolCall) {
	toolCtx := ToolContext{}
	if a.cfg.ToolContextProvider != nil {
		resolved, err := a.cfg.ToolContextProvider(ctx)
		if err != nil {
			a.emit("tool_context_error", correlationID, map[string]any{"error": err.Error()})
			a.pushAssistant(msgSelectBusiness)
			return
		}
		if resolved.BusinessID == "" {
			a.emit("tool_context_missing", correlationID, map[string]any{"reason": "business_id"})
			a.pushAssistant(msgSelectBusiness)
			return
		}
		toolCtx = resolved
	}

	lastUser := lastUserText(a.history.snapshot())

	for _, call := range calls {
		name := SanitizeToolName(call.Name)

		runner, ok := a.runners.Lookup(name)
		if !ok {
			a.logger.Warn("no runner registered for tool, call skipped", "tool", name)
			continue
		}

		args := injectContext(ParseArguments(call.Args), toolCtx)
		args[LastUserArgKey] = lastUser
		a.emit("tool_call", correlationID, map[string]any{"tool": name})

		result, err := safeRun(ctx, runner, args)
		if err != nil {
			a.logger.Warn("tool run failed", "tool", name, "error", err)
			a.emit("tool_error", correlationID, map[string]any{"tool": name, "error": err.Error()})
			a.pushAssistant(toolFailureMessage(name))
			continue
		}

		text, coerced := NormalizeResult(result)
		if coerced {
			a.emit("tool_result_fallback", correlationID, map[string]any{"tool": name})
		}
		if err := a.chain.RunPostTool(ctx, call, &text); err != nil {
			a.logger.Warn("post-tool processor rejected result", "tool", name, "error", err)
			a.emit("tool_error", correlationID, map[string]any{"tool": name, "error": err.Error()})
			a.pushAssistant(toolFailureMessage(name))
			continue
		}
		if text != "" {
			a.pushAssistant(text)
		}

		cont, err := a.callProvider(ctx, "agent.continuation", ChatRequest{
			Messages:     a.history.snapshot(),
			SystemPrompt: systemPrompt,
			Tools:        a.cfg.Tools,
			ToolChoice:   NoneChoice(),
			Debug:        a.cfg.Debug,
		})
		if err != nil {
			a.emit("tool_continuation_error", correlationID, map[string]any{"tool": name, "error": err.Error()})
			a.pushAssistant(toolFailureMessage(name))
			continue
		}
		var final string
		if len(cont.ToolCalls) > 0 {
			// Tool choice was "none"; the whole continuation is discarded
			// and the normalized tool result stays terminal.
			a.logger.Debug("continuation returned tool calls despite none choice, discarded",
				"tool", name, "count", len(cont.ToolCalls))
		} else {
			final = cont.Content
		}
		if final == "" && text == "" {
			final = msgEmptyContinuation
		}
		if final != "" {
			a.pushAssistant(final)
		}
		a.emit("tool_result", correlationID, map[string]any{"tool": name, "coerced": coerced})
	}
}

// resolveToolChoice picks the tool choice for a turn: an explicit
// per-call override wins, then the routing policy, then auto.
func (a *Agent) resolveToolChoice(sc sendConfig, in RoutingInput) ToolChoice {
	if sc.forceTool != "" {
		return ForcedChoice(SanitizeToolName(sc.forceTool))
	}
	return a.cfg.Routing.Evaluate(in, a.logger)
}

// resolveSystemPrompt resolves grounding context and picks the prompt
// variant for this turn. Context resolution failures degrade to a prompt
// without context; the turn still runs.
func (a *Agent) resolveSystemPrompt(ctx context.Context, correlationID string, in RoutingInput) string {
	contextText, err := resolveContext(ctx, a.cfg.ContextSource, a.cfg.ContextFormatter)
	if err != nil {
		a.logger.Warn("context resolution failed, continuing without context", "error", err)
		a.emit("context_error", correlationID, map[string]any{"error": err.Error()})
		contextText = ""
	}
	return composePrompt(contextText, pickPrompt(a.cfg.PromptRules, in, a.cfg.SystemPrompt))
}

// callProvider wraps a provider call in a span when tracing is configured.
func (a *Agent) callProvider(ctx context.Context, spanName string, req ChatRequest) (ChatResponse, error) {
	if a.cfg.Tracer == nil {
		return a.provider.SendMessage(ctx, req)
	}
	ctx, span := a.cfg.Tracer.Start(ctx, spanName,
		StringAttr("provider", a.provider.Name()),
		StringAttr("tool_choice", req.ToolChoice.String()),
		IntAttr("message_count", len(req.Messages)))
	defer span.End()

	resp, err := a.provider.SendMessage(ctx, req)
	if err != nil {
		span.Error(err)
		return resp, err
	}
	span.SetAttr(
		IntAttr("tokens.input", resp.Usage.InputTokens),
		IntAttr("tokens.output", resp.Usage.OutputTokens),
		IntAttr("tool_calls", len(resp.ToolCalls)))
	return resp, nil
}

// failTurn records a terminal failure: error event out, fallback message in.
func (a *Agent) failTurn(err error) {
	a.subs.emit(Event{Type: EventError, Err: err})
	a.pushAssistant(a.cfg.FallbackMessage)
}

func (a *Agent) pushUser(text string) {
	m := UserMessage(text)
	a.history.append(m)
	a.subs.emit(Event{Type: EventMessage, Message: m})
}

func (a *Agent) pushAssistant(text string) {
	m := AssistantMessage(text)
	a.history.append(m)
	a.subs.emit(Event{Type: EventMessage, Message: m})
}

// setLoading flips the loading flag and emits a loading event only on an
// actual state change, so nested calls never double-fire.
func (a *Agent) setLoading(v bool) {
	if a.loading.CompareAndSwap(!v, v) {
		a.subs.emit(Event{Type: EventLoading, Loading: v})
	}
}

// emit sends one diagnostic event through the agent's observability config.
func (a *Agent) emit(name, correlationID string, payload map[string]any) {
	emitEvent(name, a.cfg.Observability, a.logger, correlationID, payload)
}

// nopLogger discards all output. Used when AgentConfig.Logger is not set.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
