package parley

import (
	"context"
	"encoding/json"
	"fmt"
)

// defaultBriefTemplate renders the delegation brief when neither a
// PreDelegate hook nor a parent BriefFormatter is configured.
const defaultBriefTemplate = "You are the %s delegate. Task: %s. Provide a concise response."

// defaultDelegateSchema is the input schema for delegating tools without
// a custom schema.
var defaultDelegateSchema = json.RawMessage(`{"type":"object","properties":{"input":{"type":"string","description":"Task for the delegate, in plain language."}},"required":["input"]}`)

// DelegationContext is everything a brief builder or post-delegate hook
// can see about one delegation.
type DelegationContext struct {
	// Child is the delegate's registered tool name.
	Child string
	// Input is the task text the model passed to the delegating tool.
	Input string
	// LastUserMessage is the parent's most recent user message.
	LastUserMessage string
	// History is a snapshot of the child's transcript before the brief.
	History []Message
	// ChildTools are the tools the child itself advertises.
	ChildTools []RuntimeTool
	// BusinessID, SessionID, and UserID carry the parent's tool context.
	BusinessID string
	SessionID  string
	UserID     string
	// Constraints are free-form limits from DelegateOptions.
	Constraints map[string]any
}

// DelegateOptions configures AsDelegatingTool and NewOrchestratorConfig.
type DelegateOptions struct {
	// FreshConversation collapses the child's transcript around the new
	// brief on every delegation, dropping the child's prior assistant
	// messages. When false the brief only applies to a child that has not
	// produced an assistant reply yet.
	FreshConversation bool
	// PreDelegate builds the brief, overriding the parent's BriefFormatter
	// and the default template.
	PreDelegate BriefFormatter
	// Constraints are surfaced to brief builders via DelegationContext.
	Constraints map[string]any
	// Schema replaces the default input schema of the delegating tool.
	Schema json.RawMessage
}

// delegationDepthKey carries the nesting depth through context.
type delegationDepthKey struct{}

// withDelegationDepth returns a child context at the given depth.
func withDelegationDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, delegationDepthKey{}, depth)
}

// DelegationDepth returns the current nesting depth, 0 outside delegation.
func DelegationDepth(ctx context.Context) int {
	if d, ok := ctx.Value(delegationDepthKey{}).(int); ok {
		return d
	}
	return 0
}

// AsDelegatingTool wraps child as a tool the parent's model can call.
// The runner seeds the child's opening assistant message with the brief
// (resetting the child's transcript first when FreshConversation is set),
// runs a full child turn on the task input, and returns the child's reply
// as the tool result.
//
// Brief priority: opts.PreDelegate, then parent.BriefFormatter, then the
// default template. Child errors propagate to the caller; the parent's
// batch loop turns them into the standard per-tool failure entry. Nesting
// beyond the parent's MaxDelegationDepth fails the same way.
func AsDelegatingTool(parent *AgentConfig, name string, child *Agent, opts DelegateOptions) (RuntimeTool, ToolRunner) {
	toolName := SanitizeToolName(name)

	schema := opts.Schema
	if len(schema) == 0 {
		schema = defaultDelegateSchema
	}
	tool := RuntimeTool{
		ID:          NewID(),
		Name:        toolName,
		Description: fmt.Sprintf("Delegate a task to %s. %s", toolName, child.Description()),
		InputSchema: schema,
	}

	runner := RunnerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		input := taskInput(args)
		tc := ContextFromArgs(args)

		limit := parent.MaxDelegationDepth
		if limit <= 0 {
			limit = defaultMaxDelegationDepth
		}
		depth := DelegationDepth(ctx)
		if depth >= limit {
			return nil, fmt.Errorf("delegation depth %d exceeds limit %d", depth, limit)
		}
		ctx = withDelegationDepth(ctx, depth+1)

		lastUser, _ := args[LastUserArgKey].(string)
		dc := DelegationContext{
			Child:           toolName,
			Input:           input,
			LastUserMessage: lastUser,
			History:         child.Messages(),
			ChildTools:      child.Config().Tools,
			BusinessID:      tc.BusinessID,
			SessionID:       tc.SessionID,
			UserID:          tc.UserID,
			Constraints:     opts.Constraints,
		}

		brief := buildBrief(parent, toolName, input, opts, dc)

		correlationID := NewID()
		emitEvent("delegate_start", parent.Observability, parent.Logger, correlationID, map[string]any{
			"child": toolName,
			"depth": depth + 1,
			"brief": brief,
		})

		child.SeedFirstAssistant(brief, opts.FreshConversation)

		if err := child.Send(ctx, input); err != nil {
			emitEvent("delegate_error", parent.Observability, parent.Logger, correlationID, map[string]any{
				"child": toolName,
				"error": err.Error(),
			})
			return nil, fmt.Errorf("delegate %s: %w", toolName, err)
		}

		reply := lastAssistantReply(child.Messages())
		if reply == "" {
			reply = msgEmptyContinuation
		}
		if parent.PostDelegate != nil {
			if rewritten := parent.PostDelegate(dc, reply); rewritten != "" {
				reply = rewritten
			}
		}

		emitEvent("delegate_end", parent.Observability, parent.Logger, correlationID, map[string]any{
			"child":        toolName,
			"reply_length": len(reply),
		})
		return reply, nil
	})

	return tool, runner
}

// taskInput extracts the delegated task text: the "input" argument when it
// is a string, otherwise the remaining arguments JSON-encoded.
func taskInput(args map[string]any) string {
	if input, ok := args["input"].(string); ok && input != "" {
		return input
	}
	public := make(map[string]any, len(args))
	for k, v := range args {
		if k == ContextArgKey || k == LastUserArgKey {
			continue
		}
		public[k] = v
	}
	if len(public) == 0 {
		return ""
	}
	encoded, err := CanonicalJSON(public)
	if err != nil {
		return ""
	}
	return encoded
}

// buildBrief resolves the brief text by priority.
func buildBrief(parent *AgentConfig, name, input string, opts DelegateOptions, dc DelegationContext) string {
	if opts.PreDelegate != nil {
		if brief := opts.PreDelegate(dc); brief != "" {
			return brief
		}
	}
	if parent.BriefFormatter != nil {
		if brief := parent.BriefFormatter(dc); brief != "" {
			return brief
		}
	}
	return fmt.Sprintf(defaultBriefTemplate, name, input)
}

// lastAssistantReply returns the newest assistant message content.
func lastAssistantReply(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == SenderAssistant {
			return msgs[i].Content
		}
	}
	return ""
}

// lastUserText returns the newest user message content.
func lastUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == SenderUser {
			return msgs[i].Content
		}
	}
	return ""
}

// NewOrchestratorConfig extends base with one delegating tool per child.
// The base config's routing policy, observability, and brief formatter
// always win; children contribute only their tool and runner. Children are
// registered under their own agent names.
func NewOrchestratorConfig(base AgentConfig, children []*Agent, opts DelegateOptions) AgentConfig {
	cfg := base
	cfg.Tools = append([]RuntimeTool(nil), base.Tools...)
	cfg.Runners = make(map[string]ToolRunner, len(base.Runners)+len(children))
	for name, runner := range base.Runners {
		cfg.Runners[name] = runner
	}

	for _, child := range children {
		tool, runner := AsDelegatingTool(&cfg, child.Name(), child, opts)
		cfg.Tools = append(cfg.Tools, tool)
		cfg.Runners[tool.Name] = runner
	}
	return cfg
}
