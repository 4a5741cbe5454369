package parley

import (
	"context"
	"encoding/json"
	"fmt"
)

// ContextArgKey is the reserved argument key under which the session's
// ToolContext is injected into every tool run.
const ContextArgKey = "__context"

// LastUserArgKey is the reserved argument key under which the text of the
// most recent user message is injected into every tool run. Delegating
// tools surface it to brief builders.
const LastUserArgKey = "__last_user_message"

// ToolRunner executes one tool. Implementations receive parsed arguments
// with the ToolContext already injected under ContextArgKey.
type ToolRunner interface {
	Run(ctx context.Context, args map[string]any) (any, error)
}

// RunnerFunc adapts a function to the ToolRunner interface.
type RunnerFunc func(ctx context.Context, args map[string]any) (any, error)

func (f RunnerFunc) Run(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// RunnerRegistry maps sanitized tool names to runners.
// Lookup sanitizes its input, so callers may pass raw model output.
type RunnerRegistry struct {
	runners map[string]ToolRunner
}

// NewRunnerRegistry creates a registry, optionally pre-populated from a
// name-to-runner map. Keys are sanitized on insertion.
func NewRunnerRegistry(runners map[string]ToolRunner) *RunnerRegistry {
	r := &RunnerRegistry{runners: make(map[string]ToolRunner, len(runners))}
	for name, runner := range runners {
		r.Register(name, runner)
	}
	return r
}

// Register adds a runner under the sanitized form of name.
// A later registration with the same sanitized name replaces the earlier one.
func (r *RunnerRegistry) Register(name string, runner ToolRunner) {
	if runner == nil {
		return
	}
	r.runners[SanitizeToolName(name)] = runner
}

// Lookup returns the runner for name (sanitized before lookup).
func (r *RunnerRegistry) Lookup(name string) (ToolRunner, bool) {
	runner, ok := r.runners[SanitizeToolName(name)]
	return runner, ok
}

// Len returns the number of registered runners.
func (r *RunnerRegistry) Len() int { return len(r.runners) }

// ParseArguments normalizes a ToolCall's raw argument payload into a map.
// Maps are copied, JSON-encoded strings are decoded, raw JSON is decoded,
// and anything else (including nil) yields an empty map. Never fails:
// malformed payloads degrade to an empty map.
func ParseArguments(raw any) map[string]any {
	switch a := raw.(type) {
	case map[string]any:
		out := make(map[string]any, len(a))
		for k, v := range a {
			out[k] = v
		}
		return out
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(a), &out); err == nil && out != nil {
			return out
		}
	case json.RawMessage:
		var out map[string]any
		if err := json.Unmarshal(a, &out); err == nil && out != nil {
			return out
		}
	case []byte:
		var out map[string]any
		if err := json.Unmarshal(a, &out); err == nil && out != nil {
			return out
		}
	}
	return map[string]any{}
}

// injectContext adds the ToolContext to parsed arguments under ContextArgKey.
func injectContext(args map[string]any, tc ToolContext) map[string]any {
	args[ContextArgKey] = map[string]any{
		"businessId": tc.BusinessID,
		"sessionId":  tc.SessionID,
		"userId":     tc.UserID,
	}
	return args
}

// ContextFromArgs recovers the injected ToolContext from runner arguments.
// Runners use this instead of re-parsing the raw map.
func ContextFromArgs(args map[string]any) ToolContext {
	raw, ok := args[ContextArgKey].(map[string]any)
	if !ok {
		return ToolContext{}
	}
	var tc ToolContext
	if v, ok := raw["businessId"].(string); ok {
		tc.BusinessID = v
	}
	if v, ok := raw["sessionId"].(string); ok {
		tc.SessionID = v
	}
	if v, ok := raw["userId"].(string); ok {
		tc.UserID = v
	}
	return tc
}

// safeRun executes a runner with panic containment. A panic becomes an
// ordinary error so one misbehaving tool cannot take down the turn.
func safeRun(ctx context.Context, runner ToolRunner, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("tool panic: %v", r)
		}
	}()
	return runner.Run(ctx, args)
}
