package parley

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// newChild builds a delegate agent over its own scripted provider.
func newChild(t *testing.T, name string, results ...scriptedResult) (*Agent, *scriptedProvider) {
	t.Helper()
	p := &scriptedProvider{results: results}
	child := newTestAgent(t, p, AgentConfig{Name: name, Description: "answers " + name + " questions"})
	return child, p
}

func delegateArgs(input string) map[string]any {
	return map[string]any{
		"input":        input,
		LastUserArgKey: "original user question",
	}
}

func TestDelegatingToolShape(t *testing.T) {
	child, _ := newChild(t, "kb search")
	parent := AgentConfig{}
	tool, runner := AsDelegatingTool(&parent, "kb search", child, DelegateOptions{})

	if tool.Name != "kb_search" {
		t.Errorf("tool name = %q, want sanitized", tool.Name)
	}
	if !strings.Contains(tool.Description, "Delegate a task to kb_search.") {
		t.Errorf("description = %q", tool.Description)
	}
	if len(tool.InputSchema) == 0 {
		t.Error("missing input schema")
	}
	if runner == nil {
		t.Fatal("nil runner")
	}
}

func TestDelegatingToolCustomSchema(t *testing.T) {
	child, _ := newChild(t, "kb")
	parent := AgentConfig{}
	schema := json.RawMessage(`{"type":"object","properties":{"input":{"type":"string"},"lang":{"type":"string"}}}`)
	tool, _ := AsDelegatingTool(&parent, "kb", child, DelegateOptions{Schema: schema})
	if string(tool.InputSchema) != string(schema) {
		t.Errorf("schema = %s", tool.InputSchema)
	}
}

func TestDelegationDefaultBrief(t *testing.T) {
	child, cp := newChild(t, "kb_search", scriptedResult{resp: ChatResponse{Content: "found it"}})
	parent := AgentConfig{}
	_, runner := AsDelegatingTool(&parent, "kb_search", child, DelegateOptions{FreshConversation: true})

	reply, err := runner.Run(context.Background(), delegateArgs("find the refund policy"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply != "found it" {
		t.Errorf("reply = %v", reply)
	}

	// brief seeds the child's opening assistant message, the task text is
	// the child's user turn
	msgs := child.Messages()
	want := "You are the kb_search delegate. Task: find the refund policy. Provide a concise response."
	if msgs[0].Content != want {
		t.Errorf("brief = %q, want %q", msgs[0].Content, want)
	}
	if got := lastUserText(msgs); got != "find the refund policy" {
		t.Errorf("child user turn = %q", got)
	}
	if cp.callCount() != 1 {
		t.Errorf("child provider calls = %d", cp.callCount())
	}
}

func TestDelegationTaskInputFromArgs(t *testing.T) {
	if got := taskInput(map[string]any{"input": "plain task"}); got != "plain task" {
		t.Errorf("got %q", got)
	}
	got := taskInput(map[string]any{
		"query":        "refunds",
		"limit":        3,
		ContextArgKey:  map[string]any{"businessId": "b"},
		LastUserArgKey: "hidden",
	})
	if got != `{"limit":3,"query":"refunds"}` {
		t.Errorf("got %q, want reserved keys stripped", got)
	}
	if got := taskInput(map[string]any{}); got != "" {
		t.Errorf("got %q for empty args", got)
	}
}

func TestDelegationBriefPriority(t *testing.T) {
	t.Run("pre-delegate wins", func(t *testing.T) {
		child, _ := newChild(t, "kb", scriptedResult{resp: ChatResponse{Content: "ok"}})
		parent := AgentConfig{
			BriefFormatter: func(DelegationContext) string { return "formatter brief" },
		}
		_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{
			FreshConversation: true,
			PreDelegate:       func(DelegationContext) string { return "hook brief" },
		})
		if _, err := runner.Run(context.Background(), delegateArgs("task")); err != nil {
			t.Fatal(err)
		}
		if got := child.Messages()[0].Content; got != "hook brief" {
			t.Errorf("brief = %q", got)
		}
	})

	t.Run("empty pre-delegate falls through", func(t *testing.T) {
		child, _ := newChild(t, "kb", scriptedResult{resp: ChatResponse{Content: "ok"}})
		parent := AgentConfig{
			BriefFormatter: func(DelegationContext) string { return "formatter brief" },
		}
		_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{
			FreshConversation: true,
			PreDelegate:       func(DelegationContext) string { return "" },
		})
		if _, err := runner.Run(context.Background(), delegateArgs("task")); err != nil {
			t.Fatal(err)
		}
		if got := child.Messages()[0].Content; got != "formatter brief" {
			t.Errorf("brief = %q", got)
		}
	})

	t.Run("empty formatter falls to default", func(t *testing.T) {
		child, _ := newChild(t, "kb", scriptedResult{resp: ChatResponse{Content: "ok"}})
		parent := AgentConfig{
			BriefFormatter: func(DelegationContext) string { return "" },
		}
		_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{FreshConversation: true})
		if _, err := runner.Run(context.Background(), delegateArgs("task")); err != nil {
			t.Fatal(err)
		}
		want := fmt.Sprintf(defaultBriefTemplate, "kb", "task")
		if got := child.Messages()[0].Content; got != want {
			t.Errorf("brief = %q", got)
		}
	})

	t.Run("brief never clobbers a live child", func(t *testing.T) {
		child, _ := newChild(t, "kb",
			scriptedResult{resp: ChatResponse{Content: "warm reply"}},
			scriptedResult{resp: ChatResponse{Content: "ok"}},
		)
		if err := child.Send(context.Background(), "warmup"); err != nil {
			t.Fatal(err)
		}
		parent := AgentConfig{}
		_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{})
		if _, err := runner.Run(context.Background(), delegateArgs("task")); err != nil {
			t.Fatal(err)
		}
		if got := child.Messages()[0].Content; got != defaultFirstMessage {
			t.Errorf("opening message = %q, want untouched", got)
		}
	})
}

func TestDelegationContextFields(t *testing.T) {
	child, _ := newChild(t, "kb", scriptedResult{resp: ChatResponse{Content: "ok"}})
	var seen DelegationContext
	parent := AgentConfig{}
	_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{
		Constraints: map[string]any{"max_words": 50},
		PreDelegate: func(dc DelegationContext) string {
			seen = dc
			return "go"
		},
	})

	args := injectContext(delegateArgs("the task"), ToolContext{
		BusinessID: "b1", SessionID: "s1", UserID: "u1",
	})
	if _, err := runner.Run(context.Background(), args); err != nil {
		t.Fatal(err)
	}

	if seen.Child != "kb" || seen.Input != "the task" {
		t.Errorf("dc = %+v", seen)
	}
	if seen.LastUserMessage != "original user question" {
		t.Errorf("LastUserMessage = %q", seen.LastUserMessage)
	}
	if seen.BusinessID != "b1" || seen.SessionID != "s1" || seen.UserID != "u1" {
		t.Errorf("tool context in dc = %+v", seen)
	}
	if seen.Constraints["max_words"] != 50 {
		t.Errorf("constraints = %v", seen.Constraints)
	}
	if len(seen.History) == 0 {
		t.Error("missing child history snapshot")
	}
}

func TestDelegationDepthLimit(t *testing.T) {
	child, cp := newChild(t, "kb", scriptedResult{resp: ChatResponse{Content: "ok"}})
	parent := AgentConfig{MaxDelegationDepth: 2}
	_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{})

	ctx := withDelegationDepth(context.Background(), 2)
	if _, err := runner.Run(ctx, delegateArgs("task")); err == nil {
		t.Fatal("want depth limit error")
	}
	if cp.callCount() != 0 {
		t.Error("child ran despite exceeded depth")
	}

	// below the limit it still runs
	ctx = withDelegationDepth(context.Background(), 1)
	if _, err := runner.Run(ctx, delegateArgs("task")); err != nil {
		t.Fatalf("Run below limit: %v", err)
	}
}

func TestDelegationDepthFromContext(t *testing.T) {
	if got := DelegationDepth(context.Background()); got != 0 {
		t.Errorf("depth = %d, want 0", got)
	}
	ctx := withDelegationDepth(context.Background(), 3)
	if got := DelegationDepth(ctx); got != 3 {
		t.Errorf("depth = %d, want 3", got)
	}
}

func TestDelegationDepthSeenByChildTools(t *testing.T) {
	var childDepth int
	childProvider := &scriptedProvider{results: []scriptedResult{
		{resp: ChatResponse{ToolCalls: []ToolCall{{ID: "c1", Name: "probe"}}}},
		{resp: ChatResponse{Content: "done"}},
	}}
	child := newTestAgent(t, childProvider, AgentConfig{
		Name: "kb",
		Runners: map[string]ToolRunner{
			"probe": RunnerFunc(func(ctx context.Context, _ map[string]any) (any, error) {
				childDepth = DelegationDepth(ctx)
				return "probed", nil
			}),
		},
	})
	parent := AgentConfig{}
	_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{})

	if _, err := runner.Run(context.Background(), delegateArgs("task")); err != nil {
		t.Fatal(err)
	}
	if childDepth != 1 {
		t.Errorf("depth inside child tool = %d, want 1", childDepth)
	}
}

func TestDelegationFreshConversation(t *testing.T) {
	child, _ := newChild(t, "kb",
		scriptedResult{resp: ChatResponse{Content: "first answer"}},
		scriptedResult{resp: ChatResponse{Content: "second answer"}},
	)
	// preload history
	if err := child.Send(context.Background(), "warmup question"); err != nil {
		t.Fatal(err)
	}

	parent := AgentConfig{}
	_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{FreshConversation: true})
	if _, err := runner.Run(context.Background(), delegateArgs("task")); err != nil {
		t.Fatal(err)
	}

	// brief seed, preserved warmup user message, task, reply; prior
	// assistant messages are gone
	got := transcript(child)
	want := []string{
		fmt.Sprintf(defaultBriefTemplate, "kb", "task"),
		"warmup question",
		"task",
		"second answer",
	}
	if len(got) != len(want) {
		t.Fatalf("child transcript = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transcript[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDelegationPostDelegateRewrite(t *testing.T) {
	child, _ := newChild(t, "kb", scriptedResult{resp: ChatResponse{Content: "raw reply"}})
	parent := AgentConfig{
		PostDelegate: func(dc DelegationContext, reply string) string {
			return "[" + dc.Child + "] " + reply
		},
	}
	_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{})

	reply, err := runner.Run(context.Background(), delegateArgs("task"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "[kb] raw reply" {
		t.Errorf("reply = %v", reply)
	}
}

func TestDelegationPostDelegateEmptyKeepsOriginal(t *testing.T) {
	child, _ := newChild(t, "kb", scriptedResult{resp: ChatResponse{Content: "raw reply"}})
	parent := AgentConfig{
		PostDelegate: func(DelegationContext, string) string { return "" },
	}
	_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{})

	reply, err := runner.Run(context.Background(), delegateArgs("task"))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "raw reply" {
		t.Errorf("reply = %v", reply)
	}
}

func TestDelegationChildErrorPropagates(t *testing.T) {
	child, _ := newChild(t, "kb", scriptedResult{err: errors.New("child backend down")})
	parent := AgentConfig{}
	_, runner := AsDelegatingTool(&parent, "kb", child, DelegateOptions{})

	_, err := runner.Run(context.Background(), delegateArgs("task"))
	if err == nil || !strings.HasPrefix(err.Error(), "delegate kb:") {
		t.Errorf("err = %v", err)
	}
}

func TestLastAssistantReply(t *testing.T) {
	msgs := []Message{
		AssistantMessage("opening"),
		UserMessage("q"),
		AssistantMessage("answer"),
		UserMessage("again"),
	}
	if got := lastAssistantReply(msgs); got != "answer" {
		t.Errorf("got %q", got)
	}
	if got := lastAssistantReply(nil); got != "" {
		t.Errorf("got %q for empty transcript", got)
	}
}

func TestLastUserText(t *testing.T) {
	msgs := []Message{
		UserMessage("first"),
		AssistantMessage("a"),
		UserMessage("second"),
		AssistantMessage("b"),
	}
	if got := lastUserText(msgs); got != "second" {
		t.Errorf("got %q", got)
	}
	if got := lastUserText([]Message{AssistantMessage("x")}); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestNewOrchestratorConfig(t *testing.T) {
	kb, _ := newChild(t, "kb_search")
	billing, _ := newChild(t, "billing")

	base := AgentConfig{
		Name:  "orchestrator",
		Tools: []RuntimeTool{{Name: "web_fetch"}},
		Runners: map[string]ToolRunner{
			"web_fetch": RunnerFunc(func(context.Context, map[string]any) (any, error) {
				return "page", nil
			}),
		},
	}
	cfg := NewOrchestratorConfig(base, []*Agent{kb, billing}, DelegateOptions{})

	if len(cfg.Tools) != 3 {
		t.Fatalf("tools = %d, want base + 2 children", len(cfg.Tools))
	}
	for _, name := range []string{"web_fetch", "kb_search", "billing"} {
		if _, ok := cfg.Runners[name]; !ok {
			t.Errorf("missing runner %q, have %v", name, runnerNames(cfg.Runners))
		}
	}

	// base config untouched
	if len(base.Tools) != 1 || len(base.Runners) != 1 {
		t.Error("base config mutated")
	}
}

func runnerNames(m map[string]ToolRunner) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestOrchestratorEndToEnd(t *testing.T) {
	child, _ := newChild(t, "kb_search", scriptedResult{resp: ChatResponse{Content: "the policy says 30 days"}})

	parentProvider := &scriptedProvider{results: []scriptedResult{
		{resp: ChatResponse{ToolCalls: []ToolCall{
			{ID: "c1", Name: "kb_search", Args: map[string]any{"input": "refund policy"}},
		}}},
		{resp: ChatResponse{Content: "You have 30 days to request a refund."}},
	}}
	cfg := NewOrchestratorConfig(AgentConfig{Name: "orchestrator"}, []*Agent{child}, DelegateOptions{})
	parent := newTestAgent(t, parentProvider, cfg)

	if err := parent.Send(context.Background(), "what is the refund policy?"); err != nil {
		t.Fatal(err)
	}

	got := transcript(parent)
	if got[len(got)-1] != "You have 30 days to request a refund." {
		t.Errorf("transcript = %v", got)
	}
	// child's reply surfaced as the tool result entry
	found := false
	for _, c := range got {
		if c == "the policy says 30 days" {
			found = true
		}
	}
	if !found {
		t.Errorf("child reply missing from parent transcript: %v", got)
	}
	// the model's task text became the child's user turn
	if got := lastUserText(child.Messages()); got != "refund policy" {
		t.Errorf("child user turn = %q", got)
	}
}
