package parley

import (
	"context"
	"sync"
	"testing"
)

// scriptedProvider returns pre-configured results in order. Both SendMessage
// and SendMessageStream pop from the same queue, so a test scripts the exact
// provider conversation it expects.
type scriptedProvider struct {
	mu      sync.Mutex
	calls   int
	results []scriptedResult
	// requests records every non-streaming request for assertions.
	requests []ChatRequest
}

type scriptedResult struct {
	resp   ChatResponse
	deltas []string // streamed before Done on the streaming path
	err    error
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) next(req ChatRequest) scriptedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	i := s.calls
	s.calls++
	if i < len(s.results) {
		return s.results[i]
	}
	return scriptedResult{}
}

func (s *scriptedProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedProvider) request(i int) ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func (s *scriptedProvider) SendMessage(_ context.Context, req ChatRequest) (ChatResponse, error) {
	r := s.next(req)
	return r.resp, r.err
}

func (s *scriptedProvider) SendMessageStream(_ context.Context, req ChatRequest, ch chan<- StreamChunk) error {
	defer close(ch)
	r := s.next(req)
	for _, d := range r.deltas {
		ch <- StreamChunk{Delta: d}
	}
	if r.err != nil {
		return r.err
	}
	ch <- StreamChunk{Done: true}
	return nil
}

var _ Provider = (*scriptedProvider)(nil)

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	name    string
	payload map[string]any
}

func (r *recordingSink) Write(name string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	r.events = append(r.events, recordedEvent{name: name, payload: copied})
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.name
	}
	return out
}

func (r *recordingSink) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return true
		}
	}
	return false
}

func (r *recordingSink) find(name string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return e.payload, true
		}
	}
	return nil, false
}

var _ EventSink = (*recordingSink)(nil)

// newTestAgent builds an agent over a scripted provider.
func newTestAgent(t *testing.T, provider Provider, cfg AgentConfig) *Agent {
	t.Helper()
	a, err := NewAgent(provider, cfg)
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	return a
}

// transcript returns just the contents, in order, for compact assertions.
func transcript(a *Agent) []string {
	msgs := a.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

// lastMessage returns the newest transcript entry.
func lastMessage(t *testing.T, a *Agent) Message {
	t.Helper()
	msgs := a.Messages()
	if len(msgs) == 0 {
		t.Fatal("transcript is empty")
	}
	return msgs[len(msgs)-1]
}
