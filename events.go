package parley

import (
	"sort"
	"sync"
)

// EventType identifies the kind of UI event an agent emits.
type EventType string

const (
	// EventMessage fires when a message is appended or amended.
	EventMessage EventType = "message"
	// EventLoading fires when the loading state flips.
	EventLoading EventType = "loading"
	// EventStream fires once per streamed delta.
	EventStream EventType = "stream"
	// EventError fires when a turn fails. A fallback message still follows.
	EventError EventType = "error"
)

// Event is delivered to subscribers registered via Agent.On.
type Event struct {
	Type EventType
	// Message is set for message events: the full message after the change.
	Message Message
	// Loading is set for loading events.
	Loading bool
	// Delta is set for stream events: the text increment.
	Delta string
	// MessageID identifies the message a stream delta amends.
	MessageID string
	// Err is set for error events.
	Err error
}

// subscriberSet is an explicit per-event-type listener list.
// Registration returns a cancel func; delivery order follows registration
// order. All methods are safe for concurrent use.
type subscriberSet struct {
	mu   sync.RWMutex
	next int
	subs map[EventType]map[int]func(Event)
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[EventType]map[int]func(Event))}
}

// add registers fn for events of type t and returns a cancel func.
// Cancelling twice is a no-op.
func (s *subscriberSet) add(t EventType, fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[t] == nil {
		s.subs[t] = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.subs[t][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[t], id)
	}
}

// emit delivers ev to every subscriber of its type. Subscriber panics are
// contained per listener so one broken handler cannot starve the rest.
func (s *subscriberSet) emit(ev Event) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.subs[ev.Type]))
	for id := range s.subs[ev.Type] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), len(ids))
	for i, id := range ids {
		fns[i] = s.subs[ev.Type][id]
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		callSubscriber(fn, ev)
	}
}

func callSubscriber(fn func(Event), ev Event) {
	defer func() { recover() }()
	fn(ev)
}
