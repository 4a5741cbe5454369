package parley

import (
	"fmt"
	"testing"
)

func TestSubscriberSetDelivery(t *testing.T) {
	s := newSubscriberSet()
	var got []string
	s.add(EventMessage, func(ev Event) { got = append(got, "a:"+ev.Message.Content) })
	s.add(EventMessage, func(ev Event) { got = append(got, "b:"+ev.Message.Content) })
	s.add(EventLoading, func(Event) { got = append(got, "loading") })

	s.emit(Event{Type: EventMessage, Message: Message{Content: "hi"}})

	if len(got) != 2 {
		t.Fatalf("got %v, want two message deliveries", got)
	}
	if got[0] != "a:hi" || got[1] != "b:hi" {
		t.Errorf("delivery order = %v, want registration order", got)
	}
}

func TestSubscriberSetDeliveryOrder(t *testing.T) {
	s := newSubscriberSet()
	var got []string
	for i := 0; i < 10; i++ {
		i := i
		s.add(EventMessage, func(Event) { got = append(got, fmt.Sprintf("sub%d", i)) })
	}

	s.emit(Event{Type: EventMessage})

	if len(got) != 10 {
		t.Fatalf("deliveries = %d, want 10", len(got))
	}
	for i, name := range got {
		if want := fmt.Sprintf("sub%d", i); name != want {
			t.Fatalf("delivery[%d] = %q, want %q", i, name, want)
		}
	}
}

func TestSubscriberSetCancel(t *testing.T) {
	s := newSubscriberSet()
	calls := 0
	cancel := s.add(EventMessage, func(Event) { calls++ })

	s.emit(Event{Type: EventMessage})
	cancel()
	s.emit(Event{Type: EventMessage})
	cancel() // second cancel is a no-op

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSubscriberSetPanicContained(t *testing.T) {
	s := newSubscriberSet()
	delivered := false
	s.add(EventError, func(Event) { panic("listener bug") })
	s.add(EventError, func(Event) { delivered = true })

	s.emit(Event{Type: EventError})

	if !delivered {
		t.Error("panicking listener starved the next one")
	}
}

func TestSubscriberSetTypeIsolation(t *testing.T) {
	s := newSubscriberSet()
	calls := 0
	s.add(EventStream, func(Event) { calls++ })

	s.emit(Event{Type: EventMessage})
	s.emit(Event{Type: EventLoading})

	if calls != 0 {
		t.Errorf("stream subscriber saw %d foreign events", calls)
	}
}
