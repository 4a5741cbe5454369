package parley

import "testing"

func TestEmitEventFansOutToSinks(t *testing.T) {
	s1, s2 := &recordingSink{}, &recordingSink{}
	obs := Observability{Sinks: []EventSink{s1, s2}}

	emitEvent("send", obs, nil, "corr-1", map[string]any{"text_length": 5})

	for i, s := range []*recordingSink{s1, s2} {
		payload, ok := s.find("send")
		if !ok {
			t.Fatalf("sink %d saw no event", i)
		}
		if payload["text_length"] != 5 {
			t.Errorf("sink %d payload = %v", i, payload)
		}
		if payload["correlation_id"] != "corr-1" {
			t.Errorf("sink %d correlation_id = %v", i, payload["correlation_id"])
		}
	}
}

func TestEmitEventRedaction(t *testing.T) {
	sink := &recordingSink{}
	obs := Observability{
		Sinks: []EventSink{sink},
		Redact: func(payload map[string]any) map[string]any {
			delete(payload, "secret")
			return payload
		},
	}

	emitEvent("send", obs, nil, "corr", map[string]any{"secret": "hunter2", "kept": true})

	payload, _ := sink.find("send")
	if _, present := payload["secret"]; present {
		t.Error("redacted field reached the sink")
	}
	if payload["kept"] != true {
		t.Errorf("payload = %v", payload)
	}
}

func TestEmitEventNilRedactResultDropsFields(t *testing.T) {
	sink := &recordingSink{}
	obs := Observability{
		Sinks:  []EventSink{sink},
		Redact: func(map[string]any) map[string]any { return nil },
	}

	emitEvent("send", obs, nil, "corr", map[string]any{"a": 1})

	payload, _ := sink.find("send")
	if len(payload) != 1 || payload["correlation_id"] != "corr" {
		t.Errorf("payload = %v, want only correlation_id", payload)
	}
}

func TestEmitEventStripsBriefByDefault(t *testing.T) {
	sink := &recordingSink{}
	obs := Observability{Sinks: []EventSink{sink}}

	emitEvent("delegate_start", obs, nil, "corr", map[string]any{"brief": "sensitive task", "child": "kb"})

	payload, _ := sink.find("delegate_start")
	if _, present := payload["brief"]; present {
		t.Error("brief survived without IncludeBriefInDebugLogs")
	}
	if payload["child"] != "kb" {
		t.Errorf("payload = %v", payload)
	}
}

func TestEmitEventKeepsBriefWhenConfigured(t *testing.T) {
	sink := &recordingSink{}
	obs := Observability{Sinks: []EventSink{sink}, IncludeBriefInDebugLogs: true}

	emitEvent("delegate_start", obs, nil, "corr", map[string]any{"brief": "task"})

	payload, _ := sink.find("delegate_start")
	if payload["brief"] != "task" {
		t.Errorf("payload = %v, want brief kept", payload)
	}
}

func TestEmitEventDoesNotMutateCallerPayload(t *testing.T) {
	payload := map[string]any{"brief": "task", "k": 1}
	emitEvent("delegate_start", Observability{}, nil, "corr", payload)
	if payload["brief"] != "task" || len(payload) != 2 {
		t.Errorf("caller payload mutated: %v", payload)
	}
}

func TestEmitEventPanickingSinkContained(t *testing.T) {
	after := &recordingSink{}
	obs := Observability{Sinks: []EventSink{
		EventSinkFunc(func(string, map[string]any) { panic("sink down") }),
		after,
	}}

	emitEvent("send", obs, nil, "corr", nil)

	if !after.has("send") {
		t.Error("panicking sink stopped fan-out to later sinks")
	}
}

func TestEmitEventPanickingRedactorContained(t *testing.T) {
	obs := Observability{
		Redact: func(map[string]any) map[string]any { panic("redactor bug") },
	}
	// must not panic
	emitEvent("send", obs, nil, "corr", map[string]any{"a": 1})
}
