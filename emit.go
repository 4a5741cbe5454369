package parley

import (
	"log/slog"
	"strings"
)

// EventSink receives observability events after redaction. Implementations
// must not block for long; emitEvent calls sinks synchronously.
// The journal package provides a SQLite-backed sink; the observer package
// provides an OTEL log sink.
type EventSink interface {
	Write(name string, payload map[string]any)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(name string, payload map[string]any)

func (f EventSinkFunc) Write(name string, payload map[string]any) { f(name, payload) }

// Observability configures diagnostic event emission for an agent.
type Observability struct {
	// Redact transforms the payload before logging and sink fan-out.
	// Use it to strip PII or secrets. A nil return drops all fields.
	Redact func(payload map[string]any) map[string]any
	// IncludeBriefInDebugLogs keeps the "brief" field in emitted payloads.
	// Briefs carry delegated task text and are stripped by default.
	IncludeBriefInDebugLogs bool
	// Sinks receive every emitted event after redaction.
	Sinks []EventSink
}

// emitEvent emits one diagnostic event: redact, strip "brief" unless
// configured otherwise, attach the correlation id, log (ERROR for names
// ending in "error", DEBUG otherwise), and fan out to sinks.
//
// The whole function is panic-contained, as is each sink call. A broken
// redactor or sink never disturbs the request path.
func emitEvent(name string, obs Observability, logger *slog.Logger, correlationID string, payload map[string]any) {
	defer func() { recover() }()

	if logger == nil {
		logger = nopLogger
	}

	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	if obs.Redact != nil {
		out = obs.Redact(out)
		if out == nil {
			out = map[string]any{}
		}
	}
	if !obs.IncludeBriefInDebugLogs {
		delete(out, "brief")
	}
	out["correlation_id"] = correlationID

	attrs := make([]any, 0, len(out)*2)
	for k, v := range out {
		attrs = append(attrs, k, v)
	}
	if strings.HasSuffix(name, "error") {
		logger.Error(name, attrs...)
	} else {
		logger.Debug(name, attrs...)
	}

	for _, sink := range obs.Sinks {
		writeSink(sink, name, out)
	}
}

// writeSink calls a single sink with panic containment.
func writeSink(sink EventSink, name string, payload map[string]any) {
	defer func() { recover() }()
	sink.Write(name, payload)
}
