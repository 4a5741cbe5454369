package observer

import (
	"context"
	"fmt"
	"strings"

	parley "github.com/parley-ai/parley"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
)

// LogSink forwards agent diagnostic events to the OTEL log pipeline.
// Register it in AgentConfig.Observability.Sinks.
type LogSink struct {
	inst *Instruments
}

// NewLogSink creates a sink backed by the given instruments.
func NewLogSink(inst *Instruments) *LogSink {
	return &LogSink{inst: inst}
}

func (s *LogSink) Write(name string, payload map[string]any) {
	ctx := context.Background()

	var rec otellog.Record
	if strings.HasSuffix(name, "error") {
		rec.SetSeverity(otellog.SeverityError)
	} else {
		rec.SetSeverity(otellog.SeverityDebug)
	}
	rec.SetBody(otellog.StringValue(name))
	for k, v := range payload {
		rec.AddAttributes(toLogAttr(k, v))
	}
	s.inst.Logger.Emit(ctx, rec)

	// Counters for the events with a metric of their own.
	switch name {
	case "tool_call":
		s.inst.ToolRuns.Add(ctx, 1, metric.WithAttributes(
			AttrToolStatus.String("started"),
		))
	case "tool_error":
		s.inst.ToolRuns.Add(ctx, 1, metric.WithAttributes(
			AttrToolStatus.String("error"),
		))
	case "delegate_start":
		s.inst.Delegations.Add(ctx, 1)
	}
}

func toLogAttr(key string, v any) otellog.KeyValue {
	switch val := v.(type) {
	case string:
		return otellog.String(key, val)
	case int:
		return otellog.Int(key, val)
	case int64:
		return otellog.Int64(key, val)
	case float64:
		return otellog.Float64(key, val)
	case bool:
		return otellog.Bool(key, val)
	default:
		return otellog.String(key, fmt.Sprintf("%v", val))
	}
}

// compile-time check
var _ parley.EventSink = (*LogSink)(nil)
