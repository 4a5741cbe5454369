package observer

import (
	"context"
	"time"

	parley "github.com/parley-ai/parley"

	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedRunner wraps a parley.ToolRunner with OTEL instrumentation.
type ObservedRunner struct {
	inner parley.ToolRunner
	inst  *Instruments
	name  string
}

// WrapRunner returns an instrumented runner. The name is used as the
// tool.name attribute on spans and metrics.
func WrapRunner(name string, inner parley.ToolRunner, inst *Instruments) *ObservedRunner {
	return &ObservedRunner{inner: inner, inst: inst, name: name}
}

// WrapRunners instruments every runner in the map, keyed by tool name.
func WrapRunners(runners map[string]parley.ToolRunner, inst *Instruments) map[string]parley.ToolRunner {
	out := make(map[string]parley.ToolRunner, len(runners))
	for name, r := range runners {
		out[name] = WrapRunner(name, r, inst)
	}
	return out
}

func (o *ObservedRunner) Run(ctx context.Context, args map[string]any) (any, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "tool.run", trace.WithAttributes(
		AttrToolName.String(o.name),
	))
	defer span.End()
	start := time.Now()

	result, err := o.inner.Run(ctx, args)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(AttrToolStatus.String(status))

	o.inst.ToolRuns.Add(ctx, 1, metric.WithAttributes(
		AttrToolName.String(o.name),
		AttrToolStatus.String(status),
	))
	o.inst.ToolDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrToolName.String(o.name),
	))

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("tool run completed"))
	rec.AddAttributes(
		otellog.String("tool.name", o.name),
		otellog.String("tool.status", status),
		otellog.Float64("tool.duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return result, err
}

// compile-time check
var _ parley.ToolRunner = (*ObservedRunner)(nil)
