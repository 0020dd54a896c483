package observability

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// LoggingTracer records a task's trace/span/generation lifecycle as
// structured log entries through a Logger, rather than a separate tracing
// backend: every event spec.md's stage pipeline produces is already being
// persisted to Cloud Logging, so the trace is queryable there by task_id
// and stage_name labels without a second system to operate.
type LoggingTracer struct {
	logger *Logger
}

// NewLoggingTracer builds a Tracer backed by logger.
func NewLoggingTracer(logger *Logger) *LoggingTracer {
	return &LoggingTracer{logger: logger}
}

func (t *LoggingTracer) StartTrace(taskID string, opts TraceOptions) TraceContext {
	tc := TraceContext{TraceID: uuid.NewString(), TaskID: taskID}
	t.logger.Log(SeverityInfo, "trace started", map[string]string{
		"trace_id":    tc.TraceID,
		"description": opts.Description,
	})
	return tc
}

func (t *LoggingTracer) StartStage(trace TraceContext, stageName string, opts SpanOptions) SpanContext {
	sc := SpanContext{SpanID: uuid.NewString(), TraceID: trace.TraceID, StageName: stageName}
	t.logger.Log(SeverityInfo, fmt.Sprintf("stage %s started", stageName), map[string]string{
		"trace_id": trace.TraceID,
		"span_id":  sc.SpanID,
		"stage":    stageName,
		"attempt":  strconv.Itoa(opts.Attempt),
	})
	return sc
}

func (t *LoggingTracer) RecordGeneration(span SpanContext, gen GenerationInput) {
	t.logger.Log(SeverityInfo, "agent call completed", map[string]string{
		"trace_id":    span.TraceID,
		"span_id":     span.SpanID,
		"stage":       span.StageName,
		"provider":    gen.Provider,
		"model":       gen.Model,
		"status":      gen.Status,
		"duration_ms": strconv.FormatInt(gen.DurationMs, 10),
	})
}

func (t *LoggingTracer) EndStage(span SpanContext, outcome string, durationMs int64) {
	t.logger.Log(SeverityInfo, fmt.Sprintf("stage %s ended", span.StageName), map[string]string{
		"trace_id":    span.TraceID,
		"span_id":     span.SpanID,
		"stage":       span.StageName,
		"outcome":     outcome,
		"duration_ms": strconv.FormatInt(durationMs, 10),
	})
}

func (t *LoggingTracer) CompleteTrace(trace TraceContext, opts CompleteOptions) {
	t.logger.Log(SeverityInfo, "trace completed", map[string]string{
		"trace_id":        trace.TraceID,
		"status":          opts.Status,
		"terminal_reason": opts.TerminalReason,
		"iterations":      strconv.Itoa(opts.Iterations),
	})
}

func (t *LoggingTracer) Flush(_ context.Context) error { return nil }
func (t *LoggingTracer) Stop(_ context.Context) error  { return t.logger.Close() }

var _ Tracer = (*LoggingTracer)(nil)
