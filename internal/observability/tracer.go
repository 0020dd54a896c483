package observability

import "context"

// Tracer records a task's lifecycle through the stage pipeline: one trace
// per task, one span per stage invocation, and one generation per agent
// call within a span (Delivery's iterations being the common case of more
// than one generation per span).
//
// Trace hierarchy:
//
//	Task (Trace)
//	  └── Stage (Span): Intake, Planning, Conditions, Delivery, Verification, Finalize
//	        └── agent call (Generation), one per Delivery iteration
type Tracer interface {
	StartTrace(taskID string, opts TraceOptions) TraceContext
	StartStage(trace TraceContext, stageName string, opts SpanOptions) SpanContext
	RecordGeneration(span SpanContext, gen GenerationInput)
	EndStage(span SpanContext, outcome string, durationMs int64)
	CompleteTrace(trace TraceContext, opts CompleteOptions)
	Flush(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TraceContext identifies an active trace (task level).
type TraceContext struct {
	TraceID string
	TaskID  string
}

// SpanContext identifies an active span (stage level).
type SpanContext struct {
	SpanID    string
	TraceID   string
	StageName string
}

// TraceOptions configures a new trace.
type TraceOptions struct {
	Description string
	Sources     []string
}

// SpanOptions configures a new span.
type SpanOptions struct {
	Attempt  int
	Metadata map[string]string
}

// GenerationInput describes one agent call to record against a span.
type GenerationInput struct {
	Provider   string
	Model      string
	ToolsUsed  []string
	FinalText  string
	Status     string // "completed" or "error"
	DurationMs int64
}

// CompleteOptions configures trace completion.
type CompleteOptions struct {
	Status         string // task.Status's terminal value
	TerminalReason string
	Iterations     int
}
