package observability

import "context"

// NoOpTracer discards every call. It is the default when no logger is
// configured to back a LoggingTracer.
type NoOpTracer struct{}

func (NoOpTracer) StartTrace(_ string, _ TraceOptions) TraceContext { return TraceContext{} }

func (NoOpTracer) StartStage(_ TraceContext, _ string, _ SpanOptions) SpanContext {
	return SpanContext{}
}

func (NoOpTracer) RecordGeneration(_ SpanContext, _ GenerationInput) {}
func (NoOpTracer) EndStage(_ SpanContext, _ string, _ int64)         {}
func (NoOpTracer) CompleteTrace(_ TraceContext, _ CompleteOptions)   {}
func (NoOpTracer) Flush(_ context.Context) error                    { return nil }
func (NoOpTracer) Stop(_ context.Context) error                     { return nil }

var _ Tracer = NoOpTracer{}
