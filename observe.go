package pgutils

import "context"

// Instrumentation records connection-level metrics. The zero-cost default is
// NoopInstrumentation; an OpenTelemetry-backed implementation lives in
// internal/telemetry.
type Instrumentation interface {
	RecordQueryDuration(ctx context.Context, ms float64)
	IncrementQueryCount(ctx context.Context)
	IncrementQueryErrors(ctx context.Context)
	RecordCopyRows(ctx context.Context, n int64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordQueryDuration(context.Context, float64) {}
func (NoopInstrumentation) IncrementQueryCount(context.Context)          {}
func (NoopInstrumentation) IncrementQueryErrors(context.Context)         {}
func (NoopInstrumentation) RecordCopyRows(context.Context, int64)        {}

// QueryEvent describes one executed statement.
type QueryEvent struct {
	Op         string // "query", "exec", "copy"
	SQL        string
	DurationMS int64
	Err        error
}

// QueryRecorder receives an event for every statement a Connection executes.
// Recording must not fail the statement; implementations are expected to be
// best-effort.
type QueryRecorder interface {
	Record(ctx context.Context, ev QueryEvent)
}
