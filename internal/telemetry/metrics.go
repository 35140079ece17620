package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/jackmaney/pg-utils"

// Instruments holds pre-created OTel metric instruments. It satisfies
// pgutils.Instrumentation, so it can be handed straight to
// pgutils.WithInstrumentation.
type Instruments struct {
	QueryCount    metric.Int64Counter
	QueryDuration metric.Float64Histogram
	QueryErrors   metric.Int64Counter
	CopyRows      metric.Int64Counter
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// The OTel SDK returns noop instruments on error; safe to discard.
	queryCount, _ := meter.Int64Counter("pgutils.query.count",
		metric.WithDescription("Total number of SQL statements executed"),
	)
	queryDuration, _ := meter.Float64Histogram("pgutils.query.duration",
		metric.WithDescription("SQL statement execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryErrors, _ := meter.Int64Counter("pgutils.query.errors",
		metric.WithDescription("Total number of failed SQL statements"),
	)
	copyRows, _ := meter.Int64Counter("pgutils.copy.rows",
		metric.WithDescription("Total number of rows bulk-loaded via COPY"),
	)

	return &Instruments{
		QueryCount:    queryCount,
		QueryDuration: queryDuration,
		QueryErrors:   queryErrors,
		CopyRows:      copyRows,
	}
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.QueryDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.QueryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) RecordCopyRows(ctx context.Context, n int64) {
	i.CopyRows.Add(ctx, n)
}
