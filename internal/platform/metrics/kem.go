package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// KEMInstruments records KEM operation latency and failures.
type KEMInstruments struct {
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// NewKEMInstruments registers the KEM instruments on meter.
func NewKEMInstruments(meter metric.Meter) (*KEMInstruments, error) {
	duration, err := meter.Float64Histogram(
		"oqskem.operation.duration",
		metric.WithDescription("Duration of KEM operations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: duration histogram: %w", err)
	}
	failures, err := meter.Int64Counter(
		"oqskem.operation.failures",
		metric.WithDescription("KEM operations that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: failure counter: %w", err)
	}
	return &KEMInstruments{duration: duration, failures: failures}, nil
}

// Record adds one operation sample. A nil receiver records nothing.
func (i *KEMInstruments) Record(ctx context.Context, algorithm, op string, elapsed time.Duration, err error) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kem.algorithm", algorithm),
		attribute.String("kem.operation", op),
	)
	i.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	if err != nil {
		i.failures.Add(ctx, 1, attrs)
	}
}
