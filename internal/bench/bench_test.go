package bench

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/oqskem/internal/platform/metrics"
	"github.com/example/oqskem/pkg/kem"
)

func TestStats(t *testing.T) {
	var s Stats
	require.Zero(t, s.Mean())
	s.add(3 * time.Millisecond)
	s.add(time.Millisecond)
	require.Equal(t, 2, s.Count)
	require.Equal(t, time.Millisecond, s.Min)
	require.Equal(t, 3*time.Millisecond, s.Max)
	require.Equal(t, 2*time.Millisecond, s.Mean())

	var m Stats
	m.merge(Stats{})
	require.Zero(t, m.Count)
	m.merge(s)
	m.merge(Stats{Count: 1, Total: 5 * time.Millisecond, Min: 5 * time.Millisecond, Max: 5 * time.Millisecond})
	require.Equal(t, 3, m.Count)
	require.Equal(t, time.Millisecond, m.Min)
	require.Equal(t, 5*time.Millisecond, m.Max)
}

func TestRunRecordsEveryPhase(t *testing.T) {
	if !kem.Kyber512.IsEnabled() {
		t.Skip("Kyber512 disabled")
	}
	ctx := context.Background()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inst, err := metrics.NewKEMInstruments(mp.Meter("test"))
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)

	runner := New(Config{
		Algorithms:  []kem.Algorithm{kem.Kyber512},
		Iterations:  5,
		Workers:     2,
		Split:       true,
		Logger:      zap.New(core),
		Tracer:      tp.Tracer("test"),
		Instruments: inst,
	})
	reports, err := runner.Run(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rep := reports[0]
	require.Equal(t, kem.Kyber512, rep.Algorithm)
	require.Equal(t, 5, rep.Ops[OpKeypair].Count)
	require.Equal(t, 5, rep.Ops[OpEncaps].Count)
	require.Equal(t, 5, rep.Ops[OpDecaps].Count)
	require.Equal(t, 1, rep.Ops[OpInit].Count)
	require.Equal(t, 1, rep.Ops[OpDeinit].Count)
	if rep.SplitChecked {
		require.Equal(t, 5, rep.Ops[OpSplit].Count)
		require.Equal(t, 5, rep.Ops[OpFinalize].Count)
	}
	require.Contains(t, rep.OpNames(), OpKeypair)

	// init, deinit, 3 per iteration, 2 more with split, plus the run span.
	want := 2 + 5*3 + 1
	if rep.SplitChecked {
		want += 5 * 2
	}
	require.Len(t, recorder.Ended(), want)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	entries := logs.FilterMessage("benchmark complete").All()
	require.Len(t, entries, 1)
	require.NotEmpty(t, entries[0].ContextMap()["run_id"])
}

func TestRunDisabledAlgorithm(t *testing.T) {
	if kem.BikeL1.IsEnabled() {
		t.Skip("BIKE-L1 enabled in this build")
	}
	_, err := New(Config{Algorithms: []kem.Algorithm{kem.BikeL1}}).Run(context.Background())
	require.ErrorIs(t, err, kem.ErrAlgorithmDisabled)
}

func TestRunCancelled(t *testing.T) {
	if !kem.Kyber512.IsEnabled() {
		t.Skip("Kyber512 disabled")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{Algorithms: []kem.Algorithm{kem.Kyber512}, Iterations: 3}).Run(ctx)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestRunRequiresAlgorithms(t *testing.T) {
	_, err := New(Config{}).Run(context.Background())
	require.Error(t, err)
}

func TestWorkersCappedByIterations(t *testing.T) {
	r := New(Config{Iterations: 2, Workers: 8})
	require.Equal(t, 2, r.cfg.Workers)
}
