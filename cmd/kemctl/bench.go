package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/example/oqskem/internal/bench"
	"github.com/example/oqskem/internal/platform/metrics"
	"github.com/example/oqskem/internal/platform/tracing"
)

func runBench(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("bench", e)
	var (
		algs       = fs.String("alg", "Kyber768", "comma separated algorithms, or \"enabled\"")
		iterations = fs.Int("n", 10, "iterations per algorithm")
		workers    = fs.Int("workers", 1, "goroutines sharing one handle")
		split      = fs.Bool("split", true, "also time split encapsulation where supported")
		endpoint   = fs.String("otlp", envOr("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP gRPC endpoint for spans and metrics")
		insecure   = fs.Bool("otlp-insecure", false, "disable TLS towards the OTLP endpoint")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	selected, err := parseAlgorithms(*algs)
	if err != nil {
		return err
	}

	tp, err := tracing.New(ctx, tracing.Config{
		Endpoint:    *endpoint,
		Insecure:    *insecure,
		ServiceName: "kemctl",
		Environment: e.environment,
	})
	if err != nil {
		return err
	}
	mp, err := metrics.New(ctx, metrics.Config{
		Endpoint:    *endpoint,
		Insecure:    *insecure,
		ServiceName: "kemctl",
		Environment: e.environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("tracing shutdown", zap.Error(err))
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("metrics shutdown", zap.Error(err))
		}
	}()

	inst, err := metrics.NewKEMInstruments(metrics.Meter("oqskem/bench"))
	if err != nil {
		return err
	}

	reports, err := bench.New(bench.Config{
		Algorithms:  selected,
		Iterations:  *iterations,
		Workers:     *workers,
		Split:       *split,
		Logger:      e.logger,
		Tracer:      tracing.Tracer("oqskem/bench"),
		Instruments: inst,
	}).Run(ctx)
	printReports(e, reports)
	return err
}

func printReports(e *env, reports []bench.Report) {
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tOP\tCOUNT\tMEAN\tMIN\tMAX")
	for _, rep := range reports {
		for _, op := range rep.OpNames() {
			s := rep.Ops[op]
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", rep.Algorithm, op, s.Count, s.Mean(), s.Min, s.Max)
		}
		fmt.Fprintf(tw, "%s\ttotal\t%d\t%s\t\t\n", rep.Algorithm, rep.Iterations, rep.Elapsed)
	}
	_ = tw.Flush()
}
