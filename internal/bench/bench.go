// Package bench times KEM operations across algorithms and workers.
package bench

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/oqskem/internal/platform/logging"
	"github.com/example/oqskem/internal/platform/metrics"
	"github.com/example/oqskem/internal/platform/tracing"
	"github.com/example/oqskem/pkg/kem"
)

// ErrMismatch is returned when the two sides of an exchange derive
// different shared secrets.
var ErrMismatch = errors.New("bench: shared secrets differ")

// Operation names, also used as span names and metric attributes.
const (
	OpInit     = "init"
	OpKeypair  = "keypair"
	OpEncaps   = "encaps"
	OpDecaps   = "decaps"
	OpSplit    = "encaps_ciphertext"
	OpFinalize = "encaps_shared_secret"
	OpDeinit   = "deinit"
)

// Config selects what to measure.
type Config struct {
	Algorithms  []kem.Algorithm
	Iterations  int
	Workers     int
	Split       bool
	Logger      *zap.Logger
	Tracer      trace.Tracer
	Instruments *metrics.KEMInstruments
}

// Stats aggregates the samples of one operation.
type Stats struct {
	Count int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Mean returns the average sample, or zero without samples.
func (s Stats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s *Stats) add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Total += d
}

func (s *Stats) merge(o Stats) {
	if o.Count == 0 {
		return
	}
	if s.Count == 0 || o.Min < s.Min {
		s.Min = o.Min
	}
	if o.Max > s.Max {
		s.Max = o.Max
	}
	s.Count += o.Count
	s.Total += o.Total
}

// Report is the outcome for one algorithm.
type Report struct {
	Algorithm    kem.Algorithm
	Version      string
	Iterations   int
	Workers      int
	SplitChecked bool
	Elapsed      time.Duration
	Ops          map[string]Stats
}

// OpNames returns the recorded operations in a stable order.
func (r Report) OpNames() []string {
	names := make([]string, 0, len(r.Ops))
	for name := range r.Ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runner executes benchmark passes.
type Runner struct {
	cfg        Config
	log        *zap.Logger
	tracer     trace.Tracer
	correlator *logging.Correlator
}

// New applies defaults to cfg.
func New(cfg Config) *Runner {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Workers > cfg.Iterations {
		cfg.Workers = cfg.Iterations
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Tracer("oqskem/bench")
	}
	return &Runner{
		cfg:        cfg,
		log:        log,
		tracer:     tracer,
		correlator: logging.NewCorrelator("run_id", nil),
	}
}

// Run benchmarks every configured algorithm in order. It stops at the first
// failure.
func (r *Runner) Run(ctx context.Context) ([]Report, error) {
	if len(r.cfg.Algorithms) == 0 {
		return nil, errors.New("bench: no algorithms selected")
	}
	ctx, log, _ := r.correlator.Decorate(ctx, r.log)

	reports := make([]Report, 0, len(r.cfg.Algorithms))
	for _, alg := range r.cfg.Algorithms {
		rep, err := r.runOne(ctx, alg)
		if err != nil {
			log.Warn("benchmark failed", zap.Stringer("algorithm", alg), zap.Error(err))
			return reports, fmt.Errorf("bench: %s: %w", alg, err)
		}
		log.Info("benchmark complete",
			zap.Stringer("algorithm", alg),
			zap.Int("iterations", rep.Iterations),
			zap.Duration("elapsed", rep.Elapsed),
			zap.Duration("keypair_mean", rep.Ops[OpKeypair].Mean()),
			zap.Duration("encaps_mean", rep.Ops[OpEncaps].Mean()),
			zap.Duration("decaps_mean", rep.Ops[OpDecaps].Mean()),
		)
		reports = append(reports, rep)
	}
	return reports, nil
}

func (r *Runner) runOne(ctx context.Context, alg kem.Algorithm) (rep Report, err error) {
	ctx, span := r.tracer.Start(ctx, "bench."+alg.String(),
		trace.WithAttributes(
			attribute.String("kem.algorithm", alg.String()),
			attribute.Int("bench.iterations", r.cfg.Iterations),
			attribute.Int("bench.workers", r.cfg.Workers),
		))
	defer func() { tracing.EndOperation(span, err) }()

	k, err := kem.New(alg, kem.WithLogger(logging.From(ctx, r.log)))
	if err != nil {
		return Report{}, err
	}
	defer k.Close()

	rep = Report{
		Algorithm:    alg,
		Version:      k.Version(),
		Iterations:   r.cfg.Iterations,
		Workers:      r.cfg.Workers,
		SplitChecked: r.cfg.Split && k.SupportsSplit(),
		Ops:          make(map[string]Stats),
	}
	start := time.Now()

	var initStats Stats
	if err := r.timed(ctx, alg, OpInit, &initStats, k.Init); err != nil {
		return Report{}, err
	}
	rep.Ops[OpInit] = initStats

	var (
		mu     sync.Mutex
		merged = make(map[string]Stats)
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		n := r.cfg.Iterations / r.cfg.Workers
		if w < r.cfg.Iterations%r.cfg.Workers {
			n++
		}
		g.Go(func() error {
			local := make(map[string]*Stats)
			for i := 0; i < n; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := r.iteration(gctx, k, rep.SplitChecked, local); err != nil {
					return err
				}
			}
			mu.Lock()
			defer mu.Unlock()
			for op, s := range local {
				m := merged[op]
				m.merge(*s)
				merged[op] = m
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	for op, s := range merged {
		rep.Ops[op] = s
	}

	var deinitStats Stats
	if err := r.timed(ctx, alg, OpDeinit, &deinitStats, k.Deinit); err != nil {
		return Report{}, err
	}
	rep.Ops[OpDeinit] = deinitStats
	rep.Elapsed = time.Since(start)
	return rep, nil
}

// iteration runs keypair, encapsulate and decapsulate once, then the split
// path when split is set.
func (r *Runner) iteration(ctx context.Context, k *kem.Kem, split bool, stats map[string]*Stats) error {
	alg := k.Algorithm()
	stat := func(op string) *Stats {
		s, ok := stats[op]
		if !ok {
			s = &Stats{}
			stats[op] = s
		}
		return s
	}

	var (
		pk kem.PublicKey
		sk kem.SecretKey
	)
	if err := r.timed(ctx, alg, OpKeypair, stat(OpKeypair), func() (err error) {
		pk, sk, err = k.Keypair()
		return err
	}); err != nil {
		return err
	}
	defer sk.Wipe()

	var (
		ct   kem.Ciphertext
		sent kem.SharedSecret
	)
	if err := r.timed(ctx, alg, OpEncaps, stat(OpEncaps), func() (err error) {
		ct, sent, err = k.Encapsulate(pk)
		return err
	}); err != nil {
		return err
	}
	defer sent.Wipe()

	var got kem.SharedSecret
	if err := r.timed(ctx, alg, OpDecaps, stat(OpDecaps), func() (err error) {
		got, err = k.Decapsulate(sk, ct)
		return err
	}); err != nil {
		return err
	}
	defer got.Wipe()
	if !sent.Equal(got) {
		return ErrMismatch
	}

	if !split {
		return nil
	}
	var es kem.EphemeralSecret
	if err := r.timed(ctx, alg, OpSplit, stat(OpSplit), func() (err error) {
		ct, es, err = k.EncapsulateSplit(pk)
		return err
	}); err != nil {
		return err
	}
	defer es.Wipe()

	var fin kem.SharedSecret
	if err := r.timed(ctx, alg, OpFinalize, stat(OpFinalize), func() (err error) {
		fin, err = k.FinalizeSharedSecret(ct, es, pk)
		return err
	}); err != nil {
		return err
	}
	defer fin.Wipe()

	check, err := k.Decapsulate(sk, ct)
	if err != nil {
		return err
	}
	defer check.Wipe()
	if !fin.Equal(check) {
		return ErrMismatch
	}
	return nil
}

func (r *Runner) timed(ctx context.Context, alg kem.Algorithm, op string, s *Stats, fn func() error) error {
	ctx, span := tracing.StartOperation(ctx, r.tracer, alg.String(), op)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	tracing.EndOperation(span, err)
	r.cfg.Instruments.Record(ctx, alg.String(), op, elapsed, err)
	if err != nil {
		return err
	}
	s.add(elapsed)
	return nil
}
