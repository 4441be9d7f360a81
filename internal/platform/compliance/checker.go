// Package compliance runs startup self tests and aggregates their outcome.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of one check. Statuses are ordered by severity.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusPass    Status = "PASS"
	StatusWarn    Status = "WARN"
	StatusFail    Status = "FAIL"
)

func (s Status) severity() int {
	switch s {
	case StatusPass:
		return 0
	case StatusWarn:
		return 1
	case StatusUnknown:
		return 2
	default:
		return 3
	}
}

// Evidence is one observed fact a result rests on. Critical marks the facts
// that caused a warning or failure.
type Evidence struct {
	Key       string
	Value     string
	Critical  bool
	Timestamp time.Time
}

// Result captures a check outcome.
type Result struct {
	Name      string
	Status    Status
	Details   string
	Evidence  []Evidence
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

// Check is a single self test.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// CheckFunc is the body of a check built with Named.
type CheckFunc func(ctx context.Context) Result

// Option configures a Checker.
type Option func(*Checker)

// WithConcurrency bounds how many checks run at once. Values below one
// leave checks unbounded.
func WithConcurrency(n int) Option {
	return func(c *Checker) { c.limit = n }
}

// WithLogger reports every result to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.log = logger
		}
	}
}

// Checker runs registered checks in parallel. Register must not be called
// concurrently with Evaluate.
type Checker struct {
	checks []Check
	limit  int
	log    *zap.Logger
}

// NewChecker builds a checker over checks.
func NewChecker(checks []Check, opts ...Option) *Checker {
	c := &Checker{checks: checks, limit: -1, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register appends checks.
func (c *Checker) Register(checks ...Check) {
	c.checks = append(c.checks, checks...)
}

// Evaluate runs every check and returns their results in registration
// order. A panicking check fails instead of taking the process down. Checks
// that had not started when ctx was cancelled report StatusUnknown.
func (c *Checker) Evaluate(ctx context.Context) Summary {
	start := time.Now()
	results := make([]Result, len(c.checks))

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, check := range c.checks {
		g.Go(func() error {
			results[i] = c.run(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Results:     results,
		GeneratedAt: time.Now(),
		Elapsed:     time.Since(start),
	}
	for _, r := range results {
		switch r.Status {
		case StatusFail:
			summary.Failed = append(summary.Failed, r)
		case StatusWarn:
			summary.Warnings = append(summary.Warnings, r)
		}
		if r.Error != nil {
			summary.Errors = append(summary.Errors, fmt.Errorf("%s: %w", r.Name, r.Error))
		}
	}
	return summary
}

func (c *Checker) run(ctx context.Context, check Check) (result Result) {
	begin := time.Now()
	defer func() {
		if p := recover(); p != nil {
			result = fail(fmt.Errorf("panic: %v", p))
		}
		if result.Name == "" {
			result.Name = check.Name()
		}
		if result.Status == "" {
			result.Status = StatusUnknown
		}
		result.Duration = time.Since(begin)
		if result.Timestamp.IsZero() {
			result.Timestamp = time.Now()
		}
		c.log.Debug("self test",
			zap.String("check", result.Name),
			zap.String("status", string(result.Status)),
			zap.Duration("duration", result.Duration),
			zap.Error(result.Error),
		)
	}()

	if err := ctx.Err(); err != nil {
		return Result{Status: StatusUnknown, Details: "not run", Error: err}
	}
	return check.Run(ctx)
}

// Summary aggregates the results of one evaluation.
type Summary struct {
	Results     []Result
	Failed      []Result
	Warnings    []Result
	Errors      []error
	GeneratedAt time.Time
	Elapsed     time.Duration
}

// Status returns the most severe result status, or StatusPass when there
// are no results.
func (s Summary) Status() Status {
	worst := StatusPass
	for _, r := range s.Results {
		if r.Status.severity() > worst.severity() {
			worst = r.Status
		}
	}
	return worst
}

// Healthy reports whether every check passed.
func (s Summary) Healthy() bool {
	return s.Status() == StatusPass
}

// Error joins the errors carried by failed results.
func (s Summary) Error() error {
	if len(s.Errors) == 0 {
		return nil
	}
	return errors.Join(s.Errors...)
}
