package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/example/oqskem/internal/platform/compliance"
	"github.com/example/oqskem/internal/platform/policy"
)

var errSelftest = errors.New("self test failed")

func runSelftest(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("selftest", e)
	var (
		algs     = fs.String("alg", "enabled", "comma separated algorithms, or \"enabled\"")
		minLevel = fs.Uint("min-level", 1, "minimum claimed NIST level")
		deny     = fs.String("deny", "", "comma separated algorithms or families to refuse")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *minLevel > 5 {
		return fmt.Errorf("%w: -min-level must be between 1 and 5", errUsage)
	}
	selected, err := parseAlgorithms(*algs)
	if err != nil {
		return err
	}

	summary := compliance.NewChecker(
		compliance.KEMChecks(selected, uint8(*minLevel)),
		compliance.WithLogger(e.logger),
		compliance.WithConcurrency(4),
	).Evaluate(ctx)

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tDETAILS")
	for _, r := range summary.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Status, r.Details)
	}
	_ = tw.Flush()

	admission, err := policy.NewAlgorithmPolicy(ctx, policy.AlgorithmConfig{
		MinNISTLevel: int(*minLevel),
		Deny:         splitList(*deny),
	})
	if err != nil {
		return err
	}
	var denied []error
	for _, alg := range selected {
		decision, err := admission.Evaluate(ctx, alg)
		if err != nil {
			return err
		}
		if decision.Allow {
			fmt.Fprintf(e.stdout, "admit  %s %s\n", alg, strings.Join(decision.Obligations, ","))
			continue
		}
		reasons := policy.Reasons(decision)
		fmt.Fprintf(e.stdout, "refuse %s: %s\n", alg, strings.Join(reasons, "; "))
		denied = append(denied, fmt.Errorf("%w: %s", policy.ErrDenied, alg))
	}

	if err := summary.Error(); err != nil {
		e.logger.Warn("self test errors", zap.Error(err))
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%w: %d of %d checks failed", errSelftest, len(summary.Failed), len(summary.Results))
	}
	if len(denied) == len(selected) {
		return fmt.Errorf("%w: no algorithm admitted: %w", errSelftest, errors.Join(denied...))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
