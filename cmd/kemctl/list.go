package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/example/oqskem/internal/platform/buildinfo"
	"github.com/example/oqskem/pkg/kem"
)

func runList(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("list", e)
	var (
		enabledOnly = fs.Bool("enabled", false, "only show enabled algorithms")
		verbose     = fs.Bool("v", false, "open enabled algorithms and show declared lengths")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "backend: %s (%s)\n\n", buildinfo.Backend(), buildinfo.Version())
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	if *verbose {
		fmt.Fprintln(tw, "ALGORITHM\tFAMILY\tENABLED\tLEVEL\tPK\tSK\tCT\tSS\tSPLIT")
	} else {
		fmt.Fprintln(tw, "ALGORITHM\tFAMILY\tENABLED")
	}
	for _, alg := range kem.Algorithms() {
		enabled := alg.IsEnabled()
		if *enabledOnly && !enabled {
			continue
		}
		if !*verbose || !enabled {
			fmt.Fprintf(tw, "%s\t%s\t%v\n", alg, alg.Family(), enabled)
			continue
		}
		k, err := kem.New(alg, kem.WithLogger(e.logger))
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\t%d\t%d\t%d\t%v\n",
			alg, alg.Family(), enabled, k.ClaimedNISTLevel(),
			k.LengthPublicKey(), k.LengthSecretKey(), k.LengthCiphertext(), k.LengthSharedSecret(),
			k.SupportsSplit())
		_ = k.Close()
	}
	return tw.Flush()
}
