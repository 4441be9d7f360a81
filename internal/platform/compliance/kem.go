package compliance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/example/oqskem/pkg/kem"
)

type namedCheck struct {
	name string
	fn   CheckFunc
}

func (c namedCheck) Name() string                   { return c.name }
func (c namedCheck) Run(ctx context.Context) Result { return c.fn(ctx) }

// Named wraps fn in a Check reporting name.
func Named(name string, fn CheckFunc) Check {
	return namedCheck{name: name, fn: fn}
}

// KEMChecks returns the startup self tests for the given algorithms: catalog
// integrity, enablement consistency, and a round trip plus a security level
// check per algorithm.
func KEMChecks(algs []kem.Algorithm, minLevel uint8) []Check {
	checks := []Check{CatalogCheck(), EnablementCheck()}
	for _, alg := range algs {
		checks = append(checks, RoundTripCheck(alg), LevelCheck(alg, minLevel))
	}
	return checks
}

// CatalogCheck verifies every catalog entry has a unique, non-empty name.
func CatalogCheck() Check {
	return Named("kem.catalog", func(ctx context.Context) Result {
		seen := make(map[string]struct{})
		for _, alg := range kem.Algorithms() {
			id := alg.Identifier()
			if id == "" {
				return fail(fmt.Errorf("algorithm %d has no identifier", uint16(alg)))
			}
			if _, dup := seen[id]; dup {
				return fail(fmt.Errorf("identifier %q used twice", id))
			}
			seen[id] = struct{}{}
		}
		return Result{
			Status:   StatusPass,
			Details:  fmt.Sprintf("%d algorithms catalogued", len(seen)),
			Evidence: []Evidence{evidence("backend", kem.Backend(), false)},
		}
	})
}

// EnablementCheck verifies that IsEnabled agrees with New for every
// algorithm.
func EnablementCheck() Check {
	return Named("kem.enablement", func(ctx context.Context) Result {
		enabled := 0
		for _, alg := range kem.Algorithms() {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			k, err := kem.New(alg)
			if alg.IsEnabled() != (err == nil) {
				return fail(fmt.Errorf("%s: IsEnabled=%v but New returned %v", alg, alg.IsEnabled(), err))
			}
			if k != nil {
				enabled++
				_ = k.Close()
			}
		}
		return Result{
			Status:   StatusPass,
			Details:  fmt.Sprintf("%d algorithms enabled", enabled),
			Evidence: []Evidence{evidence("enabled", strconv.Itoa(enabled), false)},
		}
	})
}

// RoundTripCheck runs keypair, encapsulate and decapsulate for alg and
// compares the shared secrets. The split path is exercised when available.
func RoundTripCheck(alg kem.Algorithm) Check {
	return Named("kem.roundtrip."+alg.String(), func(ctx context.Context) Result {
		k, err := kem.New(alg)
		if err != nil {
			return fail(err)
		}
		defer k.Close()

		pk, sk, err := k.Keypair()
		if err != nil {
			return fail(err)
		}
		defer sk.Wipe()
		ct, ss, err := k.Encapsulate(pk)
		if err != nil {
			return fail(err)
		}
		got, err := k.Decapsulate(sk, ct)
		if err != nil {
			return fail(err)
		}
		if !ss.Equal(got) {
			return fail(fmt.Errorf("%s: shared secrets differ", alg))
		}

		split := "unsupported"
		if k.SupportsSplit() {
			ct, es, err := k.EncapsulateSplit(pk)
			if err != nil {
				return fail(err)
			}
			fin, err := k.FinalizeSharedSecret(ct, es, pk)
			if err != nil {
				return fail(err)
			}
			dec, err := k.Decapsulate(sk, ct)
			if err != nil {
				return fail(err)
			}
			if !fin.Equal(dec) {
				return fail(fmt.Errorf("%s: split path disagrees with decapsulation", alg))
			}
			split = "ok"
		}

		return Result{
			Status:  StatusPass,
			Details: fmt.Sprintf("%s round trip ok", alg),
			Evidence: []Evidence{
				evidence("version", k.Version(), false),
				evidence("split", split, false),
			},
		}
	})
}

// LevelCheck warns when alg claims a NIST level below minLevel and fails
// when it does not claim IND-CCA security.
func LevelCheck(alg kem.Algorithm, minLevel uint8) Check {
	return Named("kem.level."+alg.String(), func(ctx context.Context) Result {
		k, err := kem.New(alg)
		if err != nil {
			return fail(err)
		}
		defer k.Close()

		level := k.ClaimedNISTLevel()
		ev := []Evidence{
			evidence("nist_level", strconv.Itoa(int(level)), level < minLevel),
			evidence("ind_cca", strconv.FormatBool(k.IsINDCCA()), !k.IsINDCCA()),
		}
		switch {
		case !k.IsINDCCA():
			return Result{Status: StatusFail, Details: fmt.Sprintf("%s is not IND-CCA", alg), Evidence: ev}
		case level < minLevel:
			return Result{Status: StatusWarn, Details: fmt.Sprintf("%s claims level %d, want %d", alg, level, minLevel), Evidence: ev}
		default:
			return Result{Status: StatusPass, Evidence: ev}
		}
	})
}

func fail(err error) Result {
	return Result{Status: StatusFail, Details: err.Error(), Error: err}
}

func evidence(key, value string, critical bool) Evidence {
	return Evidence{Key: key, Value: value, Critical: critical, Timestamp: time.Now()}
}
