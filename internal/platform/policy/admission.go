package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/oqskem/pkg/kem"
)

// ErrDenied is returned by AlgorithmPolicy.Require when an algorithm is not
// admitted.
var ErrDenied = errors.New("policy: algorithm denied")

const admissionQuery = "data.oqskem.admission.decision"

const admissionModule = `package oqskem.admission

import rego.v1

default allow := false

reasons contains "algorithm disabled in this build" if not input.enabled

reasons contains "algorithm does not claim IND-CCA security" if {
	input.enabled
	data.oqskem.require_ind_cca
	not input.ind_cca
}

reasons contains msg if {
	input.enabled
	input.nist_level < data.oqskem.min_nist_level
	msg := sprintf("claimed NIST level %d below minimum %d", [input.nist_level, data.oqskem.min_nist_level])
}

reasons contains "algorithm is on the deny list" if input.algorithm in data.oqskem.deny

reasons contains "family is on the deny list" if input.family in data.oqskem.deny

allow if count(reasons) == 0

obligations contains "rekey-hourly" if {
	allow
	input.nist_level < 3
}

decision := {
	"allow": allow,
	"obligations": obligations,
	"metadata": {"reasons": reasons},
}
`

// AlgorithmConfig sets the admission rules for KEM algorithms.
type AlgorithmConfig struct {
	MinNISTLevel    int
	AllowNonINDCCA  bool
	Deny            []string
	CacheTTL        time.Duration
	MaxCacheEntries int
}

// AlgorithmPolicy decides whether an algorithm may be used.
type AlgorithmPolicy struct {
	engine *Engine
}

// NewAlgorithmPolicy compiles the admission module against cfg.
func NewAlgorithmPolicy(ctx context.Context, cfg AlgorithmConfig) (*AlgorithmPolicy, error) {
	if cfg.MinNISTLevel <= 0 {
		cfg.MinNISTLevel = 1
	}
	deny := make([]any, 0, len(cfg.Deny))
	for _, d := range cfg.Deny {
		deny = append(deny, d)
	}
	engine, err := New(ctx, Config{
		Query:   admissionQuery,
		Modules: map[string]string{"admission.rego": admissionModule},
		Data: map[string]any{
			"oqskem": map[string]any{
				"min_nist_level":  cfg.MinNISTLevel,
				"require_ind_cca": !cfg.AllowNonINDCCA,
				"deny":            deny,
			},
		},
		CacheTTL:        cfg.CacheTTL,
		MaxCacheEntries: cfg.MaxCacheEntries,
	})
	if err != nil {
		return nil, err
	}
	return &AlgorithmPolicy{engine: engine}, nil
}

// Evaluate decides on alg. Enabled algorithms are briefly opened to read
// their claimed security properties.
func (p *AlgorithmPolicy) Evaluate(ctx context.Context, alg kem.Algorithm) (Decision, error) {
	input := map[string]any{
		"algorithm":  alg.Identifier(),
		"family":     alg.Family(),
		"enabled":    false,
		"nist_level": 0,
		"ind_cca":    false,
	}
	if alg.IsEnabled() {
		k, err := kem.New(alg)
		if err != nil {
			return Decision{}, fmt.Errorf("policy: open %s: %w", alg, err)
		}
		input["enabled"] = true
		input["nist_level"] = int(k.ClaimedNISTLevel())
		input["ind_cca"] = k.IsINDCCA()
		_ = k.Close()
	}
	return p.engine.Evaluate(ctx, input)
}

// Require returns nil when alg is admitted and an error wrapping ErrDenied
// listing the reasons otherwise.
func (p *AlgorithmPolicy) Require(ctx context.Context, alg kem.Algorithm) error {
	decision, err := p.Evaluate(ctx, alg)
	if err != nil {
		return err
	}
	if decision.Allow {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrDenied, alg, strings.Join(Reasons(decision), "; "))
}

// Reasons extracts the sorted denial reasons from an admission decision.
func Reasons(d Decision) []string {
	raw, ok := d.Metadata["reasons"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
