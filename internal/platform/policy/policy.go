// Package policy evaluates rego policies with a bounded decision cache.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/open-policy-agent/opa/topdown"
)

// Config defines what the engine compiles and how it caches.
type Config struct {
	// Query names the rule to evaluate, e.g. "data.oqskem.admission.decision".
	Query string
	// Modules maps file names to rego source.
	Modules map[string]string
	// Data is loaded into an in-memory store and visible under data.
	Data            map[string]any
	EvalTimeout     time.Duration
	CacheTTL        time.Duration
	MaxCacheEntries int
	Tracer          topdown.Tracer
}

// Decision is a normalised query result. A boolean result maps onto Allow;
// an object result supplies allow, obligations and metadata.
type Decision struct {
	Allow       bool
	Obligations []string
	Metadata    map[string]any
	RawResult   any
}

// Engine holds one prepared query.
type Engine struct {
	query    rego.PreparedEvalQuery
	timeout  time.Duration
	cache    *decisionCache
	evalOpts []rego.EvalOption
}

// New compiles cfg.Modules and prepares cfg.Query.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Query == "" {
		return nil, errors.New("policy: query cannot be empty")
	}

	names := make([]string, 0, len(cfg.Modules))
	for name := range cfg.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := []func(*rego.Rego){rego.Query(cfg.Query)}
	for _, name := range names {
		opts = append(opts, rego.Module(name, cfg.Modules[name]))
	}
	if cfg.Data != nil {
		opts = append(opts, rego.Store(inmem.NewFromObject(cfg.Data)))
	}
	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: compile: %w", err)
	}

	cache, err := newDecisionCache(cfg.MaxCacheEntries, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("policy: decision cache: %w", err)
	}
	timeout := cfg.EvalTimeout
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}

	e := &Engine{query: prepared, timeout: timeout, cache: cache}
	if cfg.Tracer != nil {
		e.evalOpts = append(e.evalOpts, rego.EvalTracer(cfg.Tracer))
	}
	return e, nil
}

// Evaluate runs the query against input. Identical inputs are answered
// from the cache until their entry expires.
func (e *Engine) Evaluate(ctx context.Context, input any) (Decision, error) {
	if e == nil {
		return Decision{}, errors.New("policy: engine is nil")
	}
	key, err := cacheKey(input)
	if err != nil {
		return Decision{}, err
	}
	if d, ok := e.cache.get(key); ok {
		return d, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	rs, err := e.query.Eval(ctx, append([]rego.EvalOption{rego.EvalInput(input)}, e.evalOpts...)...)
	if err != nil {
		return Decision{}, fmt.Errorf("policy: eval: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, errors.New("policy: empty result set")
	}
	d, err := normalize(rs[0].Expressions[0].Value)
	if err != nil {
		return Decision{}, err
	}
	e.cache.put(key, d)
	return d, nil
}

// Purge drops every cached decision.
func (e *Engine) Purge() {
	e.cache.purge()
}

func normalize(val any) (Decision, error) {
	switch v := val.(type) {
	case bool:
		return Decision{Allow: v, RawResult: v}, nil
	case map[string]any:
		d := Decision{Allow: true, RawResult: v, Metadata: map[string]any{}}
		if allow, ok := v["allow"].(bool); ok {
			d.Allow = allow
		}
		d.Obligations = stringSet(v["obligations"])
		if meta, ok := v["metadata"].(map[string]any); ok {
			d.Metadata = meta
		}
		return d, nil
	default:
		return Decision{}, fmt.Errorf("policy: unsupported result type %T", v)
	}
}

// stringSet collects the string members of a rego array or set, sorted.
func stringSet(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
