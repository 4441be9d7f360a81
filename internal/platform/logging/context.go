package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"go.uber.org/zap"
)

type contextKey struct{}

// Inject attaches logger to ctx.
func Inject(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// From returns the logger carried by ctx, or fallback.
func From(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx == nil {
		return fallback
	}
	if logger, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return logger
	}
	return fallback
}

// Correlator tags loggers with a fresh identifier per unit of work, such
// as one benchmark run.
type Correlator struct {
	key      string
	generate func() string
}

// NewCorrelator uses generator for identifiers, or random ones when nil.
func NewCorrelator(key string, generator func() string) *Correlator {
	if key == "" {
		key = "correlation_id"
	}
	if generator == nil {
		generator = randomID
	}
	return &Correlator{key: key, generate: generator}
}

// Decorate returns ctx and logger carrying a new identifier, and the
// identifier itself. A nil Correlator leaves both unchanged.
func (c *Correlator) Decorate(ctx context.Context, logger *zap.Logger) (context.Context, *zap.Logger, string) {
	if c == nil {
		return ctx, logger, ""
	}
	id := c.generate()
	child := logger.With(zap.String(c.key, id))
	return Inject(ctx, child), child, id
}

func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
