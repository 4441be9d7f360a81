package kdf

import (
	"sync"
	"time"
)

// RotationConfig sets when keys from one encapsulation must be replaced.
type RotationConfig struct {
	Interval    time.Duration
	MaxMessages uint64
	Skew        time.Duration
}

// Rotation counts uses of a derived key set and reports when a fresh
// encapsulation is due.
type Rotation struct {
	mu       sync.Mutex
	cfg      RotationConfig
	start    time.Time
	messages uint64
	epoch    uint64
}

// NewRotation starts tracking at start with the given epoch.
func NewRotation(cfg RotationConfig, start time.Time, epoch uint64) *Rotation {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Skew <= 0 {
		cfg.Skew = 5 * time.Second
	}
	return &Rotation{cfg: cfg, start: start, epoch: epoch}
}

// Record counts one message and reports whether rekeying is due.
func (r *Rotation) Record(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages++
	return r.dueLocked(now)
}

// Due reports whether rekeying is due without counting a message.
func (r *Rotation) Due(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dueLocked(now)
}

// Epoch returns the current key epoch.
func (r *Rotation) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// Rekeyed restarts the counters for a new key set and advances the epoch.
func (r *Rotation) Rekeyed(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = now
	r.messages = 0
	r.epoch++
}

func (r *Rotation) dueLocked(now time.Time) bool {
	if r.cfg.MaxMessages > 0 && r.messages >= r.cfg.MaxMessages {
		return true
	}
	skew := r.cfg.Skew
	if skew >= r.cfg.Interval {
		skew = 0
	}
	return !now.Before(r.start.Add(r.cfg.Interval - skew))
}
