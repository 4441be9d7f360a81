package channel

import (
	"errors"
	"sync"
)

var (
	// ErrDuplicate indicates the sequence was already accepted.
	ErrDuplicate = errors.New("channel: duplicate sequence")
	// ErrStale indicates the sequence fell out of the replay window.
	ErrStale = errors.New("channel: stale sequence")
)

// window is a sliding bitmap over the last size sequence numbers. Bit
// seq%size records whether seq was accepted while it is inside the window.
type window struct {
	mu      sync.Mutex
	size    uint64
	highest uint64
	bits    []uint64
}

// maxWindow bounds the replay bitmap at 128 KiB.
const maxWindow = 1 << 20

// newWindow rounds depth up to a multiple of 64; zero selects 2048 and
// depths above maxWindow are clamped to it.
func newWindow(depth uint64) *window {
	if depth == 0 {
		depth = 2048
	}
	if depth > maxWindow {
		depth = maxWindow
	}
	depth = (depth + 63) &^ 63
	return &window{size: depth, bits: make([]uint64, depth/64)}
}

func (w *window) accept(seq uint64) error {
	if seq == 0 {
		return errors.New("channel: sequence must start at 1")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if seq > w.highest {
		if seq-w.highest >= w.size {
			clear(w.bits)
		} else {
			for s := w.highest + 1; s < seq; s++ {
				w.unset(s)
			}
		}
		w.highest = seq
		w.set(seq)
		return nil
	}
	if w.highest-seq >= w.size {
		return ErrStale
	}
	if w.isSet(seq) {
		return ErrDuplicate
	}
	w.set(seq)
	return nil
}

func (w *window) slot(seq uint64) (int, uint64) {
	i := seq % w.size
	return int(i / 64), 1 << (i % 64)
}

func (w *window) set(seq uint64) {
	word, mask := w.slot(seq)
	w.bits[word] |= mask
}

func (w *window) unset(seq uint64) {
	word, mask := w.slot(seq)
	w.bits[word] &^= mask
}

func (w *window) isSet(seq uint64) bool {
	word, mask := w.slot(seq)
	return w.bits[word]&mask != 0
}
