package kdf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/example/oqskem/pkg/kem"
)

// Transcript binds the public artefacts of one KEM exchange into a
// domain-separated hash. Each entry is written as label, big-endian length,
// body, so distinct sequences never collide.
type Transcript struct {
	mu     sync.Mutex
	hasher *blake3.Hasher
	labels []string
}

// NewTranscript starts a transcript for alg under domain.
func NewTranscript(domain string, alg kem.Algorithm) *Transcript {
	h := blake3.New()
	_, _ = h.Write([]byte("oqskem-transcript:"))
	_, _ = h.Write([]byte(domain))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(alg.Identifier()))
	return &Transcript{hasher: h, labels: make([]string, 0, 4)}
}

// Append folds one labelled value into the transcript.
func (t *Transcript) Append(label string, data []byte) error {
	if label == "" {
		return errors.New("kdf: transcript label required")
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.hasher.Write([]byte(label)); err != nil {
		return fmt.Errorf("kdf: write label: %w", err)
	}
	_, _ = t.hasher.Write(lenBuf[:])
	_, _ = t.hasher.Write(data)
	t.labels = append(t.labels, label)
	return nil
}

// AppendExchange records the public key and ciphertext of an encapsulation.
func (t *Transcript) AppendExchange(pk kem.PublicKey, ct kem.Ciphertext) error {
	if err := t.Append("public_key", pk.Bytes()); err != nil {
		return err
	}
	return t.Append("ciphertext", ct.Bytes())
}

// Sum returns the current commitment without finalising the transcript.
func (t *Transcript) Sum() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasher.Clone().Sum(nil)
}

// Labels lists the recorded entries in order.
func (t *Transcript) Labels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.labels...)
}
