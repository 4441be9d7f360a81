// Package kdf turns a KEM shared secret into symmetric session keys.
package kdf

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/awnumar/memguard"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/example/oqskem/pkg/kem"
)

// Config tunes key derivation.
type Config struct {
	Label            string
	RotationInterval time.Duration
	InitiatorKeySize int
	ResponderKeySize int
	ExporterSize     int
	Salt             []byte
}

// Keys holds the symmetric material derived from one shared secret.
type Keys struct {
	SessionID      []byte
	InitiatorKey   []byte
	ResponderKey   []byte
	ExporterSecret []byte
	Transcript     []byte
	EstablishedAt  time.Time
	NextRotation   time.Time
}

// Wipe zeroes every secret field.
func (k *Keys) Wipe() {
	memguard.WipeBytes(k.InitiatorKey)
	memguard.WipeBytes(k.ResponderKey)
	memguard.WipeBytes(k.ExporterSecret)
}

// Derive runs HKDF-SHA3-512 over ss, binding the output to transcript.
func Derive(ss kem.SharedSecret, transcript []byte, cfg Config) (Keys, error) {
	var zero Keys
	if ss.Len() == 0 {
		return zero, errors.New("kdf: shared secret required")
	}
	if len(transcript) == 0 {
		return zero, errors.New("kdf: transcript required")
	}
	if cfg.InitiatorKeySize <= 0 {
		cfg.InitiatorKeySize = 32
	}
	if cfg.ResponderKeySize <= 0 {
		cfg.ResponderKeySize = 32
	}
	if cfg.ExporterSize <= 0 {
		cfg.ExporterSize = 32
	}
	if cfg.RotationInterval <= 0 {
		cfg.RotationInterval = 15 * time.Minute
	}

	secret := ss.Bytes()
	defer memguard.WipeBytes(secret)

	r := hkdf.New(sha3.New512, secret, cfg.Salt, buildInfo(cfg.Label, transcript))

	initiator := make([]byte, cfg.InitiatorKeySize)
	if _, err := io.ReadFull(r, initiator); err != nil {
		return zero, fmt.Errorf("kdf: derive initiator key: %w", err)
	}
	responder := make([]byte, cfg.ResponderKeySize)
	if _, err := io.ReadFull(r, responder); err != nil {
		memguard.WipeBytes(initiator)
		return zero, fmt.Errorf("kdf: derive responder key: %w", err)
	}
	exporter := make([]byte, cfg.ExporterSize)
	if _, err := io.ReadFull(r, exporter); err != nil {
		memguard.WipeBytes(initiator)
		memguard.WipeBytes(responder)
		return zero, fmt.Errorf("kdf: derive exporter: %w", err)
	}

	now := time.Now().UTC()
	return Keys{
		SessionID:      sessionID(transcript, secret),
		InitiatorKey:   initiator,
		ResponderKey:   responder,
		ExporterSecret: exporter,
		Transcript:     append([]byte(nil), transcript...),
		EstablishedAt:  now,
		NextRotation:   now.Add(cfg.RotationInterval),
	}, nil
}

func buildInfo(label string, transcript []byte) []byte {
	if label == "" {
		label = "session"
	}
	info := make([]byte, 0, len(label)+len(transcript)+8)
	info = append(info, "oqskem-kdf"...)
	info = append(info, 0)
	info = append(info, label...)
	info = append(info, 0)
	info = append(info, transcript...)
	return info
}

func sessionID(transcript, secret []byte) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte("oqskem-session-id"))
	_, _ = h.Write(secret)
	_, _ = h.Write(transcript)
	return h.Sum(nil)
}

// Confirm computes a key-confirmation tag for key over transcript.
func Confirm(key, transcript []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, errors.New("kdf: confirmation key empty")
	}
	if len(transcript) == 0 {
		return nil, errors.New("kdf: transcript empty")
	}
	h, err := blake3.NewKeyed(confirmKey(key))
	if err != nil {
		return nil, fmt.Errorf("kdf: confirm: %w", err)
	}
	_, _ = h.Write(transcript)
	return h.Sum(nil), nil
}

// confirmKey compresses key to the 32 bytes a keyed blake3 hasher takes.
func confirmKey(key []byte) []byte {
	sum := blake3.Sum256(key)
	return sum[:]
}
