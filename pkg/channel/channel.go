// Package channel seals messages under keys derived from a KEM exchange.
package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/example/oqskem/pkg/kdf"
)

// ErrEpoch is returned when an envelope was sealed under another key epoch.
var ErrEpoch = errors.New("channel: epoch mismatch")

// Role is the local side of the exchange. The initiator encapsulated to the
// responder's public key.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func (r Role) peer() Role {
	if r == RoleInitiator {
		return RoleResponder
	}
	return RoleInitiator
}

// Envelope is one sealed message.
type Envelope struct {
	Epoch      uint64
	Sequence   uint64
	Ciphertext []byte
}

// Config governs channel construction.
type Config struct {
	Role        Role
	Keys        kdf.Keys
	Rotation    kdf.RotationConfig
	// ReplayDepth is the replay window size; zero selects 2048 and the
	// maximum is 1<<20.
	ReplayDepth uint64
	Epoch       uint64
}

// Channel seals outgoing and opens incoming messages with XChaCha20-Poly1305.
type Channel struct {
	role      Role
	sessionID []byte
	epoch     uint64

	send cipherAEAD
	recv cipherAEAD

	sendMu  sync.Mutex
	sendSeq uint64

	window   *window
	rotation *kdf.Rotation
}

type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// New builds a Channel for cfg.Role from derived keys.
func New(cfg Config) (*Channel, error) {
	if cfg.Role != RoleInitiator && cfg.Role != RoleResponder {
		return nil, fmt.Errorf("channel: invalid role %d", cfg.Role)
	}
	if len(cfg.Keys.SessionID) == 0 {
		return nil, errors.New("channel: session id required")
	}
	sendKey, recvKey := cfg.Keys.InitiatorKey, cfg.Keys.ResponderKey
	if cfg.Role == RoleResponder {
		sendKey, recvKey = recvKey, sendKey
	}
	send, err := chacha20poly1305.NewX(sendKey)
	if err != nil {
		return nil, fmt.Errorf("channel: send cipher: %w", err)
	}
	recv, err := chacha20poly1305.NewX(recvKey)
	if err != nil {
		return nil, fmt.Errorf("channel: recv cipher: %w", err)
	}

	rotation := cfg.Rotation
	if rotation.Interval <= 0 {
		rotation.Interval = cfg.Keys.NextRotation.Sub(cfg.Keys.EstablishedAt)
	}
	established := cfg.Keys.EstablishedAt
	if established.IsZero() {
		established = time.Now().UTC()
	}

	return &Channel{
		role:      cfg.Role,
		sessionID: append([]byte(nil), cfg.Keys.SessionID...),
		epoch:     cfg.Epoch,
		send:      send,
		recv:      recv,
		window:    newWindow(cfg.ReplayDepth),
		rotation:  kdf.NewRotation(rotation, established, cfg.Epoch),
	}, nil
}

// Seal protects plaintext and reports whether the keys are due for
// replacement.
func (c *Channel) Seal(plaintext, aad []byte) (Envelope, bool, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.sendSeq++
	seq := c.sendSeq
	nonce := c.nonce(seq, c.role)
	rekey := c.rotation.Record(time.Now().UTC())

	return Envelope{
		Epoch:      c.epoch,
		Sequence:   seq,
		Ciphertext: c.send.Seal(nil, nonce[:], plaintext, c.additionalData(seq, aad)),
	}, rekey, nil
}

// Open authenticates env and returns its plaintext.
func (c *Channel) Open(env Envelope, aad []byte) ([]byte, bool, error) {
	if env.Epoch != c.epoch {
		return nil, false, fmt.Errorf("%w: got %d, want %d", ErrEpoch, env.Epoch, c.epoch)
	}
	nonce := c.nonce(env.Sequence, c.role.peer())
	plaintext, err := c.recv.Open(nil, nonce[:], env.Ciphertext, c.additionalData(env.Sequence, aad))
	if err != nil {
		return nil, false, fmt.Errorf("channel: open: %w", err)
	}
	if err := c.window.accept(env.Sequence); err != nil {
		return nil, false, err
	}
	return plaintext, c.rotation.Due(time.Now().UTC()), nil
}

// SessionID returns the identifier both sides derived.
func (c *Channel) SessionID() []byte {
	return append([]byte(nil), c.sessionID...)
}

// Epoch returns the key epoch the channel seals under.
func (c *Channel) Epoch() uint64 { return c.epoch }

func (c *Channel) additionalData(seq uint64, aad []byte) []byte {
	out := make([]byte, 0, 16+len(aad))
	out = binary.BigEndian.AppendUint64(out, c.epoch)
	out = binary.BigEndian.AppendUint64(out, seq)
	return append(out, aad...)
}

// nonce derives a per-direction nonce from the session id and sequence.
func (c *Channel) nonce(seq uint64, sender Role) [chacha20poly1305.NonceSizeX]byte {
	var nonce [chacha20poly1305.NonceSizeX]byte
	h := blake3.New()
	_, _ = h.Write(c.sessionID)
	_, _ = h.Write([]byte{byte(sender)})
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	_, _ = h.Write(seqBuf[:])
	_, _ = h.Digest().Read(nonce[:])
	return nonce
}
