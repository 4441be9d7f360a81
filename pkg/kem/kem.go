// Package kem is a safe, algorithm-agnostic interface to post-quantum key
// encapsulation mechanisms.
//
// A Kem handle is created for one Algorithm and can be reused for any
// number of operations. Every buffer passed to an operation is checked
// against the handle's declared length for its kind before the native
// library sees it, and outputs only become visible after the library
// reports success.
//
// Call Init once per process before creating handles and Cleanup once after
// the last handle is closed.
package kem

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/example/oqskem/internal/oqs"
)

// Option customises a Kem at construction.
type Option func(*Kem)

// WithLogger routes handle lifecycle and failure events to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(k *Kem) {
		if logger != nil {
			k.log = logger
		}
	}
}

// metadata is copied out of the descriptor at construction so accessors
// keep working after Close.
type metadata struct {
	version   string
	nistLevel uint8
	indCCA    bool
	lengths   [KindEphemeralSecret + 1]int
}

// Kem owns one native algorithm descriptor.
//
// A Kem is safe for concurrent use. Close waits for in-flight operations
// before releasing the descriptor. The per-algorithm Init and Deinit hooks
// are not serialised against other operations.
type Kem struct {
	alg  Algorithm
	meta metadata
	log  *zap.Logger

	mu        sync.RWMutex
	desc      *oqs.Descriptor
	closeOnce sync.Once
}

// New acquires the descriptor for alg. It returns ErrAlgorithmDisabled when
// the linked library does not provide the algorithm.
func New(alg Algorithm, opts ...Option) (*Kem, error) {
	if !alg.valid() {
		return nil, ErrAlgorithmDisabled
	}
	d := oqs.New(alg.Identifier())
	if d == nil {
		return nil, ErrAlgorithmDisabled
	}
	return newKem(alg, d, opts...), nil
}

func newKem(alg Algorithm, d *oqs.Descriptor, opts ...Option) *Kem {
	k := &Kem{
		alg:  alg,
		desc: d,
		log:  zap.NewNop(),
		meta: metadata{
			version:   d.Version,
			nistLevel: d.ClaimedNISTLevel,
			indCCA:    d.INDCCA,
		},
	}
	k.meta.lengths[KindPublicKey] = d.LengthPublicKey
	k.meta.lengths[KindSecretKey] = d.LengthSecretKey
	k.meta.lengths[KindCiphertext] = d.LengthCiphertext
	k.meta.lengths[KindSharedSecret] = d.LengthSharedSecret
	k.meta.lengths[KindEphemeralSecret] = d.LengthEphemeralSecret
	for _, opt := range opts {
		opt(k)
	}
	k.log = k.log.With(zap.Stringer("algorithm", alg))
	runtime.SetFinalizer(k, (*Kem).finalize)
	k.log.Debug("kem handle created",
		zap.String("version", d.Version),
		zap.Uint8("nist_level", d.ClaimedNISTLevel),
	)
	return k
}

// Algorithm returns the algorithm the handle was created for.
func (k *Kem) Algorithm() Algorithm { return k.alg }

// Version returns the implementation version reported by the library.
func (k *Kem) Version() string { return k.meta.version }

// ClaimedNISTLevel returns the NIST security category the algorithm claims.
func (k *Kem) ClaimedNISTLevel() uint8 { return k.meta.nistLevel }

// IsINDCCA reports whether the algorithm claims IND-CCA security.
func (k *Kem) IsINDCCA() bool { return k.meta.indCCA }

// LengthPublicKey returns the declared public key length in bytes.
func (k *Kem) LengthPublicKey() int { return k.meta.lengths[KindPublicKey] }

// LengthSecretKey returns the declared secret key length in bytes.
func (k *Kem) LengthSecretKey() int { return k.meta.lengths[KindSecretKey] }

// LengthCiphertext returns the declared ciphertext length in bytes.
func (k *Kem) LengthCiphertext() int { return k.meta.lengths[KindCiphertext] }

// LengthSharedSecret returns the declared shared secret length in bytes.
func (k *Kem) LengthSharedSecret() int { return k.meta.lengths[KindSharedSecret] }

// LengthEphemeralSecret returns the declared ephemeral secret length in
// bytes. It is zero for algorithms without a split path.
func (k *Kem) LengthEphemeralSecret() int { return k.meta.lengths[KindEphemeralSecret] }

// Length returns the declared length for kind, or -1 for an unknown kind.
func (k *Kem) Length(kind Kind) int {
	if int(kind) >= len(k.meta.lengths) {
		return -1
	}
	return k.meta.lengths[kind]
}

// PublicKeyFromBytes borrows b as a public key when its length matches.
func (k *Kem) PublicKeyFromBytes(b []byte) (PublicKeyRef, bool) {
	if len(b) != k.LengthPublicKey() {
		return PublicKeyRef{}, false
	}
	return PublicKeyRef{b: b}, true
}

// SecretKeyFromBytes borrows b as a secret key when its length matches.
func (k *Kem) SecretKeyFromBytes(b []byte) (SecretKeyRef, bool) {
	if len(b) != k.LengthSecretKey() {
		return SecretKeyRef{}, false
	}
	return SecretKeyRef{b: b}, true
}

// CiphertextFromBytes borrows b as a ciphertext when its length matches.
func (k *Kem) CiphertextFromBytes(b []byte) (CiphertextRef, bool) {
	if len(b) != k.LengthCiphertext() {
		return CiphertextRef{}, false
	}
	return CiphertextRef{b: b}, true
}

// SharedSecretFromBytes borrows b as a shared secret when its length matches.
func (k *Kem) SharedSecretFromBytes(b []byte) (SharedSecretRef, bool) {
	if len(b) != k.LengthSharedSecret() {
		return SharedSecretRef{}, false
	}
	return SharedSecretRef{b: b}, true
}

// EphemeralSecretFromBytes borrows b as an ephemeral secret when its length
// matches.
func (k *Kem) EphemeralSecretFromBytes(b []byte) (EphemeralSecretRef, bool) {
	if len(b) != k.LengthEphemeralSecret() {
		return EphemeralSecretRef{}, false
	}
	return EphemeralSecretRef{b: b}, true
}

// Init runs the algorithm's optional initialisation hook. A missing hook
// succeeds. Neither the builtin nor the liboqs backend defines hooks, so
// for them Init and Deinit always return nil.
func (k *Kem) Init() error {
	return k.runHook("init", func(d *oqs.Descriptor) func() oqs.Status { return d.Init })
}

// Deinit runs the algorithm's optional teardown hook. A missing hook
// succeeds.
func (k *Kem) Deinit() error {
	return k.runHook("deinit", func(d *oqs.Descriptor) func() oqs.Status { return d.Deinit })
}

func (k *Kem) runHook(op string, pick func(*oqs.Descriptor) func() oqs.Status) error {
	d, done, err := k.acquire()
	if err != nil {
		return err
	}
	defer done()
	hook := pick(d)
	if hook == nil {
		return nil
	}
	return k.fail(op, statusToError(op, hook()))
}

// SupportsSplit reports whether the descriptor provides both entry points
// used by EncapsulateSplit and FinalizeSharedSecret.
func (k *Kem) SupportsSplit() bool {
	d, done, err := k.acquire()
	if err != nil {
		return false
	}
	defer done()
	return d.EncapsCiphertext != nil && d.EncapsSharedSecret != nil
}

// Close releases the descriptor. It waits for running operations, is safe
// to call more than once and always returns nil.
func (k *Kem) Close() error {
	k.closeOnce.Do(func() {
		k.mu.Lock()
		d := k.desc
		k.desc = nil
		k.mu.Unlock()
		runtime.SetFinalizer(k, nil)
		oqs.Free(d)
		k.log.Debug("kem handle closed")
	})
	return nil
}

func (k *Kem) finalize() {
	if k.desc != nil {
		oqs.Free(k.desc)
		k.desc = nil
	}
}

// acquire pins the descriptor for one operation.
func (k *Kem) acquire() (*oqs.Descriptor, func(), error) {
	k.mu.RLock()
	if k.desc == nil {
		k.mu.RUnlock()
		return nil, nil, ErrClosed
	}
	return k.desc, k.mu.RUnlock, nil
}

// fail logs err at debug level and returns it unchanged.
func (k *Kem) fail(op string, err error) error {
	if err != nil {
		k.log.Debug("kem operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}
