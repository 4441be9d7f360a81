//go:build !(cgo && liboqs)

package oqs

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding"
	"runtime/debug"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/cloudflare/circl/kem"
)

const circlModule = "github.com/cloudflare/circl"

var (
	versionOnce sync.Once
	version     string
)

// Init prepares the library for use. The builtin backend has no global
// state beyond resolving its version string.
func Init() {
	circlVersion()
}

// Destroy tears down process-wide state. Safe to call repeatedly.
func Destroy() {}

// Backend names the linked implementation.
func Backend() string { return "builtin" }

// IsEnabled reports whether id names an algorithm this build can run.
func IsEnabled(id string) bool {
	_, ok := builtinSchemes[id]
	return ok
}

// New acquires a descriptor for id, or nil when the algorithm is not
// available in this build.
func New(id string) *Descriptor {
	entry, ok := builtinSchemes[id]
	if !ok {
		return nil
	}
	s := entry.scheme
	d := &Descriptor{
		MethodName:            id,
		Version:               circlVersion(),
		ClaimedNISTLevel:      entry.level,
		INDCCA:                true,
		LengthPublicKey:       s.PublicKeySize(),
		LengthSecretKey:       s.PrivateKeySize(),
		LengthCiphertext:      s.CiphertextSize(),
		LengthSharedSecret:    s.SharedKeySize(),
		LengthEphemeralSecret: s.EncapsulationSeedSize(),
		Keypair:               schemeKeypair(s),
		Encaps:                schemeEncaps(s),
		EncapsCiphertext:      schemeEncapsCiphertext(s),
		EncapsSharedSecret:    schemeEncapsSharedSecret(s),
		Decaps:                schemeDecaps(s),
	}
	return track(d, nil)
}

func circlVersion() string {
	versionOnce.Do(func() {
		version = circlModule
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, dep := range info.Deps {
			if dep.Path == circlModule {
				version = circlModule + "@" + dep.Version
				return
			}
		}
	})
	return version
}

func schemeKeypair(s kem.Scheme) func(pk, sk []byte) Status {
	return func(pk, sk []byte) Status {
		pub, priv, err := s.GenerateKeyPair()
		if err != nil {
			return StatusError
		}
		if !writeBinary(pk, pub) || !writeBinary(sk, priv) {
			return StatusError
		}
		return StatusSuccess
	}
}

func schemeEncaps(s kem.Scheme) func(ct, ss, pk []byte) Status {
	return func(ct, ss, pk []byte) Status {
		pub, err := s.UnmarshalBinaryPublicKey(pk)
		if err != nil {
			return StatusError
		}
		c, shared, err := s.Encapsulate(pub)
		if err != nil {
			return StatusError
		}
		defer memguard.WipeBytes(shared)
		if !writeExact(ct, c) || !writeExact(ss, shared) {
			return StatusError
		}
		return StatusSuccess
	}
}

// schemeEncapsCiphertext draws the encapsulation seed into es and commits
// to the ciphertext it determines.
func schemeEncapsCiphertext(s kem.Scheme) func(ct, es, pk []byte) Status {
	return func(ct, es, pk []byte) Status {
		pub, err := s.UnmarshalBinaryPublicKey(pk)
		if err != nil {
			return StatusError
		}
		if _, err := rand.Read(es); err != nil {
			return StatusError
		}
		c, shared, err := s.EncapsulateDeterministically(pub, es)
		if err != nil {
			memguard.WipeBytes(es)
			return StatusError
		}
		memguard.WipeBytes(shared)
		if !writeExact(ct, c) {
			memguard.WipeBytes(es)
			return StatusError
		}
		return StatusSuccess
	}
}

// schemeEncapsSharedSecret re-derives the encapsulation from (pk, es) and
// only releases the shared secret when it reproduces ct.
func schemeEncapsSharedSecret(s kem.Scheme) func(ss, ct, es, pk []byte) Status {
	return func(ss, ct, es, pk []byte) Status {
		pub, err := s.UnmarshalBinaryPublicKey(pk)
		if err != nil {
			return StatusError
		}
		c, shared, err := s.EncapsulateDeterministically(pub, es)
		if err != nil {
			return StatusError
		}
		defer memguard.WipeBytes(shared)
		if subtle.ConstantTimeCompare(c, ct) != 1 {
			return StatusError
		}
		if !writeExact(ss, shared) {
			return StatusError
		}
		return StatusSuccess
	}
}

func schemeDecaps(s kem.Scheme) func(ss, ct, sk []byte) Status {
	return func(ss, ct, sk []byte) Status {
		priv, err := s.UnmarshalBinaryPrivateKey(sk)
		if err != nil {
			return StatusError
		}
		shared, err := s.Decapsulate(priv, ct)
		if err != nil {
			return StatusError
		}
		defer memguard.WipeBytes(shared)
		if !writeExact(ss, shared) {
			return StatusError
		}
		return StatusSuccess
	}
}

func writeBinary(dst []byte, m encoding.BinaryMarshaler) bool {
	b, err := m.MarshalBinary()
	if err != nil {
		return false
	}
	defer memguard.WipeBytes(b)
	return writeExact(dst, b)
}

// writeExact fills dst entirely or not at all.
func writeExact(dst, src []byte) bool {
	if len(dst) != len(src) {
		return false
	}
	copy(dst, src)
	return true
}
