package kem

import (
	"crypto/subtle"
	"fmt"

	"github.com/awnumar/memguard"
)

// Kind names one of the five buffer kinds a handle declares a length for.
type Kind uint8

const (
	KindPublicKey Kind = iota
	KindSecretKey
	KindCiphertext
	KindSharedSecret
	KindEphemeralSecret
)

func (k Kind) String() string {
	switch k {
	case KindPublicKey:
		return "public key"
	case KindSecretKey:
		return "secret key"
	case KindCiphertext:
		return "ciphertext"
	case KindSharedSecret:
		return "shared secret"
	case KindEphemeralSecret:
		return "ephemeral secret"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// owned is the storage shared by every owned buffer kind.
type owned struct {
	b []byte
}

func (o owned) clone() []byte {
	if o.b == nil {
		return nil
	}
	out := make([]byte, len(o.b))
	copy(out, o.b)
	return out
}

func (o owned) equal(other owned) bool {
	return len(o.b) == len(other.b) && subtle.ConstantTimeCompare(o.b, other.b) == 1
}

// rawBuffer is an output buffer between allocation and a successful native
// write. Its length stays zero until commit, so nothing can observe bytes
// the native call has not produced yet.
type rawBuffer struct {
	b         []byte
	committed bool
}

// allocate reserves capacity n without exposing any of it.
func allocate(n int) *rawBuffer {
	return &rawBuffer{b: make([]byte, 0, n)}
}

// spare is the region handed to the native entry point.
func (r *rawBuffer) spare() []byte {
	return r.b[:cap(r.b)]
}

// commit finalizes the length to the reserved capacity. It must be called
// once, and only after the native call reported success.
func (r *rawBuffer) commit() owned {
	if r.committed {
		panic("kem: buffer committed twice")
	}
	r.committed = true
	r.b = r.b[:cap(r.b)]
	return owned{b: r.b}
}

// discard wipes whatever the native call may have written.
func (r *rawBuffer) discard() {
	if r == nil || r.committed {
		return
	}
	memguard.WipeBytes(r.spare())
	r.b = nil
}

// PublicKey is an owned public key.
type PublicKey struct{ owned }

// Bytes returns a copy of the public key.
func (k PublicKey) Bytes() []byte { return k.clone() }

// Len returns the length in bytes.
func (k PublicKey) Len() int { return len(k.b) }

// Equal compares two public keys in constant time.
func (k PublicKey) Equal(other PublicKey) bool { return k.equal(other.owned) }

// Ref borrows k without copying.
func (k PublicKey) Ref() PublicKeyRef { return PublicKeyRef{b: k.b} }

func (k PublicKey) String() string { return fmt.Sprintf("PublicKey(%d bytes)", len(k.b)) }

func (k PublicKey) publicKeyBytes() []byte { return k.b }

// PublicKeyRef is a borrowed public key. Obtain one from Kem.PublicKeyFromBytes, which
// checks the length, or from PublicKey.Ref.
type PublicKeyRef struct {
	b []byte
}

// Bytes returns the borrowed bytes without copying.
func (r PublicKeyRef) Bytes() []byte { return r.b }

// Len returns the length in bytes.
func (r PublicKeyRef) Len() int { return len(r.b) }

func (r PublicKeyRef) String() string { return fmt.Sprintf("PublicKeyRef(%d bytes)", len(r.b)) }

func (r PublicKeyRef) publicKeyBytes() []byte { return r.b }

// PublicKeyBytes is satisfied by PublicKey and PublicKeyRef only.
type PublicKeyBytes interface {
	publicKeyBytes() []byte
}

// SecretKey is an owned secret key.
type SecretKey struct{ owned }

// Bytes returns a copy of the secret key.
func (k SecretKey) Bytes() []byte { return k.clone() }

// Len returns the length in bytes.
func (k SecretKey) Len() int { return len(k.b) }

// Equal compares two secret keys in constant time.
func (k SecretKey) Equal(other SecretKey) bool { return k.equal(other.owned) }

// Ref borrows k without copying.
func (k SecretKey) Ref() SecretKeyRef { return SecretKeyRef{b: k.b} }

func (k SecretKey) String() string { return fmt.Sprintf("SecretKey(%d bytes)", len(k.b)) }

func (k SecretKey) secretKeyBytes() []byte { return k.b }

// Wipe zeroes the secret key in place.
func (k SecretKey) Wipe() { memguard.WipeBytes(k.b) }

// SecretKeyRef is a borrowed secret key. Obtain one from Kem.SecretKeyFromBytes, which
// checks the length, or from SecretKey.Ref.
type SecretKeyRef struct {
	b []byte
}

// Bytes returns the borrowed bytes without copying.
func (r SecretKeyRef) Bytes() []byte { return r.b }

// Len returns the length in bytes.
func (r SecretKeyRef) Len() int { return len(r.b) }

func (r SecretKeyRef) String() string { return fmt.Sprintf("SecretKeyRef(%d bytes)", len(r.b)) }

func (r SecretKeyRef) secretKeyBytes() []byte { return r.b }

// SecretKeyBytes is satisfied by SecretKey and SecretKeyRef only.
type SecretKeyBytes interface {
	secretKeyBytes() []byte
}

// Ciphertext is an owned ciphertext.
type Ciphertext struct{ owned }

// Bytes returns a copy of the ciphertext.
func (k Ciphertext) Bytes() []byte { return k.clone() }

// Len returns the length in bytes.
func (k Ciphertext) Len() int { return len(k.b) }

// Equal compares two ciphertexts in constant time.
func (k Ciphertext) Equal(other Ciphertext) bool { return k.equal(other.owned) }

// Ref borrows k without copying.
func (k Ciphertext) Ref() CiphertextRef { return CiphertextRef{b: k.b} }

func (k Ciphertext) String() string { return fmt.Sprintf("Ciphertext(%d bytes)", len(k.b)) }

func (k Ciphertext) ciphertextBytes() []byte { return k.b }

// CiphertextRef is a borrowed ciphertext. Obtain one from Kem.CiphertextFromBytes, which
// checks the length, or from Ciphertext.Ref.
type CiphertextRef struct {
	b []byte
}

// Bytes returns the borrowed bytes without copying.
func (r CiphertextRef) Bytes() []byte { return r.b }

// Len returns the length in bytes.
func (r CiphertextRef) Len() int { return len(r.b) }

func (r CiphertextRef) String() string { return fmt.Sprintf("CiphertextRef(%d bytes)", len(r.b)) }

func (r CiphertextRef) ciphertextBytes() []byte { return r.b }

// CiphertextBytes is satisfied by Ciphertext and CiphertextRef only.
type CiphertextBytes interface {
	ciphertextBytes() []byte
}

// SharedSecret is an owned shared secret.
type SharedSecret struct{ owned }

// Bytes returns a copy of the shared secret.
func (k SharedSecret) Bytes() []byte { return k.clone() }

// Len returns the length in bytes.
func (k SharedSecret) Len() int { return len(k.b) }

// Equal compares two shared secrets in constant time.
func (k SharedSecret) Equal(other SharedSecret) bool { return k.equal(other.owned) }

// Ref borrows k without copying.
func (k SharedSecret) Ref() SharedSecretRef { return SharedSecretRef{b: k.b} }

func (k SharedSecret) String() string { return fmt.Sprintf("SharedSecret(%d bytes)", len(k.b)) }

// Wipe zeroes the shared secret in place.
func (k SharedSecret) Wipe() { memguard.WipeBytes(k.b) }

// SharedSecretRef is a borrowed shared secret. Obtain one from Kem.SharedSecretFromBytes, which
// checks the length, or from SharedSecret.Ref.
type SharedSecretRef struct {
	b []byte
}

// Bytes returns the borrowed bytes without copying.
func (r SharedSecretRef) Bytes() []byte { return r.b }

// Len returns the length in bytes.
func (r SharedSecretRef) Len() int { return len(r.b) }

func (r SharedSecretRef) String() string { return fmt.Sprintf("SharedSecretRef(%d bytes)", len(r.b)) }

// EphemeralSecret is an owned ephemeral secret.
type EphemeralSecret struct{ owned }

// Bytes returns a copy of the ephemeral secret.
func (k EphemeralSecret) Bytes() []byte { return k.clone() }

// Len returns the length in bytes.
func (k EphemeralSecret) Len() int { return len(k.b) }

// Equal compares two ephemeral secrets in constant time.
func (k EphemeralSecret) Equal(other EphemeralSecret) bool { return k.equal(other.owned) }

// Ref borrows k without copying.
func (k EphemeralSecret) Ref() EphemeralSecretRef { return EphemeralSecretRef{b: k.b} }

func (k EphemeralSecret) String() string { return fmt.Sprintf("EphemeralSecret(%d bytes)", len(k.b)) }

func (k EphemeralSecret) ephemeralSecretBytes() []byte { return k.b }

// Wipe zeroes the ephemeral secret in place.
func (k EphemeralSecret) Wipe() { memguard.WipeBytes(k.b) }

// EphemeralSecretRef is a borrowed ephemeral secret. Obtain one from Kem.EphemeralSecretFromBytes, which
// checks the length, or from EphemeralSecret.Ref.
type EphemeralSecretRef struct {
	b []byte
}

// Bytes returns the borrowed bytes without copying.
func (r EphemeralSecretRef) Bytes() []byte { return r.b }

// Len returns the length in bytes.
func (r EphemeralSecretRef) Len() int { return len(r.b) }

func (r EphemeralSecretRef) String() string { return fmt.Sprintf("EphemeralSecretRef(%d bytes)", len(r.b)) }

func (r EphemeralSecretRef) ephemeralSecretBytes() []byte { return r.b }

// EphemeralSecretBytes is satisfied by EphemeralSecret and EphemeralSecretRef only.
type EphemeralSecretBytes interface {
	ephemeralSecretBytes() []byte
}
