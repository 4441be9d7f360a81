package secrets

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/zeebo/blake3"

	"github.com/example/oqskem/pkg/kem"
)

// ErrKeyMismatch is returned by LoadKeyPair when stored material does not
// fit the handle it is loaded into.
var ErrKeyMismatch = errors.New("secrets: stored key pair mismatch")

// Fingerprint returns the hex blake3 digest of a public key.
func Fingerprint(publicKey []byte) string {
	sum := blake3.Sum256(publicKey)
	return hex.EncodeToString(sum[:])
}

// StoreKeyPair writes a KEM key pair to KV v2 at path and returns the public
// key fingerprint.
func (m *Manager) StoreKeyPair(ctx context.Context, path string, alg kem.Algorithm, pk kem.PublicKey, sk kem.SecretKey) (string, error) {
	if m == nil {
		return "", errors.New("secrets: manager is nil")
	}
	if path == "" {
		return "", errors.New("secrets: path required")
	}
	if pk.Len() == 0 || sk.Len() == 0 {
		return "", errors.New("secrets: empty key pair")
	}

	pub := pk.Bytes()
	priv := sk.Bytes()
	defer memguard.WipeBytes(priv)

	fingerprint := Fingerprint(pub)
	err := m.PutKV(ctx, path, map[string]any{
		"algorithm":   alg.Identifier(),
		"public_key":  hex.EncodeToString(pub),
		"secret_key":  hex.EncodeToString(priv),
		"fingerprint": fingerprint,
	})
	if err != nil {
		return "", err
	}
	return fingerprint, nil
}

// StoredKeyPair is a key pair read back from Vault, borrowed against the
// handle it was validated for.
type StoredKeyPair struct {
	PublicKey   kem.PublicKeyRef
	SecretKey   kem.SecretKeyRef
	Fingerprint string
}

// LoadKeyPair reads the key pair at path and validates it against k: the
// algorithm must match, both keys must have k's declared lengths and the
// public key must match the stored fingerprint.
func (m *Manager) LoadKeyPair(ctx context.Context, path string, k *kem.Kem) (StoredKeyPair, error) {
	var zero StoredKeyPair
	if k == nil {
		return zero, errors.New("secrets: kem handle required")
	}
	payload, err := m.GetKV(ctx, path)
	if err != nil {
		return zero, err
	}

	if got := payload["algorithm"]; got != k.Algorithm().Identifier() {
		return zero, fmt.Errorf("%w: %q holds %q, handle is %s", ErrKeyMismatch, path, got, k.Algorithm())
	}
	pub, err := hex.DecodeString(payload["public_key"])
	if err != nil {
		return zero, fmt.Errorf("secrets: decode public key: %w", err)
	}
	priv, err := hex.DecodeString(payload["secret_key"])
	if err != nil {
		return zero, fmt.Errorf("secrets: decode secret key: %w", err)
	}

	pkRef, ok := k.PublicKeyFromBytes(pub)
	if !ok {
		memguard.WipeBytes(priv)
		return zero, fmt.Errorf("%w: public key is %d bytes, want %d", ErrKeyMismatch, len(pub), k.LengthPublicKey())
	}
	skRef, ok := k.SecretKeyFromBytes(priv)
	if !ok {
		memguard.WipeBytes(priv)
		return zero, fmt.Errorf("%w: secret key is %d bytes, want %d", ErrKeyMismatch, len(priv), k.LengthSecretKey())
	}
	fingerprint := Fingerprint(pub)
	if stored := payload["fingerprint"]; stored != "" && stored != fingerprint {
		memguard.WipeBytes(priv)
		return zero, fmt.Errorf("%w: fingerprint %s, stored %s", ErrKeyMismatch, fingerprint, stored)
	}
	return StoredKeyPair{PublicKey: pkRef, SecretKey: skRef, Fingerprint: fingerprint}, nil
}
