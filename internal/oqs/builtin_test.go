//go:build !(cgo && liboqs)

package oqs

import (
	"bytes"
	"testing"
)

func TestBuiltinDisabledAlgorithm(t *testing.T) {
	if IsEnabled("BIKE-L1") {
		t.Fatal("BIKE-L1 must not be enabled in the builtin backend")
	}
	if d := New("BIKE-L1"); d != nil {
		t.Fatal("expected nil descriptor for disabled algorithm")
	}
}

func TestBuiltinDescriptorLengths(t *testing.T) {
	d := New("Kyber512")
	if d == nil {
		t.Fatal("Kyber512 must be available")
	}
	defer Free(d)

	if d.LengthPublicKey != 800 || d.LengthSecretKey != 1632 || d.LengthCiphertext != 768 || d.LengthSharedSecret != 32 {
		t.Fatalf("unexpected Kyber512 lengths: %+v", d)
	}
	if d.LengthEphemeralSecret != 32 {
		t.Fatalf("unexpected ephemeral length %d", d.LengthEphemeralSecret)
	}
	if d.ClaimedNISTLevel != 1 || !d.INDCCA {
		t.Fatalf("unexpected metadata level=%d indcca=%v", d.ClaimedNISTLevel, d.INDCCA)
	}
}

func TestBuiltinSplitRejectsForeignCiphertext(t *testing.T) {
	d := New("ML-KEM-768")
	if d == nil {
		t.Fatal("ML-KEM-768 must be available")
	}
	defer Free(d)

	pk := make([]byte, d.LengthPublicKey)
	sk := make([]byte, d.LengthSecretKey)
	if st := d.Keypair(pk, sk); !st.OK() {
		t.Fatalf("keypair status %d", st)
	}

	ct := make([]byte, d.LengthCiphertext)
	es := make([]byte, d.LengthEphemeralSecret)
	if st := d.EncapsCiphertext(ct, es, pk); !st.OK() {
		t.Fatalf("encaps ciphertext status %d", st)
	}

	ss := make([]byte, d.LengthSharedSecret)
	if st := d.EncapsSharedSecret(ss, ct, es, pk); !st.OK() {
		t.Fatalf("encaps shared secret status %d", st)
	}

	want := make([]byte, d.LengthSharedSecret)
	if st := d.Decaps(want, ct, sk); !st.OK() {
		t.Fatalf("decaps status %d", st)
	}
	if !bytes.Equal(ss, want) {
		t.Fatal("split path shared secret differs from decapsulation")
	}

	ct[0] ^= 0xff
	if st := d.EncapsSharedSecret(ss, ct, es, pk); st.OK() {
		t.Fatal("expected failure for a ciphertext the seed does not reproduce")
	}
}

func TestFreeReleasesOnce(t *testing.T) {
	before := Outstanding()
	d := New("Kyber768")
	if d == nil {
		t.Fatal("Kyber768 must be available")
	}
	if got := Outstanding(); got != before+1 {
		t.Fatalf("outstanding = %d, want %d", got, before+1)
	}
	Free(d)
	Free(d)
	if got := Outstanding(); got != before {
		t.Fatalf("outstanding = %d after double free, want %d", got, before)
	}
}
