package kem

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/example/oqskem/internal/oqs"
)

func enabledAlgorithms(t *testing.T) []Algorithm {
	t.Helper()
	var out []Algorithm
	for _, alg := range Algorithms() {
		if alg.IsEnabled() {
			out = append(out, alg)
		}
	}
	if len(out) == 0 {
		t.Skip("no algorithm enabled in this build")
	}
	return out
}

func newHandle(t *testing.T, alg Algorithm) *Kem {
	t.Helper()
	k, err := New(alg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, k.Close()) })
	return k
}

func TestRoundTrip(t *testing.T) {
	for _, alg := range enabledAlgorithms(t) {
		t.Run(alg.String(), func(t *testing.T) {
			k := newHandle(t, alg)

			pk, sk, err := k.Keypair()
			require.NoError(t, err)
			require.Equal(t, k.LengthPublicKey(), pk.Len())
			require.Equal(t, k.LengthSecretKey(), sk.Len())

			ct, ss, err := k.Encapsulate(pk)
			require.NoError(t, err)
			require.Equal(t, k.LengthCiphertext(), ct.Len())
			require.Equal(t, k.LengthSharedSecret(), ss.Len())

			got, err := k.Decapsulate(sk, ct)
			require.NoError(t, err)
			require.True(t, ss.Equal(got), "decapsulated secret differs")
		})
	}
}

func TestRoundTripWithBorrowedBuffers(t *testing.T) {
	k := newHandle(t, enabledAlgorithms(t)[0])

	pk, sk, err := k.Keypair()
	require.NoError(t, err)

	pkRef, ok := k.PublicKeyFromBytes(pk.Bytes())
	require.True(t, ok)
	ct, ss, err := k.Encapsulate(pkRef)
	require.NoError(t, err)

	skRef, ok := k.SecretKeyFromBytes(sk.Bytes())
	require.True(t, ok)
	ctRef, ok := k.CiphertextFromBytes(ct.Bytes())
	require.True(t, ok)
	got, err := k.Decapsulate(skRef, ctRef)
	require.NoError(t, err)
	require.Equal(t, ss.Bytes(), got.Bytes())

	ssRef, ok := k.SharedSecretFromBytes(got.Bytes())
	require.True(t, ok)
	require.Equal(t, got.Len(), ssRef.Len())
}

func TestSplitEncapsulation(t *testing.T) {
	for _, alg := range enabledAlgorithms(t) {
		t.Run(alg.String(), func(t *testing.T) {
			k := newHandle(t, alg)
			pk, sk, err := k.Keypair()
			require.NoError(t, err)

			if !k.SupportsSplit() {
				_, _, err := k.EncapsulateSplit(pk)
				require.ErrorIs(t, err, ErrNotSupported)
				return
			}

			ct, es, err := k.EncapsulateSplit(pk)
			require.NoError(t, err)
			require.Equal(t, k.LengthCiphertext(), ct.Len())
			require.Equal(t, k.LengthEphemeralSecret(), es.Len())

			ss, err := k.FinalizeSharedSecret(ct, es, pk)
			require.NoError(t, err)
			require.Equal(t, k.LengthSharedSecret(), ss.Len())

			got, err := k.Decapsulate(sk, ct)
			require.NoError(t, err)
			require.True(t, ss.Equal(got), "split path disagrees with decapsulation")
		})
	}
}

func TestFinalizeRejectsForeignCiphertext(t *testing.T) {
	k := newHandle(t, enabledAlgorithms(t)[0])
	if !k.SupportsSplit() {
		t.Skip("split encapsulation not available")
	}
	pk, _, err := k.Keypair()
	require.NoError(t, err)
	_, es, err := k.EncapsulateSplit(pk)
	require.NoError(t, err)
	other, _, err := k.Encapsulate(pk)
	require.NoError(t, err)

	ss, err := k.FinalizeSharedSecret(other, es, pk)
	require.ErrorIs(t, err, ErrOperationFailed)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, "encaps_shared_secret", statusErr.Op)
	require.Zero(t, ss.Len())
}

func TestKyber512Scenario(t *testing.T) {
	if !Kyber512.IsEnabled() {
		t.Skip("Kyber512 disabled")
	}
	k := newHandle(t, Kyber512)
	require.Equal(t, 800, k.LengthPublicKey())
	require.Equal(t, 768, k.LengthCiphertext())
	require.Equal(t, 32, k.LengthSharedSecret())
	require.Equal(t, uint8(1), k.ClaimedNISTLevel())
	require.True(t, k.IsINDCCA())
	require.NotEmpty(t, k.Version())

	pk, sk, err := k.Keypair()
	require.NoError(t, err)
	require.Len(t, pk.Bytes(), 800)

	ct, ss, err := k.Encapsulate(pk)
	require.NoError(t, err)
	require.Len(t, ct.Bytes(), 768)
	require.Len(t, ss.Bytes(), 32)

	got, err := k.Decapsulate(sk, ct)
	require.NoError(t, err)
	require.Equal(t, ss.Bytes(), got.Bytes())

	short := pk.Bytes()[:799]
	_, ok := k.PublicKeyFromBytes(short)
	require.False(t, ok)
}

func TestLengthAccessors(t *testing.T) {
	for _, alg := range enabledAlgorithms(t) {
		k := newHandle(t, alg)
		require.Equal(t, k.Length(KindPublicKey), k.LengthPublicKey(), alg.String())
		require.Equal(t, k.Length(KindSecretKey), k.LengthSecretKey(), alg.String())
		require.Equal(t, k.Length(KindCiphertext), k.LengthCiphertext(), alg.String())
		require.Equal(t, k.Length(KindSharedSecret), k.LengthSharedSecret(), alg.String())
		require.Equal(t, k.Length(KindEphemeralSecret), k.LengthEphemeralSecret(), alg.String())
		require.Positive(t, k.LengthPublicKey(), alg.String())
	}
}

func TestBackendHooksAreNoOps(t *testing.T) {
	for _, alg := range enabledAlgorithms(t) {
		k := newHandle(t, alg)
		require.NoError(t, k.Init(), alg.String())
		require.NoError(t, k.Deinit(), alg.String())

		pk, sk, err := k.Keypair()
		require.NoError(t, err, alg.String())
		ct, ss, err := k.Encapsulate(pk)
		require.NoError(t, err, alg.String())
		got, err := k.Decapsulate(sk, ct)
		require.NoError(t, err, alg.String())
		require.Equal(t, ss.Bytes(), got.Bytes(), alg.String())
	}
}

func TestImplicitRejection(t *testing.T) {
	if !MLKEM768.IsEnabled() {
		t.Skip("ML-KEM-768 disabled")
	}
	k := newHandle(t, MLKEM768)
	pk, sk, err := k.Keypair()
	require.NoError(t, err)
	ct, ss, err := k.Encapsulate(pk)
	require.NoError(t, err)

	tampered := ct.Bytes()
	tampered[len(tampered)/2] ^= 0x01
	ctRef, ok := k.CiphertextFromBytes(tampered)
	require.True(t, ok)

	got, err := k.Decapsulate(sk, ctRef)
	require.NoError(t, err)
	require.Equal(t, k.LengthSharedSecret(), got.Len())
	require.False(t, ss.Equal(got))
}

func TestLengthValidation(t *testing.T) {
	alg := enabledAlgorithms(t)[0]
	k := newHandle(t, alg)
	pk, sk, err := k.Keypair()
	require.NoError(t, err)
	ct, _, err := k.Encapsulate(pk)
	require.NoError(t, err)

	for _, kind := range []Kind{KindPublicKey, KindSecretKey, KindCiphertext, KindSharedSecret, KindEphemeralSecret} {
		n := k.Length(kind)
		for _, size := range []int{n - 1, n + 1} {
			if size < 0 {
				continue
			}
			b := make([]byte, size)
			var ok bool
			switch kind {
			case KindPublicKey:
				_, ok = k.PublicKeyFromBytes(b)
			case KindSecretKey:
				_, ok = k.SecretKeyFromBytes(b)
			case KindCiphertext:
				_, ok = k.CiphertextFromBytes(b)
			case KindSharedSecret:
				_, ok = k.SharedSecretFromBytes(b)
			case KindEphemeralSecret:
				_, ok = k.EphemeralSecretFromBytes(b)
			}
			require.False(t, ok, "%s of %d bytes accepted, want %d", kind, size, n)
		}
	}
	require.Equal(t, -1, k.Length(Kind(42)))

	// A zero Ref reaches the pipeline and must fail there.
	_, _, err = k.Encapsulate(PublicKeyRef{})
	assertLengthError(t, err, KindPublicKey, k.LengthPublicKey(), 0)

	_, err = k.Decapsulate(SecretKeyRef{}, ct)
	assertLengthError(t, err, KindSecretKey, k.LengthSecretKey(), 0)

	_, err = k.Decapsulate(sk, CiphertextRef{})
	assertLengthError(t, err, KindCiphertext, k.LengthCiphertext(), 0)

	// Secret key is checked before the ciphertext.
	_, err = k.Decapsulate(nil, nil)
	assertLengthError(t, err, KindSecretKey, k.LengthSecretKey(), 0)

	// Public key first, then ciphertext, then ephemeral secret.
	_, err = k.FinalizeSharedSecret(nil, nil, nil)
	assertLengthError(t, err, KindPublicKey, k.LengthPublicKey(), 0)
	_, err = k.FinalizeSharedSecret(nil, nil, pk)
	assertLengthError(t, err, KindCiphertext, k.LengthCiphertext(), 0)
	if k.LengthEphemeralSecret() > 0 {
		_, err = k.FinalizeSharedSecret(ct, nil, pk)
		assertLengthError(t, err, KindEphemeralSecret, k.LengthEphemeralSecret(), 0)
	}
}

func TestForeignHandleLengthsRejected(t *testing.T) {
	if !Kyber512.IsEnabled() || !Kyber1024.IsEnabled() {
		t.Skip("Kyber512 and Kyber1024 required")
	}
	small := newHandle(t, Kyber512)
	large := newHandle(t, Kyber1024)

	pk, _, err := small.Keypair()
	require.NoError(t, err)

	ct, ss, err := large.Encapsulate(pk)
	assertLengthError(t, err, KindPublicKey, large.LengthPublicKey(), small.LengthPublicKey())
	require.Zero(t, ct.Len())
	require.Zero(t, ss.Len())
}

func TestDisabledAlgorithm(t *testing.T) {
	var disabled []Algorithm
	for _, alg := range Algorithms() {
		if !alg.IsEnabled() {
			disabled = append(disabled, alg)
		}
	}
	if len(disabled) == 0 {
		t.Skip("every algorithm is enabled in this build")
	}

	before := oqs.Outstanding()
	for _, alg := range disabled {
		k, err := New(alg)
		require.ErrorIs(t, err, ErrAlgorithmDisabled, alg.String())
		require.Nil(t, k)
	}
	require.Equal(t, before, oqs.Outstanding())
}

func TestCloseReleasesOnce(t *testing.T) {
	alg := enabledAlgorithms(t)[0]
	before := oqs.Outstanding()

	k, err := New(alg)
	require.NoError(t, err)
	require.Equal(t, before+1, oqs.Outstanding())

	pk, sk, err := k.Keypair()
	require.NoError(t, err)

	require.NoError(t, k.Close())
	require.NoError(t, k.Close())
	require.Equal(t, before, oqs.Outstanding())

	_, _, err = k.Keypair()
	require.ErrorIs(t, err, ErrClosed)
	_, _, err = k.Encapsulate(pk)
	require.ErrorIs(t, err, ErrClosed)
	_, err = k.Decapsulate(sk, nil)
	require.ErrorIs(t, err, ErrClosed)
	_, _, err = k.EncapsulateSplit(pk)
	require.ErrorIs(t, err, ErrClosed)
	_, err = k.FinalizeSharedSecret(nil, nil, pk)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, k.Init(), ErrClosed)
	require.ErrorIs(t, k.Deinit(), ErrClosed)
	require.False(t, k.SupportsSplit())

	// Metadata survives Close.
	require.Equal(t, alg, k.Algorithm())
	require.Equal(t, pk.Len(), k.LengthPublicKey())
}

func TestConcurrentUse(t *testing.T) {
	k := newHandle(t, enabledAlgorithms(t)[0])
	pk, sk, err := k.Keypair()
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 4; j++ {
				ct, ss, err := k.Encapsulate(pk)
				if err != nil {
					return err
				}
				got, err := k.Decapsulate(sk, ct)
				if err != nil {
					return err
				}
				if !bytes.Equal(ss.Bytes(), got.Bytes()) {
					t.Error("shared secrets diverged under concurrency")
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestCloseWaitsForOperations(t *testing.T) {
	k, err := New(enabledAlgorithms(t)[0])
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, _, err := k.Keypair()
			if err != nil && err != ErrClosed {
				return err
			}
			return nil
		})
	}
	g.Go(k.Close)
	require.NoError(t, g.Wait())

	_, _, err = k.Keypair()
	require.ErrorIs(t, err, ErrClosed)
}

func assertLengthError(t *testing.T, err error, kind Kind, want, got int) {
	t.Helper()
	require.ErrorIs(t, err, ErrInvalidLength)
	var lengthErr *LengthError
	require.ErrorAs(t, err, &lengthErr)
	require.Equal(t, kind, lengthErr.Kind)
	require.Equal(t, want, lengthErr.Want)
	require.Equal(t, got, lengthErr.Got)
}
