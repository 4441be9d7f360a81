package kem

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRawBufferTwoPhase(t *testing.T) {
	r := allocate(16)
	require.Len(t, r.b, 0)
	require.Len(t, r.spare(), 16)

	copy(r.spare(), "0123456789abcdef")
	o := r.commit()
	require.Equal(t, []byte("0123456789abcdef"), o.b)
	require.Panics(t, func() { r.commit() })

	// discard after commit leaves the committed bytes alone.
	r.discard()
	require.Equal(t, []byte("0123456789abcdef"), o.b)
}

func TestRawBufferDiscardWipes(t *testing.T) {
	r := allocate(8)
	spare := r.spare()
	copy(spare, "secret!!")
	r.discard()
	require.Equal(t, make([]byte, 8), spare)
	require.Nil(t, r.b)
}

func TestOwnedBytesIsCopy(t *testing.T) {
	pk := PublicKey{owned{b: []byte{1, 2, 3}}}
	b := pk.Bytes()
	b[0] = 9
	require.Equal(t, []byte{1, 2, 3}, pk.Bytes())
	require.Equal(t, 3, pk.Ref().Len())
}

func TestEqual(t *testing.T) {
	a := SharedSecret{owned{b: []byte{1, 2, 3}}}
	require.True(t, a.Equal(SharedSecret{owned{b: []byte{1, 2, 3}}}))
	require.False(t, a.Equal(SharedSecret{owned{b: []byte{1, 2, 4}}}))
	require.False(t, a.Equal(SharedSecret{owned{b: []byte{1, 2}}}))
	require.True(t, SharedSecret{}.Equal(SharedSecret{}))
}

func TestWipe(t *testing.T) {
	sk := SecretKey{owned{b: []byte{1, 2, 3, 4}}}
	view := sk.Ref()
	sk.Wipe()
	require.Equal(t, []byte{0, 0, 0, 0}, view.Bytes())

	ss := SharedSecret{owned{b: []byte{5, 6}}}
	ss.Wipe()
	require.Equal(t, []byte{0, 0}, ss.Bytes())

	es := EphemeralSecret{owned{b: []byte{7}}}
	es.Wipe()
	require.Equal(t, []byte{0}, es.Bytes())
}

func TestBuffersDoNotFormatContents(t *testing.T) {
	sk := SecretKey{owned{b: []byte("do-not-print")}}
	require.Equal(t, "SecretKey(12 bytes)", fmt.Sprint(sk))
	require.Equal(t, "SecretKeyRef(12 bytes)", fmt.Sprintf("%v", sk.Ref()))
	require.NotContains(t, fmt.Sprintf("%s", sk), "do-not-print")
}

func TestKindString(t *testing.T) {
	require.Equal(t, "public key", KindPublicKey.String())
	require.Equal(t, "ephemeral secret", KindEphemeralSecret.String())
	require.Equal(t, "Kind(9)", Kind(9).String())
}
