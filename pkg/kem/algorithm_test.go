package kem

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogComplete(t *testing.T) {
	algs := Algorithms()
	require.Len(t, algs, int(algorithmCount))

	seen := make(map[string]Algorithm, len(algs))
	for i, alg := range algs {
		require.Equal(t, Algorithm(i), alg)
		require.NotEmpty(t, alg.Identifier(), "algorithm %d has no identifier", i)
		require.NotEmpty(t, alg.Family(), "algorithm %s has no family", alg)
		require.Equal(t, alg.Identifier(), alg.String())

		prev, dup := seen[alg.Identifier()]
		require.False(t, dup, "%s shares its identifier with %d", alg, prev)
		seen[alg.Identifier()] = alg
	}
}

func TestIdentifierStable(t *testing.T) {
	require.Equal(t, "Kyber512", Kyber512.Identifier())
	require.Equal(t, "Kyber768-90s", Kyber768_90s.Identifier())
	require.Equal(t, "ML-KEM-768", MLKEM768.Identifier())
	require.Equal(t, "sntrup761", NtruPrimeSntrup761.Identifier())
	require.Equal(t, "SIKE-p434-1cca-compressed", SikeP434Compressed1CCA.Identifier())
	require.Equal(t, "CSIDH-p512", CsidhP512.Identifier())
}

func TestUnknownTag(t *testing.T) {
	bogus := Algorithm(algorithmCount + 7)
	require.Empty(t, bogus.Identifier())
	require.False(t, bogus.IsEnabled())
	require.Equal(t, fmt.Sprintf("Algorithm(%d)", uint16(bogus)), bogus.String())

	_, err := New(bogus)
	require.ErrorIs(t, err, ErrAlgorithmDisabled)

	_, err = bogus.MarshalText()
	require.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestParseAlgorithm(t *testing.T) {
	for _, alg := range Algorithms() {
		got, err := ParseAlgorithm(alg.Identifier())
		require.NoError(t, err)
		require.Equal(t, alg, got)
	}

	got, err := ParseAlgorithm("  ml-kem-1024 ")
	require.NoError(t, err)
	require.Equal(t, MLKEM1024, got)

	_, err = ParseAlgorithm("RSA-2048")
	require.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestAlgorithmJSON(t *testing.T) {
	type config struct {
		Algorithm Algorithm `json:"algorithm"`
	}
	raw, err := json.Marshal(config{Algorithm: FrodoKem640Shake})
	require.NoError(t, err)
	require.JSONEq(t, `{"algorithm":"FrodoKEM-640-SHAKE"}`, string(raw))

	var decoded config
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, FrodoKem640Shake, decoded.Algorithm)

	require.Error(t, json.Unmarshal([]byte(`{"algorithm":"nope"}`), &decoded))
}

func TestIsEnabledMatchesNew(t *testing.T) {
	for _, alg := range Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			k, err := New(alg)
			if alg.IsEnabled() {
				require.NoError(t, err)
				require.NotNil(t, k)
				require.Equal(t, alg, k.Algorithm())
				require.NoError(t, k.Close())
				return
			}
			require.ErrorIs(t, err, ErrAlgorithmDisabled)
			require.Nil(t, k)
		})
	}
}
