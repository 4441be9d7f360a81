package kem

import (
	"fmt"
	"strings"

	"github.com/example/oqskem/internal/oqs"
)

// Algorithm identifies one KEM variant known to the native library.
//
// Knowing an algorithm does not mean it is usable: see IsEnabled.
type Algorithm uint16

// The catalog. Order is stable and matches Algorithms().
const (
	BikeL1 Algorithm = iota
	BikeL3
	ClassicMcEliece348864
	ClassicMcEliece348864f
	ClassicMcEliece460896
	ClassicMcEliece460896f
	ClassicMcEliece6688128
	ClassicMcEliece6688128f
	ClassicMcEliece6960119
	ClassicMcEliece6960119f
	ClassicMcEliece8192128
	ClassicMcEliece8192128f
	Hqc128
	Hqc192
	Hqc256
	Kyber512
	Kyber768
	Kyber1024
	Kyber512_90s
	Kyber768_90s
	Kyber1024_90s
	MLKEM512
	MLKEM768
	MLKEM1024
	NtruHps2048509
	NtruHps2048677
	NtruHps4096821
	NtruHps40961229
	NtruHrss701
	NtruHrss1373
	NtruPrimeNtrulpr653
	NtruPrimeNtrulpr761
	NtruPrimeNtrulpr857
	NtruPrimeNtrulpr1277
	NtruPrimeSntrup653
	NtruPrimeSntrup761
	NtruPrimeSntrup857
	NtruPrimeSntrup1277
	Lightsaber
	Saber
	Firesaber
	FrodoKem640Aes
	FrodoKem640Shake
	FrodoKem976Aes
	FrodoKem976Shake
	FrodoKem1344Aes
	FrodoKem1344Shake
	SidhP434
	SidhP503
	SidhP610
	SidhP751
	SidhP434Compressed
	SidhP503Compressed
	SidhP610Compressed
	SidhP751Compressed
	SikeP434
	SikeP503
	SikeP610
	SikeP751
	SikeP434Compressed
	SikeP503Compressed
	SikeP610Compressed
	SikeP751Compressed
	SikeP434Compressed1CCA
	SikeP503Compressed1CCA
	SikeP610Compressed1CCA
	SikeP751Compressed1CCA
	CsidhP512

	algorithmCount
)

type catalogEntry struct {
	id     string
	family string
}

// catalog is indexed by Algorithm. Its length is pinned to algorithmCount, so
// a new constant without an entry shows up as an empty identifier in tests.
var catalog = [algorithmCount]catalogEntry{
	BikeL1:                  {"BIKE-L1", "BIKE"},
	BikeL3:                  {"BIKE-L3", "BIKE"},
	ClassicMcEliece348864:   {"Classic-McEliece-348864", "Classic McEliece"},
	ClassicMcEliece348864f:  {"Classic-McEliece-348864f", "Classic McEliece"},
	ClassicMcEliece460896:   {"Classic-McEliece-460896", "Classic McEliece"},
	ClassicMcEliece460896f:  {"Classic-McEliece-460896f", "Classic McEliece"},
	ClassicMcEliece6688128:  {"Classic-McEliece-6688128", "Classic McEliece"},
	ClassicMcEliece6688128f: {"Classic-McEliece-6688128f", "Classic McEliece"},
	ClassicMcEliece6960119:  {"Classic-McEliece-6960119", "Classic McEliece"},
	ClassicMcEliece6960119f: {"Classic-McEliece-6960119f", "Classic McEliece"},
	ClassicMcEliece8192128:  {"Classic-McEliece-8192128", "Classic McEliece"},
	ClassicMcEliece8192128f: {"Classic-McEliece-8192128f", "Classic McEliece"},
	Hqc128:                  {"HQC-128", "HQC"},
	Hqc192:                  {"HQC-192", "HQC"},
	Hqc256:                  {"HQC-256", "HQC"},
	Kyber512:                {"Kyber512", "Kyber"},
	Kyber768:                {"Kyber768", "Kyber"},
	Kyber1024:               {"Kyber1024", "Kyber"},
	Kyber512_90s:            {"Kyber512-90s", "Kyber"},
	Kyber768_90s:            {"Kyber768-90s", "Kyber"},
	Kyber1024_90s:           {"Kyber1024-90s", "Kyber"},
	MLKEM512:                {"ML-KEM-512", "ML-KEM"},
	MLKEM768:                {"ML-KEM-768", "ML-KEM"},
	MLKEM1024:               {"ML-KEM-1024", "ML-KEM"},
	NtruHps2048509:          {"NTRU-HPS-2048-509", "NTRU"},
	NtruHps2048677:          {"NTRU-HPS-2048-677", "NTRU"},
	NtruHps4096821:          {"NTRU-HPS-4096-821", "NTRU"},
	NtruHps40961229:         {"NTRU-HPS-4096-1229", "NTRU"},
	NtruHrss701:             {"NTRU-HRSS-701", "NTRU"},
	NtruHrss1373:            {"NTRU-HRSS-1373", "NTRU"},
	NtruPrimeNtrulpr653:     {"ntrulpr653", "NTRU Prime"},
	NtruPrimeNtrulpr761:     {"ntrulpr761", "NTRU Prime"},
	NtruPrimeNtrulpr857:     {"ntrulpr857", "NTRU Prime"},
	NtruPrimeNtrulpr1277:    {"ntrulpr1277", "NTRU Prime"},
	NtruPrimeSntrup653:      {"sntrup653", "NTRU Prime"},
	NtruPrimeSntrup761:      {"sntrup761", "NTRU Prime"},
	NtruPrimeSntrup857:      {"sntrup857", "NTRU Prime"},
	NtruPrimeSntrup1277:     {"sntrup1277", "NTRU Prime"},
	Lightsaber:              {"LightSaber-KEM", "Saber"},
	Saber:                   {"Saber-KEM", "Saber"},
	Firesaber:               {"FireSaber-KEM", "Saber"},
	FrodoKem640Aes:          {"FrodoKEM-640-AES", "FrodoKEM"},
	FrodoKem640Shake:        {"FrodoKEM-640-SHAKE", "FrodoKEM"},
	FrodoKem976Aes:          {"FrodoKEM-976-AES", "FrodoKEM"},
	FrodoKem976Shake:        {"FrodoKEM-976-SHAKE", "FrodoKEM"},
	FrodoKem1344Aes:         {"FrodoKEM-1344-AES", "FrodoKEM"},
	FrodoKem1344Shake:       {"FrodoKEM-1344-SHAKE", "FrodoKEM"},
	SidhP434:                {"SIDH-p434", "SIDH"},
	SidhP503:                {"SIDH-p503", "SIDH"},
	SidhP610:                {"SIDH-p610", "SIDH"},
	SidhP751:                {"SIDH-p751", "SIDH"},
	SidhP434Compressed:      {"SIDH-p434-compressed", "SIDH"},
	SidhP503Compressed:      {"SIDH-p503-compressed", "SIDH"},
	SidhP610Compressed:      {"SIDH-p610-compressed", "SIDH"},
	SidhP751Compressed:      {"SIDH-p751-compressed", "SIDH"},
	SikeP434:                {"SIKE-p434", "SIKE"},
	SikeP503:                {"SIKE-p503", "SIKE"},
	SikeP610:                {"SIKE-p610", "SIKE"},
	SikeP751:                {"SIKE-p751", "SIKE"},
	SikeP434Compressed:      {"SIKE-p434-compressed", "SIKE"},
	SikeP503Compressed:      {"SIKE-p503-compressed", "SIKE"},
	SikeP610Compressed:      {"SIKE-p610-compressed", "SIKE"},
	SikeP751Compressed:      {"SIKE-p751-compressed", "SIKE"},
	SikeP434Compressed1CCA:  {"SIKE-p434-1cca-compressed", "SIKE"},
	SikeP503Compressed1CCA:  {"SIKE-p503-1cca-compressed", "SIKE"},
	SikeP610Compressed1CCA:  {"SIKE-p610-1cca-compressed", "SIKE"},
	SikeP751Compressed1CCA:  {"SIKE-p751-1cca-compressed", "SIKE"},
	CsidhP512:               {"CSIDH-p512", "CSIDH"},
}

var byIdentifier = func() map[string]Algorithm {
	m := make(map[string]Algorithm, len(catalog))
	for i, e := range catalog {
		m[strings.ToLower(e.id)] = Algorithm(i)
	}
	return m
}()

// Algorithms returns every catalog entry in declaration order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, algorithmCount)
	for i := range out {
		out[i] = Algorithm(i)
	}
	return out
}

// ParseAlgorithm looks an algorithm up by its native identifier. Matching is
// case-insensitive.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg, ok := byIdentifier[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return alg, nil
}

// Identifier returns the text the native library uses for a.
func (a Algorithm) Identifier() string {
	if !a.valid() {
		return ""
	}
	return catalog[a].id
}

// Family groups related parameter sets, e.g. "Kyber" or "SIKE".
func (a Algorithm) Family() string {
	if !a.valid() {
		return ""
	}
	return catalog[a].family
}

// String returns the display name, which is the native identifier.
func (a Algorithm) String() string {
	if !a.valid() {
		return fmt.Sprintf("Algorithm(%d)", uint16(a))
	}
	return catalog[a].id
}

// IsEnabled reports whether the linked library provides a. The answer comes
// from the library on every call.
func (a Algorithm) IsEnabled() bool {
	if !a.valid() {
		return false
	}
	return oqs.IsEnabled(catalog[a].id)
}

// MarshalText encodes a as its identifier.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, uint16(a))
	}
	return []byte(catalog[a].id), nil
}

// UnmarshalText decodes an identifier produced by MarshalText.
func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}

func (a Algorithm) valid() bool {
	return a < algorithmCount
}
