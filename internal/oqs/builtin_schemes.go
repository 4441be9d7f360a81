//go:build !(cgo && liboqs)

package oqs

import (
	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/frodo/frodo640shake"
	"github.com/cloudflare/circl/kem/kyber/kyber1024"
	"github.com/cloudflare/circl/kem/kyber/kyber512"
	"github.com/cloudflare/circl/kem/kyber/kyber768"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/kem/sike/sikep434"
	"github.com/cloudflare/circl/kem/sike/sikep503"
	"github.com/cloudflare/circl/kem/sike/sikep751"
)

type builtinScheme struct {
	scheme kem.Scheme
	level  uint8
}

// builtinSchemes is keyed by liboqs method name.
var builtinSchemes = map[string]builtinScheme{
	"Kyber512":           {kyber512.Scheme(), 1},
	"Kyber768":           {kyber768.Scheme(), 3},
	"Kyber1024":          {kyber1024.Scheme(), 5},
	"ML-KEM-512":         {mlkem512.Scheme(), 1},
	"ML-KEM-768":         {mlkem768.Scheme(), 3},
	"ML-KEM-1024":        {mlkem1024.Scheme(), 5},
	"FrodoKEM-640-SHAKE": {frodo640shake.Scheme(), 1},
	"SIKE-p434":          {sikep434.Scheme(), 1},
	"SIKE-p503":          {sikep503.Scheme(), 2},
	"SIKE-p751":          {sikep751.Scheme(), 5},
}
