// Package oqs is the boundary with the native KEM library.
//
// Everything above this package treats a Descriptor as an opaque, read-only
// table: declared buffer lengths, algorithm metadata and the entry points
// that write into caller-supplied buffers. Entry points trust the lengths of
// the slices they receive; validating them is the caller's job.
//
// Two backends satisfy the same function set. Building with
// `-tags liboqs` (and cgo enabled) links liboqs through pkg-config. Any
// other build uses the builtin table backed by cloudflare/circl, where
// algorithms circl does not implement report as disabled.
package oqs

import "sync/atomic"

// Status is the integer result of a native entry point.
type Status int

const (
	StatusSuccess Status = 0
	StatusError   Status = -1
)

// OK reports whether the status denotes success.
func (s Status) OK() bool { return s == StatusSuccess }

// Descriptor mirrors one acquired OQS_KEM structure.
type Descriptor struct {
	MethodName       string
	Version          string
	ClaimedNISTLevel uint8
	INDCCA           bool

	LengthPublicKey       int
	LengthSecretKey       int
	LengthCiphertext      int
	LengthSharedSecret    int
	LengthEphemeralSecret int

	Keypair            func(pk, sk []byte) Status
	Encaps             func(ct, ss, pk []byte) Status
	EncapsCiphertext   func(ct, es, pk []byte) Status
	EncapsSharedSecret func(ss, ct, es, pk []byte) Status
	Decaps             func(ss, ct, sk []byte) Status

	// KeypairAsync and EncapsAsync are alternate entry points for the same
	// operations. Callers use them only when the primary entry is nil.
	KeypairAsync func(pk, sk []byte) Status
	EncapsAsync  func(ct, ss, pk []byte) Status

	// Init and Deinit are optional per-algorithm hooks.
	Init   func() Status
	Deinit func() Status

	release func()
}

var outstanding atomic.Int64

// track arms d so that Free runs release and the outstanding count drops.
func track(d *Descriptor, release func()) *Descriptor {
	outstanding.Add(1)
	d.release = func() {
		if release != nil {
			release()
		}
		outstanding.Add(-1)
	}
	return d
}

// Free releases the native resources behind d. It must be called exactly
// once per descriptor returned by New; later calls are ignored.
func Free(d *Descriptor) {
	if d == nil || d.release == nil {
		return
	}
	release := d.release
	d.release = nil
	release()
}

// Outstanding returns the number of acquired descriptors not yet freed.
func Outstanding() int64 {
	return outstanding.Load()
}
