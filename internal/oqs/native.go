//go:build cgo && liboqs

package oqs

/*
#cgo pkg-config: liboqs
#include <stdlib.h>
#include <oqs/oqs.h>

static OQS_STATUS oqskem_keypair(const OQS_KEM *k, uint8_t *pk, uint8_t *sk) {
	return k->keypair(pk, sk);
}

static OQS_STATUS oqskem_encaps(const OQS_KEM *k, uint8_t *ct, uint8_t *ss, const uint8_t *pk) {
	return k->encaps(ct, ss, pk);
}

static OQS_STATUS oqskem_decaps(const OQS_KEM *k, uint8_t *ss, const uint8_t *ct, const uint8_t *sk) {
	return k->decaps(ss, ct, sk);
}
*/
import "C"

import (
	"unsafe"
)

// Init runs OQS_init. Call once before acquiring any descriptor.
func Init() {
	C.OQS_init()
}

// Destroy runs OQS_destroy, releasing liboqs process-wide state.
func Destroy() {
	C.OQS_destroy()
}

// Backend names the linked implementation.
func Backend() string { return "liboqs" }

// IsEnabled asks liboqs whether id was compiled in.
func IsEnabled(id string) bool {
	cid := C.CString(id)
	defer C.free(unsafe.Pointer(cid))
	return C.OQS_KEM_alg_is_enabled(cid) == 1
}

// New acquires an OQS_KEM for id, or nil when liboqs does not provide it.
func New(id string) *Descriptor {
	cid := C.CString(id)
	defer C.free(unsafe.Pointer(cid))
	k := C.OQS_KEM_new(cid)
	if k == nil {
		return nil
	}
	d := &Descriptor{
		MethodName:         C.GoString(k.method_name),
		Version:            C.GoString(k.alg_version),
		ClaimedNISTLevel:   uint8(k.claimed_nist_level),
		INDCCA:             bool(k.ind_cca),
		LengthPublicKey:    int(k.length_public_key),
		LengthSecretKey:    int(k.length_secret_key),
		LengthCiphertext:   int(k.length_ciphertext),
		LengthSharedSecret: int(k.length_shared_secret),
		Keypair: func(pk, sk []byte) Status {
			return Status(C.oqskem_keypair(k, ptr(pk), ptr(sk)))
		},
		Encaps: func(ct, ss, pk []byte) Status {
			return Status(C.oqskem_encaps(k, ptr(ct), ptr(ss), ptr(pk)))
		},
		Decaps: func(ss, ct, sk []byte) Status {
			return Status(C.oqskem_decaps(k, ptr(ss), ptr(ct), ptr(sk)))
		},
	}
	// Upstream liboqs exposes no split encapsulation and no per-algorithm
	// init hooks; those entries stay nil.
	return track(d, func() { C.OQS_KEM_free(k) })
}

// ptr hands b to C for the duration of one synchronous call. The slice
// holds no Go pointers, so cgo allows it without copying.
func ptr(b []byte) *C.uint8_t {
	if len(b) == 0 {
		return nil
	}
	return (*C.uint8_t)(unsafe.Pointer(&b[0]))
}
