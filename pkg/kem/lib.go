package kem

import "github.com/example/oqskem/internal/oqs"

// Init prepares the native library. Call it once per process before the
// first New.
func Init() { oqs.Init() }

// Cleanup releases process-wide library state. Call it after every handle
// has been closed. Repeated calls are harmless.
func Cleanup() { oqs.Destroy() }

// Backend names the implementation linked into this build: "liboqs" when
// built with the liboqs tag and cgo, "builtin" otherwise.
func Backend() string { return oqs.Backend() }
