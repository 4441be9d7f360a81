// Package buildinfo reports the version and KEM backend of the running
// binary for telemetry resources and CLI output.
package buildinfo

import (
	"os"
	"runtime/debug"

	"github.com/example/oqskem/pkg/kem"
)

// Version prefers BUILD_VERSION, then the main module version, then "dev".
func Version() string {
	if v := os.Getenv("BUILD_VERSION"); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Backend names the linked KEM implementation.
func Backend() string {
	return kem.Backend()
}
