package kem

import (
	"errors"
	"fmt"

	"github.com/example/oqskem/internal/oqs"
)

var (
	// ErrAlgorithmDisabled is returned by New when the linked library does
	// not provide the requested algorithm.
	ErrAlgorithmDisabled = errors.New("kem: algorithm disabled")

	// ErrInvalidLength is returned when a caller-supplied buffer does not
	// have the handle's declared length for its kind.
	ErrInvalidLength = errors.New("kem: invalid buffer length")

	// ErrOperationFailed is returned when a native entry point reports a
	// non-success status. The library gives no further detail.
	ErrOperationFailed = errors.New("kem: operation failed")

	// ErrNotSupported is returned when the descriptor lacks the entry point
	// an operation needs.
	ErrNotSupported = errors.New("kem: operation not supported")

	// ErrClosed is returned by every operation on a closed handle.
	ErrClosed = errors.New("kem: handle closed")

	// ErrUnknownAlgorithm is returned when a name is not in the catalog.
	ErrUnknownAlgorithm = errors.New("kem: unknown algorithm")
)

// LengthError names the single input whose length was rejected.
type LengthError struct {
	Kind Kind
	Want int
	Got  int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("kem: invalid %s length: want %d, got %d", e.Kind, e.Want, e.Got)
}

// Is matches ErrInvalidLength.
func (e *LengthError) Is(target error) bool {
	return target == ErrInvalidLength
}

// StatusError carries the native status of a failed call.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kem: %s failed with status %d", e.Op, e.Status)
}

// Is matches ErrOperationFailed.
func (e *StatusError) Is(target error) bool {
	return target == ErrOperationFailed
}

// statusToError translates a native status; success maps to nil.
func statusToError(op string, status oqs.Status) error {
	if status.OK() {
		return nil
	}
	return &StatusError{Op: op, Status: int(status)}
}

func checkLength(kind Kind, want int, b []byte) error {
	if len(b) != want {
		return &LengthError{Kind: kind, Want: want, Got: len(b)}
	}
	return nil
}
