// Package syserr defines the typed errors surfaced to user-level callers
// by capability invocations, plus the lookup faults produced by page
// table walks. Decode-phase failures carry zero side effects, so every
// error here is fully recoverable by the caller.
package syserr

import (
	"errors"
	"fmt"
)

var (
	// ErrAlignment is returned when a virtual address is not aligned
	// to the requested page-size class.
	ErrAlignment = errors.New("alignment error")

	// ErrTruncatedMessage is returned when an invocation carries too
	// few arguments or is missing an extra capability.
	ErrTruncatedMessage = errors.New("truncated message")

	// ErrIllegalOperation is returned for invocation labels the
	// capability type does not support.
	ErrIllegalOperation = errors.New("illegal operation")

	// ErrDeleteFirst is returned when no free ASID or pool slot
	// exists; the caller must delete one before retrying.
	ErrDeleteFirst = errors.New("delete first")

	// ErrRevokeFirst is returned when an untyped capability still has
	// live derived children and cannot be retyped.
	ErrRevokeFirst = errors.New("revoke first")

	// ErrInvalidRoot is the lookup fault for an ASID whose directory
	// slot is empty, or a null table root.
	ErrInvalidRoot = errors.New("invalid root")
)

// MissingCapabilityError is the lookup fault for a walk that stopped at
// an absent level. BitsLeft is the page-size class (in address bits) of
// the level that was missing, distinguishing which level was empty.
type MissingCapabilityError struct {
	BitsLeft uint
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("missing capability at %d bits left", e.BitsLeft)
}

// InvalidCapabilityError reports a capability that failed validation:
// wrong type, stale root reference, or inconsistent mapping state.
// Index identifies which capability of the invocation was at fault
// (0 = the invoked capability, 1+ = extra capabilities).
type InvalidCapabilityError struct {
	Index int
}

func (e *InvalidCapabilityError) Error() string {
	return fmt.Sprintf("invalid capability %d", e.Index)
}

// InvalidArgumentError reports an invocation argument outside its legal
// range, such as a virtual address at or above the kernel boundary.
type InvalidArgumentError struct {
	Index int
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %d", e.Index)
}

// FailedLookupError wraps a lookup fault encountered while validating
// an invocation. WasSource reports whether the faulting address space
// was the source of a transfer; mapping invocations always report the
// destination.
type FailedLookupError struct {
	WasSource bool
	Fault     error
}

func (e *FailedLookupError) Error() string {
	return fmt.Sprintf("failed lookup (source=%v): %v", e.WasSource, e.Fault)
}

func (e *FailedLookupError) Unwrap() error { return e.Fault }
