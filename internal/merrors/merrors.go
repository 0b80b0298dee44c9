// Package merrors defines the typed error taxonomy shared across the matchmaking core.
package merrors

import (
	"errors"
	"fmt"
)

// Kind classifies a core error so callers can branch on failure category
// without string-matching messages.
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindDuplicateAdmission    Kind = "duplicate_admission"
	KindCapacity              Kind = "capacity"
	KindInvalidTransition     Kind = "invalid_transition"
	KindConstraintUnsatisfied Kind = "constraint_unsatisfied"
	KindPersistence           Kind = "persistence"
	KindOperational           Kind = "operational"
)

// Error is the concrete error type returned by the core. Op names the
// operation that failed (e.g. "queue.JoinSolo"); Err is the underlying cause,
// if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, so callers can
// do errors.Is(err, merrors.ErrNotFound) style checks against the sentinels
// below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an *Error for op failing with kind, optionally wrapping err.
func New(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinels usable with errors.Is(err, merrors.ErrNotFound).
var (
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrDuplicateAdmission    = &Error{Kind: KindDuplicateAdmission}
	ErrCapacity              = &Error{Kind: KindCapacity}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition}
	ErrConstraintUnsatisfied = &Error{Kind: KindConstraintUnsatisfied}
	ErrPersistence           = &Error{Kind: KindPersistence}
	ErrOperational           = &Error{Kind: KindOperational}
)
