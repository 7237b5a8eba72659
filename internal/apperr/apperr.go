// Package apperr defines the error taxonomy shared by the ledger packages.
//
// Every failure the ledger reports to callers is an *Error carrying a Kind.
// Callers branch with errors.Is against the kind sentinels:
//
//	if errors.Is(err, apperr.ErrConflict) { ... }
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how callers should react to it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is a malformed expense or split, or a bad argument.
	KindValidation
	// KindInvariant means derived data broke a ledger invariant. Always fatal.
	KindInvariant
	// KindConflict is a duplicate pending claim, an over-claim, or a transition out of a terminal state.
	KindConflict
	// KindAuthorization is the wrong member attempting a lifecycle transition.
	KindAuthorization
	// KindNotFound is an unknown group, member or settlement.
	KindNotFound
	// KindTransient is a failed persistence call. Retryable.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvariant:
		return "invariant_violation"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient_network"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrValidation    = errors.New("validation error")
	ErrInvariant     = errors.New("invariant violation")
	ErrConflict      = errors.New("conflict")
	ErrAuthorization = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient network error")
)

var sentinels = map[Kind]error{
	KindValidation:    ErrValidation,
	KindInvariant:     ErrInvariant,
	KindConflict:      ErrConflict,
	KindAuthorization: ErrAuthorization,
	KindNotFound:      ErrNotFound,
	KindTransient:     ErrTransient,
}

// Error is a classified ledger error.
type Error struct {
	Kind Kind
	// Op names the operation that failed (e.g. "calculator.Aggregate").
	Op  string
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation returns a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return newf(KindValidation, op, format, args...)
}

// Invariant returns a KindInvariant error.
func Invariant(op, format string, args ...any) *Error {
	return newf(KindInvariant, op, format, args...)
}

// Conflict returns a KindConflict error.
func Conflict(op, format string, args ...any) *Error {
	return newf(KindConflict, op, format, args...)
}

// Authorization returns a KindAuthorization error.
func Authorization(op, format string, args ...any) *Error {
	return newf(KindAuthorization, op, format, args...)
}

// NotFound returns a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return newf(KindNotFound, op, format, args...)
}

// Transient wraps err as a retryable KindTransient error.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether err may succeed if the call is repeated.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
