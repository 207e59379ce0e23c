package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the backend can hand to a caller.
type ErrorKind string

const (
	// ErrValidation covers missing or malformed input; the request never
	// reaches the ledger.
	ErrValidation ErrorKind = "validation"
	// ErrPhaseGate means the operation is disallowed in the election's
	// current effective phase.
	ErrPhaseGate ErrorKind = "phase_gate"
	// ErrAlreadyActed means the ledger reported a duplicate vote or
	// registration for this voter.
	ErrAlreadyActed ErrorKind = "already_acted"
	// ErrLedgerRejected is any other contract revert.
	ErrLedgerRejected ErrorKind = "ledger_rejected"
	// ErrConfirmationTimeout means the confirmation wait elapsed. The
	// transaction may still be included later; callers must not assume it
	// was dropped.
	ErrConfirmationTimeout ErrorKind = "confirmation_timeout"
	// ErrTransportUnavailable means the ledger node could not be reached.
	ErrTransportUnavailable ErrorKind = "transport_unavailable"
	// ErrNotFound means the entity is absent from both ledger and cache.
	ErrNotFound ErrorKind = "not_found"
)

// Error carries a kind plus the flat, human-readable reason surfaced to
// callers. Transport internals stay in the wrapped cause, never in Reason.
type Error struct {
	Kind   ErrorKind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NewError(kind ErrorKind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, cause: cause}
}

// KindOf returns the classification of err, or "" for errors that did not
// originate from this taxonomy.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ReasonOf returns the user-facing reason string, falling back to the raw
// error text for foreign errors.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
