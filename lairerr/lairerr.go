// Package lairerr defines the error taxonomy shared by every lair-keystore
// component. Every exported operation in this module returns one of these
// kinds wrapped in an *Error so callers can branch on failure category with
// errors.As instead of string matching.
package lairerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a keystore failure.
type Kind string

// The error kinds named in the keystore service plane's error taxonomy.
const (
	BadInput            Kind = "BadInput"
	UnknownKey          Kind = "UnknownKey"
	StoreReadFailed     Kind = "StoreReadFailed"
	StoreWriteFailed    Kind = "StoreWriteFailed"
	SealFailed          Kind = "SealFailed"
	UnsealFailed        Kind = "UnsealFailed"
	EntropyUnavailable  Kind = "EntropyUnavailable"
	KeyDerivationFailed Kind = "KeyDerivationFailed"
	PassphraseRefused   Kind = "PassphraseRefused"
	Backpressure        Kind = "Backpressure"
	ProtocolViolation   Kind = "ProtocolViolation"
	Shutdown            Kind = "Shutdown"
	UnknownRequest      Kind = "UnknownRequest"
)

// Error is the concrete error type returned by keystore operations.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that carries an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is (or wraps) a *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
