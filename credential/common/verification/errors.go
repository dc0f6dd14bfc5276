// Package verification defines the single error taxonomy returned by every
// decode, verify and evaluate path of the credential exchange.
package verification

import (
	"errors"
	"fmt"
)

// Kind classifies why a signed artifact was rejected.
type Kind string

const (
	KindMalformedToken        Kind = "malformed_token"
	KindInvalidSignature      Kind = "invalid_signature"
	KindExpiredInput          Kind = "expired_input"
	KindManifestMismatch      Kind = "manifest_mismatch"
	KindUnsupportedAlgorithm  Kind = "unsupported_algorithm"
	KindStatusListUnavailable Kind = "status_list_unavailable"
	KindUnresolvableKey       Kind = "unresolvable_key"
	KindConstraintViolation   Kind = "constraint_violation"
)

// Error is a VerificationError. It wraps the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable reports whether the caller may retry the operation. Only an
// unavailable status list is a soft failure; every other kind permanently
// rejects the token.
func (e *Error) Retryable() bool {
	return e.Kind == KindStatusListUnavailable
}

// New creates a verification error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates a verification error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a verification error around err. If err already carries a
// verification kind, that kind is kept so embedded failures propagate as-is.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Kind: existing.Kind, Message: msg, Err: err}
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// HasKind reports whether err is a verification error of the given kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not a verification error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
