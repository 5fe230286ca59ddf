package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for caller-side branching and HTTP status mapping.
type Kind int

const (
	// KindValidation is a malformed or incomplete request.
	KindValidation Kind = iota
	// KindNotFound is a query that matched zero rows.
	KindNotFound
	// KindProvider is a rejection from the identity provider.
	KindProvider
	// KindStore is a relational store failure (constraint violation, query error).
	KindStore
)

// Error carries the original collaborator error together with a
// classification kind and the collaborator's own error code, so handlers
// can branch without string-matching messages.
type Error struct {
	Kind    Kind
	Code    string // provider exception type or store error code, when known
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a validation-kind error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound returns a not-found-kind error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Provider wraps an identity provider rejection, preserving its exception type.
func Provider(code, message string, err error) *Error {
	return &Error{Kind: KindProvider, Code: code, Message: message, Err: err}
}

// Store wraps a relational store failure.
func Store(message string, err error) *Error {
	return &Error{Kind: KindStore, Message: message, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindStore for
// unclassified failures so they surface as server-side errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// CodeOf extracts the collaborator error code from err, if classified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
