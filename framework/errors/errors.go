// Package errors defines the failure taxonomy shared by every capability of an
// application context: lookup outcomes (not found, ambiguous, missing key),
// lifecycle violations, aggregated listener failures and exact-pattern misses.
//
// Callers match on the sentinel values with errors.Is and on the typed errors
// with errors.As. Only lifecycle failures are programming errors; everything
// else is a normal runtime outcome the caller is expected to handle.
package errors

import (
	"errors"
	"fmt"
)

// Class groups errors by how a caller should react to them.
type Class int

const (
	// ClassRecoverable covers lookup outcomes the caller can default around.
	ClassRecoverable Class = iota
	// ClassCriteria covers failures fixed by asking more precisely.
	ClassCriteria
	// ClassLifecycle covers context state violations; retrying does not help.
	ClassLifecycle
	// ClassAggregate covers collected listener failures.
	ClassAggregate
)

// String returns the string representation of Class
func (c Class) String() string {
	switch c {
	case ClassRecoverable:
		return "recoverable"
	case ClassCriteria:
		return "criteria"
	case ClassLifecycle:
		return "lifecycle"
	case ClassAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

var (
	// Lookup
	ErrNotFound            = errors.New("component not found")
	ErrAmbiguous           = errors.New("component lookup is ambiguous")
	ErrCurrentlyInCreation = errors.New("component is currently in creation")
	ErrInvalidDefinition   = errors.New("invalid component definition")
	ErrTypeMismatch        = errors.New("component has unexpected type")

	// Messages
	ErrMissingKey = errors.New("message key not found")
	ErrFormat     = errors.New("message format failed")

	// Lifecycle
	ErrIllegalState = errors.New("illegal context state")

	// Events
	ErrListenerFailure = errors.New("event listener failed")

	// Resources
	ErrPatternResolution = errors.New("resource pattern resolved nothing")
)

// ContextError attaches the operation and subject to a taxonomy error.
type ContextError struct {
	Err       error
	Component string
	Operation string
	Message   string
}

// Error implements the error interface
func (e *ContextError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Err.Error()
	}
	if e.Component == "" {
		return fmt.Sprintf("%s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Operation, e.Component, msg)
}

// Unwrap returns the underlying error
func (e *ContextError) Unwrap() error { return e.Err }

// Wrap annotates err with the component and operation it came from.
func Wrap(err error, component, operation, message string) error {
	if err == nil {
		return nil
	}
	return &ContextError{Err: err, Component: component, Operation: operation, Message: message}
}

// Classify maps err onto a Class. Unknown errors classify as ClassRecoverable.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrIllegalState):
		return ClassLifecycle
	case errors.Is(err, ErrAmbiguous), errors.Is(err, ErrTypeMismatch):
		return ClassCriteria
	case errors.Is(err, ErrListenerFailure):
		return ClassAggregate
	default:
		return ClassRecoverable
	}
}

// IsNotFound reports whether err is a normal "absent" lookup outcome: a missing
// component, a missing message key or an unmatched exact resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMissingKey) ||
		errors.Is(err, ErrPatternResolution)
}

// IsFatal reports whether the caller must treat err as a hard failure rather
// than translate it into a default.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	c := Classify(err)
	return c == ClassLifecycle || c == ClassCriteria
}

// Is and As re-export the standard helpers so callers importing this package
// under its own name do not need a second import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join wraps errors.Join.
func Join(errs ...error) error { return errors.Join(errs...) }
