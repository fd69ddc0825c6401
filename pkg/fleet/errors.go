package fleet

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a control-plane failure for the teardown and deploy logic.
type ErrorClass string

const (
	// ErrorClassNotFound indicates the named resource does not exist on the control plane.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassRemote indicates any other control-plane failure
	// (permissions, throttling, malformed request).
	ErrorClassRemote ErrorClass = "remote"

	// ErrorClassInternal indicates an error that did not come from the control plane.
	ErrorClassInternal ErrorClass = "internal"
)

var (
	// ErrNotFound matches any *Error of class not_found via errors.Is.
	ErrNotFound = &Error{Class: ErrorClassNotFound}

	// ErrRemote matches any *Error of class remote via errors.Is.
	ErrRemote = &Error{Class: ErrorClassRemote}
)

// Error is a classified control-plane error.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Op is the control-plane operation that failed (e.g. "DeleteThing").
	Op string `json:"op,omitempty"`

	// Resource names the resource the operation targeted.
	Resource string `json:"resource,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s]", e.Class)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(" (resource=%s)", e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NotFound creates a not_found error for op against resource.
func NotFound(op, resource string, err error) *Error {
	return &Error{Class: ErrorClassNotFound, Op: op, Resource: resource, Err: err}
}

// Remote creates a remote error for op against resource.
func Remote(op, resource string, err error) *Error {
	return &Error{Class: ErrorClassRemote, Op: op, Resource: resource, Err: err}
}

// IsNotFound returns true if err is classified as not_found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRemote returns true if err is classified as a remote control-plane failure.
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemote)
}

// ClassOf returns the class of err. Errors that were not classified by a
// control-plane implementation are internal.
func ClassOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassInternal
}
