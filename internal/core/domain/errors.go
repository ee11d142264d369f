package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an operational failure: expected, safe to show to the client and
// tagged with the HTTP status it maps to.
type Error struct {
	Code    int
	Message string
	Err     error // optional cause, never rendered in production
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status is "fail" for client errors and "error" for everything else.
func (e *Error) Status() string {
	if e.Code >= 400 && e.Code < 500 {
		return "fail"
	}
	return "error"
}

// NewError builds an operational error.
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap builds an operational error that keeps the underlying cause.
func Wrap(code int, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CastError reports a value that cannot be converted to the type a field
// requires, e.g. a malformed document id.
type CastError struct {
	Path  string
	Value string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Path, e.Value)
}

// DuplicateError reports a write that collided with a unique index.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %s", e.Field, e.Value)
}

var (
	ErrNotFound         = NewError(http.StatusNotFound, "No document found with that ID")
	ErrNotLoggedIn      = NewError(http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
	ErrPrincipalGone    = NewError(http.StatusUnauthorized, "The user belonging to this token does no longer exist.")
	ErrStaleCredential  = NewError(http.StatusUnauthorized, "User recently changed password! Please log in again.")
	ErrBadLogin         = NewError(http.StatusUnauthorized, "Incorrect email or password")
	ErrAlreadyLoggedOut = NewError(http.StatusUnauthorized, "You are already logged out")
	ErrNotAnImage       = NewError(http.StatusBadRequest, "Not an image! Please upload only images.")
)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
