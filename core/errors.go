package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError covers both missing resources and resources the actor may not know exist.
type NotFoundError struct {
	Message string
}

func NewNotFoundError(msg string) error { return &NotFoundError{Message: msg} }

func (err NotFoundError) Error() string { return err.Message }

// ForbiddenError is returned when the actor can see a resource but may not act on it.
type ForbiddenError struct {
	Message string
}

func NewForbiddenError(msg string) error { return &ForbiddenError{Message: msg} }

func (err ForbiddenError) Error() string { return err.Message }

// ConflictError reports duplicates and invalid state transitions.
type ConflictError struct {
	Message string
}

func NewConflictError(msg string) error { return &ConflictError{Message: msg} }

func (err ConflictError) Error() string { return err.Message }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*ForbiddenError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
