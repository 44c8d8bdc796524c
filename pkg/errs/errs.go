// Package errs defines the error taxonomy shared by the lifecycle engine,
// the background loops and the HTTP handlers.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel categories. Handlers map these to response codes with errors.Is.
var (
	// ErrValidation marks missing or malformed request fields. Rejected
	// before any state mutation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown intent or subscription identifier.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an operation not permitted in the entity's
	// current state, e.g. cancelling an executed intent.
	ErrInvalidState = errors.New("invalid state")

	// ErrCollaborator marks a failed registry or settlement call.
	ErrCollaborator = errors.New("collaborator error")

	// ErrRaceLost marks a compare-and-set that found the intent already
	// claimed by a concurrent settlement attempt. Benign.
	ErrRaceLost = errors.New("execution race lost")
)

// Validationf wraps a formatted message as a validation error.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrValidation, args)...)
}

// NotFoundf wraps a formatted message as a not-found error.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrNotFound, args)...)
}

// InvalidStatef wraps a formatted message as an invalid-state error.
func InvalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrInvalidState, args)...)
}

// Collaborator wraps a collaborator failure, keeping the cause in the chain.
func Collaborator(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCollaborator, op, err)
}

// RaceLostf wraps a formatted message as a race-lost marker.
func RaceLostf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrRaceLost, args)...)
}

func prepend(err error, args []interface{}) []interface{} {
	return append([]interface{}{err}, args...)
}
