// Package apperrors contains generic errors returned by the coordinator, the scheduler and the agents.
// Callers look for the error types defined in this file with errors.As, so that wrapping with
// github.com/pkg/errors along the way does not hide them.
package apperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Reason values attached to failed task statuses. They mirror the error types below.
const (
	ReasonInvalidArgument = "REASON_INVALID_ARGUMENT"
	ReasonNotReady        = "REASON_NOT_READY"
	ReasonNotFound        = "REASON_NOT_FOUND"
	ReasonUnknown         = "REASON_UNKNOWN"
)

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "windowLength"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", fmt.Sprint(err.Value), err.Name)
	} else {
		return fmt.Sprintf("value %q is invalid for field %q; %s", fmt.Sprint(err.Value), err.Name, err.Message)
	}
}

// ErrNotReady is returned when a value is requested before the computation producing it has completed.
type ErrNotReady struct {
	Message string
}

func (err *ErrNotReady) Error() string {
	if err.Message == "" {
		return "not ready"
	}
	return fmt.Sprintf("not ready; %s", err.Message)
}

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "offer" or "agent"
	Value   string // Resource name, e.g., the offer id
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ReasonFromError maps error types to the reason reported on a failed task status.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func ReasonFromError(err error) string {
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return ReasonInvalidArgument
		}
	}
	{
		var e *ErrNotReady
		if errors.As(err, &e) {
			return ReasonNotReady
		}
	}
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return ReasonNotFound
		}
	}
	return ReasonUnknown
}
