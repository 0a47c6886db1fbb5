package workflow

import (
	"errors"
	"fmt"

	"github.com/nhle/facility-maintenance/internal/model"
)

// Code classifies a workflow rejection raised before any server call.
type Code string

const (
	CodeValidationFailed  Code = "validation_failed"
	CodeAlreadyInFlight   Code = "already_in_flight"
	CodeIllegalTransition Code = "illegal_transition"
)

// Sentinels for errors.Is matching on the code alone.
var (
	ErrValidationFailed  = &Error{Code: CodeValidationFailed}
	ErrAlreadyInFlight   = &Error{Code: CodeAlreadyInFlight}
	ErrIllegalTransition = &Error{Code: CodeIllegalTransition}
)

// Error is a local workflow rejection. Field is set for validation
// failures, From and To for transition failures.
type Error struct {
	Code  Code
	Kind  model.EntityKind
	ID    int64
	Field string
	From  model.Status
	To    model.Status
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeValidationFailed:
		return fmt.Sprintf("%s is required", e.Field)
	case CodeAlreadyInFlight:
		return fmt.Sprintf("%s %d already has a request in flight", e.Kind, e.ID)
	case CodeIllegalTransition:
		return fmt.Sprintf("%s %d cannot move from %q to %q", e.Kind, e.ID, e.From, e.To)
	}
	return string(e.Code)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}

func validationFailed(field string) *Error {
	return &Error{Code: CodeValidationFailed, Field: field}
}
