package app

import (
	"strings"

	"github.com/nhle/facility-maintenance/internal/transport"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

// errorText renders err for the error bar. Server messages are shown
// verbatim.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	if we, ok := workflow.AsError(err); ok {
		switch we.Code {
		case workflow.CodeValidationFailed:
			return strings.ReplaceAll(we.Field, "_", " ") + " is required"
		case workflow.CodeAlreadyInFlight:
			return "this item is already being updated"
		case workflow.CodeIllegalTransition:
			return "cannot move from " + string(we.From) + " to " + string(we.To)
		}
	}
	if te, ok := transport.AsError(err); ok {
		return te.Message
	}
	return err.Error()
}
