package workflow

import (
	"context"
	"fmt"

	"github.com/nhle/facility-maintenance/internal/model"
)

// Decision is the user's answer to a confirmation prompt.
type Decision int

const (
	Cancelled Decision = iota
	Confirmed
)

// Prompt describes a transition awaiting confirmation.
type Prompt struct {
	Title   string
	Message string
	Entity  model.WorkflowEntity
	Target  model.Status
}

// Decider asks the user to confirm a prompt and blocks until answered.
type Decider func(Prompt) Decision

// NewPrompt builds the confirmation shown before moving entity to target.
func NewPrompt(entity model.WorkflowEntity, target model.Status) Prompt {
	title := "Confirm"
	switch entity.Kind {
	case model.KindPreventiveTask:
		title = "Confirm Preventive Task"
	case model.KindServiceRequest:
		title = "Confirm Service Request"
	}
	return Prompt{
		Title:   title,
		Message: fmt.Sprintf("Are you sure you want to make %q %s?", entity.Title, target),
		Entity:  entity,
		Target:  target,
	}
}

// TransitionWithConfirm checks the transition, asks decide, and performs
// it only when confirmed. applied is false when the user cancelled.
// Illegal transitions are rejected before the user is asked.
func (m *Machine) TransitionWithConfirm(
	ctx context.Context,
	decide Decider,
	entity model.WorkflowEntity,
	target model.Status,
	payload *ReportPayload,
) (updated model.WorkflowEntity, applied bool, err error) {
	if err := m.checkTransition(entity, target, payload); err != nil {
		return entity, false, err
	}
	if decide(NewPrompt(entity, target)) != Confirmed {
		m.log.WithField("id", entity.ID).Debug("transition cancelled")
		return entity, false, nil
	}

	updated, err = m.RequestTransition(ctx, entity, target, payload)
	if err != nil {
		return entity, false, err
	}
	return updated, true, nil
}
