package detail

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/nhle/facility-maintenance/internal/keys"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

// Action is a user-triggered operation on the displayed entity.
type Action string

const (
	ActionStart    Action = "start"
	ActionReport   Action = "report"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionAssign   Action = "assign"
	ActionProof    Action = "proof"
	ActionComment  Action = "comment"
)

// Target returns the status an action moves an entity to, or "" for
// actions that attach side-data only.
func (a Action) Target() model.Status {
	switch a {
	case ActionStart:
		return model.StatusInProgress
	case ActionReport:
		return model.StatusReported
	case ActionApprove:
		return model.StatusApproved
	case ActionReject:
		return model.StatusRejected
	case ActionComplete:
		return model.StatusCompleted
	}
	return ""
}

// Available lists the actions role may take on e. Transitions are
// offered only when the lifecycle allows them.
func Available(role model.Role, e model.WorkflowEntity) []Action {
	var out []Action
	offer := func(a Action) {
		if t := a.Target(); t != "" && !workflow.Legal(e.Kind, e.Status, t) {
			return
		}
		out = append(out, a)
	}

	switch role {
	case model.RoleGeneralService:
		if e.Kind == model.KindServiceRequest {
			offer(ActionApprove)
			offer(ActionReject)
			if e.Status == model.StatusApproved {
				offer(ActionAssign)
			}
		}
	case model.RoleUtilityWorker:
		offer(ActionStart)
		if e.Kind == model.KindPreventiveTask {
			offer(ActionReport)
		} else {
			offer(ActionComplete)
			if e.Status == model.StatusInProgress {
				offer(ActionProof)
			}
		}
	}

	if e.Kind == model.KindServiceRequest {
		out = append(out, ActionComment)
	}
	return out
}

func (a Action) binding(k *keys.KeyMap) key.Binding {
	switch a {
	case ActionStart:
		return k.Start
	case ActionReport:
		return k.Report
	case ActionApprove:
		return k.Approve
	case ActionReject:
		return k.Reject
	case ActionComplete:
		return k.Complete
	case ActionAssign:
		return k.Assign
	case ActionProof:
		return k.Proof
	case ActionComment:
		return k.Comment
	}
	return key.Binding{}
}
