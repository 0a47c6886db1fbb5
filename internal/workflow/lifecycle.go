package workflow

import "github.com/nhle/facility-maintenance/internal/model"

// lifecycles lists the legal successors of each status per kind. A
// status absent from the map is terminal or unknown.
var lifecycles = map[model.EntityKind]map[model.Status][]model.Status{
	model.KindServiceRequest: {
		model.StatusPending:    {model.StatusApproved, model.StatusRejected},
		model.StatusApproved:   {model.StatusInProgress},
		model.StatusInProgress: {model.StatusCompleted},
	},
	model.KindPreventiveTask: {
		model.StatusPending:    {model.StatusInProgress},
		model.StatusInProgress: {model.StatusReported},
	},
}

// knownStatuses lists every status a kind can be in.
var knownStatuses = map[model.EntityKind][]model.Status{
	model.KindServiceRequest: {
		model.StatusPending, model.StatusApproved, model.StatusRejected,
		model.StatusInProgress, model.StatusCompleted,
	},
	model.KindPreventiveTask: {
		model.StatusPending, model.StatusInProgress, model.StatusReported,
	},
}

// Successors returns the statuses an entity of kind may move to from
// status. Terminal and unknown statuses have none.
func Successors(kind model.EntityKind, status model.Status) []model.Status {
	return lifecycles[kind][status]
}

// Legal reports whether kind may move from one status to another.
func Legal(kind model.EntityKind, from, to model.Status) bool {
	for _, s := range Successors(kind, from) {
		if s == to {
			return true
		}
	}
	return false
}

// Known reports whether status belongs to kind's vocabulary.
func Known(kind model.EntityKind, status model.Status) bool {
	for _, s := range knownStatuses[kind] {
		if s == status {
			return true
		}
	}
	return false
}

// Terminal reports whether an entity of kind in status can no longer move.
func Terminal(kind model.EntityKind, status model.Status) bool {
	return Known(kind, status) && len(Successors(kind, status)) == 0
}
