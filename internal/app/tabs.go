package app

import (
	"github.com/nhle/facility-maintenance/internal/api"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/router"
)

// screenDetail is the focus screen of the detail view. List screens use
// their tab name.
const screenDetail = "detail"

// listSource says what a list tab shows for a role.
type listSource struct {
	kind  model.EntityKind
	scope api.Scope
	title string
	empty string
}

// tabSource resolves the list behind tab for role. Settings has none.
func tabSource(tab router.Tab, role model.Role) (listSource, bool) {
	switch tab {
	case router.TabHome:
		src := listSource{
			kind:  model.KindServiceRequest,
			scope: api.ScopeAssignedToMe,
			title: "Assigned Service Requests",
			empty: "No service requests assigned to you.",
		}
		if role == model.RoleGeneralService {
			src.scope = api.ScopeAll
			src.title = "Service Requests"
			src.empty = "No service requests."
		}
		return src, true

	case router.TabPreventiveTask:
		src := listSource{
			kind:  model.KindPreventiveTask,
			scope: api.ScopeAssignedToMe,
			title: "My Preventive Maintenance",
			empty: "No preventive maintenance scheduled for you.",
		}
		if role == model.RoleGeneralService {
			src.scope = api.ScopeAll
			src.title = "Preventive Maintenance"
			src.empty = "No preventive maintenance scheduled."
		}
		return src, true

	case router.TabServices:
		return listSource{
			kind:  model.KindServiceRequest,
			scope: api.ScopeRequestedByMe,
			title: "My Service Requests",
			empty: "You have not requested any services yet.",
		}, true
	}
	return listSource{}, false
}

func tabLabel(tab router.Tab) string {
	switch tab {
	case router.TabPreventiveTask:
		return "Preventive Task"
	}
	return string(tab)
}

func toListItems[T model.ListItem](items []T) []model.ListItem {
	out := make([]model.ListItem, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}
