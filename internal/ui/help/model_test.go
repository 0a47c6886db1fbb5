package help

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/facility-maintenance/internal/model"
)

func TestLifecycleListsEveryBranch(t *testing.T) {
	out := Lifecycle(model.KindServiceRequest, model.StatusPending)

	assert.Contains(t, out, "Service request:")
	assert.Equal(t, 2, strings.Count(out, "\n"), "one line per branch")
	assert.Contains(t, out, "rejected")
	assert.Contains(t, out, "completed")
}

func TestLifecyclePreventiveTask(t *testing.T) {
	out := Lifecycle(model.KindPreventiveTask, model.StatusPending)

	assert.Contains(t, out, "Preventive task:")
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "reported")
}
