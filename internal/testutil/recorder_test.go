package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/actionplan/internal/engine"
	"github.com/roach88/actionplan/internal/ir"
)

var _ engine.Observer = (*Recorder)(nil)

func TestRecorder_Collects(t *testing.T) {
	r := NewRecorder()
	r.ActionEvent(ir.ActionEvent{ActionID: 1, Action: "Commit", Phase: ir.PhasePlan, State: "pending"})
	r.ActionEvent(ir.ActionEvent{ActionID: 2, Action: "Ci", Phase: ir.PhasePlan, State: "pending"})
	r.ActionEvent(ir.ActionEvent{ActionID: 2, Action: "Ci", Phase: ir.PhaseRun, State: "running"})
	r.PlanEvent(ir.PlanEvent{PlanID: "plan-1", Status: "running"})

	assert.Len(t, r.Events(), 3)
	assert.Len(t, r.PlanEvents(), 1)
	assert.Equal(t, []string{"pending", "running"}, r.States(2))
	assert.Equal(t, []int64{1}, r.Entered("Commit", "pending"))
	assert.Equal(t, 2, r.Index(2, "running"))
	assert.Equal(t, -1, r.Index(1, "running"))
	assert.Equal(t, []string{
		"#1 Commit plan pending",
		"#2 Ci plan pending",
		"#2 Ci run running",
	}, r.Trace())

	r.Reset()
	assert.Empty(t, r.Events())
	assert.Empty(t, r.PlanEvents())
}
