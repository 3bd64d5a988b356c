package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/actionplan/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates an action event with minimal required fields.
func createTestEvent(planID string, actionID int64, phase ir.Phase, state string, seq int64) ir.ActionEvent {
	return ir.ActionEvent{
		ID:       ir.MustEventID(planID, actionID, phase, state, seq),
		PlanID:   planID,
		ActionID: actionID,
		Action:   "Dummy",
		Phase:    phase,
		State:    state,
		Seq:      seq,
		Input:    ir.IRObject{},
		Output:   ir.IRObject{},
	}
}

// createTestPlanEvent creates a plan status event.
func createTestPlanEvent(planID, status string, seq int64) ir.PlanEvent {
	return ir.PlanEvent{
		PlanID:     planID,
		RootAction: "Dummy",
		Status:     status,
		Seq:        seq,
	}
}
