package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/actionplan/internal/ir"
)

// Snapshot is the canonical JSON form of a finished scenario. It leaves
// out the trace, whose interleaving depends on scheduling.
func Snapshot(name string, r *Result) ([]byte, error) {
	actions := make(ir.IRArray, len(r.Actions))
	for i, a := range r.Actions {
		obj := ir.IRObject{
			"id":     ir.IRInt(a.ID),
			"action": ir.IRString(a.Action),
			"state":  ir.IRString(a.State),
		}
		if a.ParentID != 0 {
			obj["parent_id"] = ir.IRInt(a.ParentID)
		}
		if a.TriggerID != 0 {
			obj["trigger_id"] = ir.IRInt(a.TriggerID)
		}
		if len(a.DependsOn) > 0 {
			deps := make(ir.IRArray, len(a.DependsOn))
			for j, d := range a.DependsOn {
				deps[j] = ir.IRInt(d)
			}
			obj["depends_on"] = deps
		}
		if len(a.Input) > 0 {
			obj["input"] = a.Input
		}
		if len(a.Output) > 0 {
			obj["output"] = a.Output
		}
		if a.ErrorKind != "" {
			obj["error_kind"] = ir.IRString(a.ErrorKind)
			obj["error"] = ir.IRString(a.Error)
		}
		actions[i] = obj
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario": ir.IRString(name),
		"plan_id":  ir.IRString(r.PlanID),
		"status":   ir.IRString(r.Status),
		"progress": ir.IRInt(r.Progress),
		"actions":  actions,
	})
}

// AssertGolden compares the result's snapshot with
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, r *Result) error {
	t.Helper()

	data, err := Snapshot(name, r)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
