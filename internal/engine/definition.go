package engine

import (
	"context"
	"time"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/schema"
)

// Definition declares an action kind.
//
// Every hook is optional. The planner and executor never inspect the
// concrete hooks directly; they branch on Capabilities.
type Definition struct {
	// Name identifies the kind, e.g. "Triage". Schemas are registered as
	// "<Name>.input" and "<Name>.output".
	Name string

	Input  *schema.Type
	Output *schema.Type

	// Plan composes the action. When nil the action plans itself with
	// args[0] as input (an empty record without args).
	Plan func(p *PlanContext, args ...ir.IRValue) error

	// Run is the primary work of the action.
	Run func(ctx context.Context, a *Action) error

	// Finalize runs in the plan-wide second pass.
	Finalize func(ctx context.Context, a *Action) error

	// Polling turns the run phase into an external task driven by polls.
	Polling *ExternalTask

	// RunProgress reports the fraction of the run phase completed.
	RunProgress func(a *Action) float64

	// RunWeight and FinalizeWeight weight this action's phases in plan
	// progress. Zero RunWeight means 1; zero FinalizeWeight means the
	// finalize phase does not contribute.
	RunWeight      float64
	FinalizeWeight float64

	// Subscribe names the trigger kinds this action reacts to.
	Subscribe []string

	// Summary renders a digest of the action once its plan ran.
	Summary func(p *Plan, a *Action) ir.IRObject
}

// ExternalTask describes a long-running operation observed through polls.
type ExternalTask struct {
	// Invoke starts the task and returns its initial state.
	Invoke func(ctx context.Context, a *Action) (ir.IRObject, error)

	// Poll returns the updated task state.
	Poll func(ctx context.Context, a *Action) (ir.IRObject, error)

	// Done reports completion. Defaults to output field "done" being true.
	Done func(a *Action) bool

	// Store records a task state. Defaults to merging it into the output.
	Store func(a *Action, state ir.IRObject) error

	// Interval between polls. Zero uses the engine default.
	Interval time.Duration
}

// Capability is a bit set of optional behaviors a Definition declares.
type Capability uint8

const (
	CapRun Capability = 1 << iota
	CapFinalize
	CapPolling
	CapSubscribes
	CapProgress
	CapCustomPlan
)

// Capabilities derives the capability flags from the declared hooks.
func (d *Definition) Capabilities() Capability {
	var c Capability
	if d.Run != nil {
		c |= CapRun
	}
	if d.Finalize != nil {
		c |= CapFinalize
	}
	if d.Polling != nil {
		c |= CapPolling
	}
	if len(d.Subscribe) > 0 {
		c |= CapSubscribes
	}
	if d.RunProgress != nil {
		c |= CapProgress
	}
	if d.Plan != nil {
		c |= CapCustomPlan
	}
	return c
}

// Has reports whether all flags in want are set.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// String lists the set flags, e.g. "run|finalize".
func (c Capability) String() string {
	names := []struct {
		flag Capability
		name string
	}{
		{CapRun, "run"},
		{CapFinalize, "finalize"},
		{CapPolling, "polling"},
		{CapSubscribes, "subscribes"},
		{CapProgress, "progress"},
		{CapCustomPlan, "plan"},
	}
	s := ""
	for _, n := range names {
		if c.Has(n.flag) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

func (d *Definition) inputSchemaName() string  { return d.Name + ".input" }
func (d *Definition) outputSchemaName() string { return d.Name + ".output" }

func (d *Definition) runWeight() float64 {
	if d.RunWeight <= 0 {
		return 1
	}
	return d.RunWeight
}

func (d *Definition) finalizeWeight() float64 {
	if d.FinalizeWeight < 0 {
		return 0
	}
	return d.FinalizeWeight
}
