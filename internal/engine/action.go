package engine

import (
	"errors"
	"slices"
	"sync"

	"github.com/roach88/actionplan/internal/ir"
)

// State is the lifecycle state of an action.
type State string

const (
	StatePending         State = "pending"
	StateRunning         State = "running"
	StateSuspended       State = "suspended"
	StateSuccessRun      State = "success_run"
	StateErrorRun        State = "error_run"
	StateRunningFinalize State = "running_finalize"
	StateSuccess         State = "success"
	StateError           State = "error"
	StateCancelled       State = "cancelled"
)

// RunTerminal reports whether the run phase can no longer change.
func (s State) RunTerminal() bool {
	switch s {
	case StateSuccessRun, StateErrorRun, StateRunningFinalize, StateSuccess, StateError, StateCancelled:
		return true
	}
	return false
}

// Terminal reports whether the action reached its final state.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateError, StateErrorRun, StateCancelled:
		return true
	}
	return false
}

// Failed reports whether the state is an error state.
func (s State) Failed() bool {
	return s == StateErrorRun || s == StateError
}

// satisfies reports whether dependents of an action in this state may run.
func (s State) satisfies() bool {
	return s == StateSuccessRun || s == StateRunningFinalize || s == StateSuccess
}

// blocks reports whether dependents of an action in this state must be
// cancelled.
func (s State) blocks() bool {
	return s.Failed() || s == StateCancelled
}

// ErrOutputFrozen is returned when writing the output of a finished action.
var ErrOutputFrozen = errors.New("output is frozen")

// Record is an action's output. Hooks update it while the action runs;
// it is frozen once the action reaches a terminal state.
type Record struct {
	mu     sync.RWMutex
	data   ir.IRObject
	frozen bool
}

func newRecord() *Record {
	return &Record{data: ir.IRObject{}}
}

// Set stores v under key.
func (r *Record) Set(key string, v ir.IRValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrOutputFrozen
	}
	r.data[key] = ir.Clone(v)
	return nil
}

// Update merges the top-level fields of obj into the record.
func (r *Record) Update(obj ir.IRObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrOutputFrozen
	}
	for k, v := range obj {
		r.data[k] = ir.Clone(v)
	}
	return nil
}

// Get returns the value at path.
func (r *Record) Get(path ...string) (ir.IRValue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data.Get(path...)
	if !ok {
		return nil, false
	}
	return ir.Clone(v), true
}

// String returns the string at path, or "".
func (r *Record) String(path ...string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.String(path...)
}

// Int returns the integer at path, or 0.
func (r *Record) Int(path ...string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Int(path...)
}

// Bool returns the boolean at path, or false.
func (r *Record) Bool(path ...string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Bool(path...)
}

// Snapshot returns a copy of the current contents.
func (r *Record) Snapshot() ir.IRObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Clone()
}

// Frozen reports whether the record no longer accepts writes.
func (r *Record) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *Record) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Action is one node of a plan.
//
// Identity, definition, parent and trigger never change. Children, input
// and dependencies are fixed once planning completes. State and error are
// owned by the plan's coordinator; accessors are safe for concurrent use.
type Action struct {
	plan    *Plan
	def     *Definition
	id      int64
	parent  *Action
	trigger *Action

	children []*Action

	// runnable is set by PlanSelf; only runnable actions have a run phase.
	runnable   bool
	selfCalled bool
	deps       []int64

	// failure holds an error raised by PlanSelf so that a Plan hook
	// ignoring it still fails the action.
	failure error

	// dispatched is owned by the coordinator.
	dispatched bool

	input    ir.IRObject // as planned, may hold refs
	resolved ir.IRObject // refs replaced by live values before run
	output   *Record

	state State
	err   *ActionError

	progressMu  sync.Mutex
	runProgress float64
}

// ID is unique within the plan and assigned in planning order from 1.
func (a *Action) ID() int64 { return a.id }

// Name is the definition name.
func (a *Action) Name() string { return a.def.Name }

// Definition returns the action kind.
func (a *Action) Definition() *Definition { return a.def }

// Plan returns the plan the action belongs to.
func (a *Action) Plan() *Plan { return a.plan }

// Parent returns the action whose plan created this one, nil for the root.
func (a *Action) Parent() *Action { return a.parent }

// Trigger returns the action this subscriber reacted to, nil otherwise.
func (a *Action) Trigger() *Action { return a.trigger }

// Children returns the actions planned by this one, in planning order.
func (a *Action) Children() []*Action { return slices.Clone(a.children) }

// Runnable reports whether the action planned itself and has a run phase.
func (a *Action) Runnable() bool { return a.runnable }

// DependsOn returns the IDs of actions that must succeed before this one runs.
func (a *Action) DependsOn() []int64 { return slices.Clone(a.deps) }

// Input returns the action input. Before the run phase starts it may hold
// refs; from then on refs are replaced by the referenced values.
func (a *Action) Input() ir.IRObject {
	a.plan.mu.RLock()
	defer a.plan.mu.RUnlock()
	if a.resolved != nil {
		return a.resolved.Clone()
	}
	return a.input.Clone()
}

// PlannedInput returns the input as planned, refs included.
func (a *Action) PlannedInput() ir.IRObject {
	return a.input.Clone()
}

// Output returns the output record.
func (a *Action) Output() *Record { return a.output }

// OutputRef references a path in this action's output. Use it to feed
// another action's input; the value is bound when that action runs.
func (a *Action) OutputRef(path ...string) ir.IRRef {
	return ir.IRRef{ActionID: a.id, Path: slices.Clone(path)}
}

// State returns the current state.
func (a *Action) State() State {
	a.plan.mu.RLock()
	defer a.plan.mu.RUnlock()
	return a.state
}

// Err returns the recorded *ActionError, or nil.
func (a *Action) Err() error {
	a.plan.mu.RLock()
	defer a.plan.mu.RUnlock()
	if a.err == nil {
		return nil
	}
	return a.err
}

// Descendants returns every action below this one, depth first in planning
// order.
func (a *Action) Descendants() []*Action {
	var out []*Action
	var walk func(*Action)
	walk = func(n *Action) {
		for _, c := range n.children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(a)
	return out
}

// Summary renders the definition's summary, or nil when none is declared.
func (a *Action) Summary() ir.IRObject {
	if a.def.Summary == nil {
		return nil
	}
	return a.def.Summary(a.plan, a)
}

// ancestry reports whether a kind named name appears among this action and
// the actions that planned or triggered it.
func (a *Action) ancestry(name string) bool {
	for n := a; n != nil; n = n.parent {
		if n.def.Name == name {
			return true
		}
		if n.trigger != nil && n.trigger.def.Name == name {
			return true
		}
	}
	return false
}
