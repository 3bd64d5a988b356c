package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/actionplan/internal/ir"
)

// Recorder is an engine observer that keeps every event it sees. Tests
// use it to assert on run and finalize order without global state.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	actions []ir.ActionEvent
	plans   []ir.PlanEvent
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ActionEvent implements engine.Observer.
func (r *Recorder) ActionEvent(ev ir.ActionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, ev)
}

// PlanEvent implements engine.Observer.
func (r *Recorder) PlanEvent(ev ir.PlanEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = append(r.plans, ev)
}

// Events returns a copy of the action events in arrival order.
func (r *Recorder) Events() []ir.ActionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.ActionEvent, len(r.actions))
	copy(out, r.actions)
	return out
}

// PlanEvents returns a copy of the plan events in arrival order.
func (r *Recorder) PlanEvents() []ir.PlanEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.PlanEvent, len(r.plans))
	copy(out, r.plans)
	return out
}

// States returns the states action id went through, in order.
func (r *Recorder) States(id int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.actions {
		if ev.ActionID == id {
			out = append(out, ev.State)
		}
	}
	return out
}

// Entered returns the IDs of actions named name that reached state, in
// the order they reached it.
func (r *Recorder) Entered(name, state string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, ev := range r.actions {
		if ev.Action == name && ev.State == state {
			out = append(out, ev.ActionID)
		}
	}
	return out
}

// Index returns the position of the first event of action id in state, or
// -1 when there is none.
func (r *Recorder) Index(id int64, state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ev := range r.actions {
		if ev.ActionID == id && ev.State == state {
			return i
		}
	}
	return -1
}

// Trace renders the action events one per line, without seq or IDs that
// depend on timing, e.g. "#3 Triage run running".
func (r *Recorder) Trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.actions))
	for i, ev := range r.actions {
		out[i] = fmt.Sprintf("#%d %s %s %s", ev.ActionID, ev.Action, ev.Phase, ev.State)
	}
	return out
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = nil
	r.plans = nil
}
