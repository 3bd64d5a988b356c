package engine

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/actionplan/internal/ir"
)

// Status is the aggregated state of a plan.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the plan stopped executing.
func (s Status) Finished() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// Plan is the handle for a planned root action and everything it spawned.
type Plan struct {
	id     string
	engine *Engine
	root   *Action

	// mu guards action states, resolved inputs and the status. Actions are
	// only appended while planning, before the plan is shared.
	mu      sync.RWMutex
	actions []*Action
	status  Status
	started bool
	queue   *eventQueue

	cancelReq atomic.Bool
	done      chan struct{}
}

func newPlan(e *Engine, id string) *Plan {
	return &Plan{
		id:     id,
		engine: e,
		status: StatusPending,
		done:   make(chan struct{}),
	}
}

// ID returns the plan ID.
func (p *Plan) ID() string { return p.id }

// Root returns the root action.
func (p *Plan) Root() *Action { return p.root }

// Status returns the aggregated status: pending before execution, running
// or suspended while executing, and success, error or cancelled after.
// A finished plan is success only if every action succeeded.
func (p *Plan) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Actions returns every action of the plan in ID order.
func (p *Plan) Actions() []*Action {
	return slices.Clone(p.actions)
}

// Action returns the action with the given ID.
func (p *Plan) Action(id int64) (*Action, bool) {
	a := p.action(id)
	return a, a != nil
}

func (p *Plan) action(id int64) *Action {
	if id < 1 || id > int64(len(p.actions)) {
		return nil
	}
	return p.actions[id-1]
}

// Find returns the actions of kind name in ID order.
func (p *Plan) Find(name string) []*Action {
	var out []*Action
	for _, a := range p.actions {
		if a.def.Name == name {
			out = append(out, a)
		}
	}
	return out
}

// Errors returns the recorded action errors in ID order.
func (p *Plan) Errors() []*ActionError {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*ActionError
	for _, a := range p.actions {
		if a.err != nil {
			out = append(out, a.err)
		}
	}
	return out
}

// Cancel requests cooperative cancellation. Actions already running finish
// naturally, including suspended external tasks; actions and finalize
// phases not started yet become cancelled.
func (p *Plan) Cancel() {
	p.cancelReq.Store(true)
	p.mu.RLock()
	q := p.queue
	p.mu.RUnlock()
	if q != nil {
		q.Enqueue(event{typ: evCancel})
	}
}

// Done returns a channel closed when execution finishes.
func (p *Plan) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until execution finishes or ctx is done.
func (p *Plan) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Plan) setStatus(s Status) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == s {
		return false
	}
	p.status = s
	return true
}

func (p *Plan) planEvent() ir.PlanEvent {
	return ir.PlanEvent{
		PlanID:     p.id,
		RootAction: p.root.def.Name,
		Status:     string(p.Status()),
		Seq:        p.engine.clock.Next(),
		Progress:   scaleProgress(p.Progress()),
	}
}

// actionEvent snapshots a for observers. Must not be called with p.mu held.
func (p *Plan) actionEvent(a *Action, phase ir.Phase) ir.ActionEvent {
	p.mu.RLock()
	state := a.state
	input := a.input
	if a.resolved != nil {
		input = a.resolved
	}
	var aerr *ActionError
	if a.err != nil {
		aerr = a.err
	}
	p.mu.RUnlock()

	ev := ir.ActionEvent{
		PlanID:    p.id,
		ActionID:  a.id,
		Action:    a.def.Name,
		Phase:     phase,
		State:     string(state),
		Seq:       p.engine.clock.Next(),
		DependsOn: slices.Clone(a.deps),
		Input:     input.Clone(),
		Output:    a.output.Snapshot(),
		Progress:  scaleProgress(a.RunProgress()),
	}
	if a.parent != nil {
		ev.ParentID = a.parent.id
	}
	if a.trigger != nil {
		ev.TriggerID = a.trigger.id
	}
	if aerr != nil {
		ev.ErrorKind = string(aerr.Kind)
		ev.Error = aerr.Message
	}
	ev.ID = ir.MustEventID(ev.PlanID, ev.ActionID, ev.Phase, ev.State, ev.Seq)
	return ev
}
