package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/actionplan/internal/ir"
)

// ErrAlreadyExecuted is returned when a plan is executed twice.
var ErrAlreadyExecuted = errors.New("plan already executed")

var errPlanCancelled = errors.New("plan cancelled")

// executor is the single-writer coordinator of one plan execution.
//
// CRITICAL: every state transition happens in the goroutine running
// executor.run. Workers and timers only enqueue events.
type executor struct {
	p     *Plan
	e     *Engine
	ctx   context.Context
	queue *eventQueue

	ctxDone  <-chan struct{} // nil once handled
	expired  bool
	inflight int
	waiting  int // dispatched but not started
	timers   map[int64]*time.Timer
}

func newExecutor(ctx context.Context, p *Plan, q *eventQueue) *executor {
	return &executor{
		p:       p,
		e:       p.engine,
		ctx:     ctx,
		queue:   q,
		ctxDone: ctx.Done(),
		timers:  make(map[int64]*time.Timer),
	}
}

func (p *Plan) execute(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyExecuted
	}
	p.started = true
	p.queue = newEventQueue()
	q := p.queue
	p.mu.Unlock()

	x := newExecutor(ctx, p, q)
	defer close(p.done)
	defer q.Close()

	slog.Debug("plan executing", "plan_id", p.id, "root", p.root.def.Name, "actions", len(p.actions))
	x.refreshStatus()

	if p.cancelReq.Load() {
		x.cancelPending(errPlanCancelled)
	}
	x.schedule()

	for !x.runPhaseDone() {
		if ev, ok := q.TryDequeue(); ok {
			x.handle(ev)
			x.schedule()
			x.refreshStatus()
			continue
		}

		select {
		case <-x.ctxDone:
			x.ctxDone = nil
			x.onContextDone()
			x.schedule()
			x.refreshStatus()
		case <-q.Wait():
		}
	}

	x.finalizePass()
	x.settleComposites()
	for _, a := range p.actions {
		a.output.freeze()
	}
	x.finish()

	return ctx.Err()
}

// runPhaseDone reports whether every run phase reached a terminal state.
// When nothing is in flight, pending actions can never become ready and
// are cancelled.
func (x *executor) runPhaseDone() bool {
	if x.inflight > 0 || len(x.timers) > 0 {
		return false
	}
	for _, a := range x.p.actions {
		if a.runnable && a.state == StatePending {
			x.transition(a, StateCancelled, ir.PhaseRun,
				&ActionError{Kind: KindCancelled, Phase: ir.PhaseRun, ActionID: a.id, Action: a.def.Name,
					Message: "dependencies can never be satisfied"})
		}
	}
	return true
}

// schedule dispatches every ready action and cancels actions whose
// dependencies failed. Cancellation cascades, so it loops until stable.
func (x *executor) schedule() {
	for changed := true; changed; {
		changed = false
		for _, a := range x.p.actions {
			if !a.runnable || a.state != StatePending || a.dispatched {
				continue
			}

			blocker, ready := x.depsVerdict(a)
			switch {
			case blocker != nil:
				x.transition(a, StateCancelled, ir.PhaseRun, &ActionError{
					Kind:     KindCancelled,
					Phase:    ir.PhaseRun,
					ActionID: a.id,
					Action:   a.def.Name,
					Message:  fmt.Sprintf("dependency %s#%d ended in %s", blocker.def.Name, blocker.id, blocker.state),
				})
				changed = true
			case !ready:
				continue
			case x.expired:
				x.transition(a, StateCancelled, ir.PhaseRun, cancelledError(a, ir.PhaseRun, x.ctx.Err()))
				changed = true
			case x.p.cancelReq.Load():
				x.transition(a, StateCancelled, ir.PhaseRun, cancelledError(a, ir.PhaseRun, errPlanCancelled))
				changed = true
			default:
				if err := x.prepareInput(a); err != nil {
					x.transition(a, StateErrorRun, ir.PhaseRun, newActionError(KindSchemaViolation, ir.PhaseRun, a, err))
					a.output.freeze()
					changed = true
					continue
				}
				x.dispatch(a, x.runStep, true)
			}
		}
	}
}

// depsVerdict returns the first dependency that blocks a, or whether all
// dependencies are satisfied.
func (x *executor) depsVerdict(a *Action) (blocker *Action, ready bool) {
	ready = true
	for _, id := range a.deps {
		d := x.p.action(id)
		if d == nil {
			continue
		}
		if d.state.blocks() {
			return d, false
		}
		if !d.state.satisfies() {
			ready = false
		}
	}
	return nil, ready
}

// prepareInput replaces refs with the live output of the referenced
// actions and validates the result against the input schema.
func (x *executor) prepareInput(a *Action) error {
	lookup := func(ref ir.IRRef) (ir.IRValue, error) {
		target := x.p.action(ref.ActionID)
		if target == nil {
			return nil, fmt.Errorf("ref %s: no such action", ref)
		}
		v, ok := target.output.Get(ref.Path...)
		if !ok {
			return nil, fmt.Errorf("ref %s: value not set", ref)
		}
		return v, nil
	}

	resolved, err := ir.Resolve(a.input, lookup)
	if err != nil {
		return err
	}
	obj := resolved.(ir.IRObject)
	if err := x.e.registry.Schemas().Validate(a.def.Input, obj); err != nil {
		return err
	}

	x.p.mu.Lock()
	a.resolved = obj
	x.p.mu.Unlock()
	return nil
}

// step is the work a worker performs for one action. It returns the event
// to report.
type step func(a *Action) event

// dispatch hands a to a worker. Workers wait for a pool slot without
// blocking the coordinator.
func (x *executor) dispatch(a *Action, fn step, first bool) {
	a.dispatched = true
	x.inflight++
	x.waiting++

	go func() {
		// Polls wait for the rate limiter before taking a worker slot.
		if !first && x.e.polls != nil {
			if err := x.e.polls.Wait(x.ctx); err != nil {
				x.queue.Enqueue(event{typ: evSkipped, action: a, err: err})
				return
			}
		}
		if err := x.e.sem.Acquire(x.ctx, 1); err != nil {
			x.queue.Enqueue(event{typ: evSkipped, action: a, err: err})
			return
		}
		defer x.e.sem.Release(1)

		if first && x.p.cancelReq.Load() {
			x.queue.Enqueue(event{typ: evSkipped, action: a, err: errPlanCancelled})
			return
		}
		x.queue.Enqueue(event{typ: evStarted, action: a})
		x.queue.Enqueue(fn(a))
	}()
}

// runStep performs the run phase: Run for plain actions, Invoke for
// external tasks.
func (x *executor) runStep(a *Action) event {
	caps := a.def.Capabilities()
	switch {
	case caps.Has(CapPolling):
		return x.externalStep(a, a.def.Polling.Invoke)
	case caps.Has(CapRun):
		err := callHook(func() error { return a.def.Run(x.ctx, a) })
		return event{typ: evRunDone, action: a, err: err}
	default:
		return event{typ: evRunDone, action: a}
	}
}

func (x *executor) handle(ev event) {
	a := ev.action
	switch ev.typ {
	case evStarted:
		x.waiting--
		x.transition(a, StateRunning, ir.PhaseRun, nil)

	case evSkipped:
		x.inflight--
		x.waiting--
		a.dispatched = false
		if a.state == StateSuspended {
			x.transition(a, StateErrorRun, ir.PhaseRun, newActionError(KindExecutionError, ir.PhaseRun, a, ev.err))
			a.output.freeze()
			return
		}
		x.transition(a, StateCancelled, ir.PhaseRun, cancelledError(a, ir.PhaseRun, ev.err))

	case evRunDone:
		x.inflight--
		x.finishRun(a, ev.err)

	case evSuspend:
		x.inflight--
		if x.expired {
			x.transition(a, StateErrorRun, ir.PhaseRun, newActionError(KindExecutionError, ir.PhaseRun, a, x.ctx.Err()))
			a.output.freeze()
			return
		}
		x.transition(a, StateSuspended, ir.PhaseRun, nil)
		x.schedulePoll(a)

	case evPollDue:
		if _, ok := x.timers[a.id]; !ok || a.state != StateSuspended {
			return
		}
		delete(x.timers, a.id)
		x.dispatch(a, x.pollStep, false)

	case evCancel:
		x.cancelPending(errPlanCancelled)
	}
}

// finishRun records the end of a run phase and validates the output.
func (x *executor) finishRun(a *Action, err error) {
	if err != nil {
		ae := newActionError(KindExecutionError, ir.PhaseRun, a, err)
		x.transition(a, StateErrorRun, ir.PhaseRun, ae)
		a.output.freeze()
		slog.Error("action run failed",
			"plan_id", x.p.id,
			"action_id", a.id,
			"action", a.def.Name,
			"error", err,
		)
		return
	}
	if err := x.e.registry.Schemas().Validate(a.def.Output, a.output.Snapshot()); err != nil {
		x.transition(a, StateErrorRun, ir.PhaseRun, newActionError(KindSchemaViolation, ir.PhaseRun, a, err))
		a.output.freeze()
		return
	}
	x.transition(a, StateSuccessRun, ir.PhaseRun, nil)
}

// cancelPending cancels runnable actions that have not been dispatched.
func (x *executor) cancelPending(reason error) {
	for _, a := range x.p.actions {
		if a.runnable && a.state == StatePending && !a.dispatched {
			x.transition(a, StateCancelled, ir.PhaseRun, cancelledError(a, ir.PhaseRun, reason))
		}
	}
}

// onContextDone handles expiry of the execution context: nothing new
// starts and suspended external tasks stop polling with an error.
func (x *executor) onContextDone() {
	x.expired = true
	slog.Warn("plan context done", "plan_id", x.p.id, "error", x.ctx.Err())

	x.cancelPending(x.ctx.Err())
	for id, t := range x.timers {
		t.Stop()
		delete(x.timers, id)
		a := x.p.action(id)
		x.transition(a, StateErrorRun, ir.PhaseRun, newActionError(KindExecutionError, ir.PhaseRun, a, x.ctx.Err()))
		a.output.freeze()
	}
}

// finalizePass runs Finalize hooks of every action whose run succeeded,
// in dependency order with ID as tiebreak. A failing finalize does not
// stop the pass.
func (x *executor) finalizePass() {
	for _, a := range x.topoOrder() {
		if a.state != StateSuccessRun {
			continue
		}
		if !a.def.Capabilities().Has(CapFinalize) {
			x.transition(a, StateSuccess, ir.PhaseFinalize, nil)
			continue
		}

		var reason error
		switch {
		case x.expired || x.ctx.Err() != nil:
			reason = x.ctx.Err()
		case x.p.cancelReq.Load():
			reason = errPlanCancelled
		}
		if reason != nil {
			x.transition(a, StateCancelled, ir.PhaseFinalize, cancelledError(a, ir.PhaseFinalize, reason))
			continue
		}

		x.transition(a, StateRunningFinalize, ir.PhaseFinalize, nil)
		err := callHook(func() error { return a.def.Finalize(x.ctx, a) })
		if err != nil {
			slog.Error("action finalize failed",
				"plan_id", x.p.id,
				"action_id", a.id,
				"action", a.def.Name,
				"error", err,
			)
			x.transition(a, StateError, ir.PhaseFinalize, newActionError(KindFinalizeError, ir.PhaseFinalize, a, err))
			continue
		}
		if err := x.e.registry.Schemas().Validate(a.def.Output, a.output.Snapshot()); err != nil {
			x.transition(a, StateError, ir.PhaseFinalize, newActionError(KindSchemaViolation, ir.PhaseFinalize, a, err))
			continue
		}
		x.transition(a, StateSuccess, ir.PhaseFinalize, nil)
	}
}

// topoOrder sorts runnable actions so that dependencies come first,
// choosing the lowest ID among ready actions (Kahn's algorithm).
func (x *executor) topoOrder() []*Action {
	indeg := make(map[int64]int)
	dependents := make(map[int64][]int64)
	var nodes []int64
	for _, a := range x.p.actions {
		if !a.runnable {
			continue
		}
		nodes = append(nodes, a.id)
		indeg[a.id] += 0
		for _, d := range a.deps {
			if dep := x.p.action(d); dep != nil && dep.runnable {
				indeg[a.id]++
				dependents[d] = append(dependents[d], a.id)
			}
		}
	}

	var ready []int64
	for _, id := range nodes {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]*Action, 0, len(nodes))
	placed := make(map[int64]bool, len(nodes))
	for len(ready) > 0 {
		slices.Sort(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, x.p.action(id))
		placed[id] = true
		for _, next := range dependents[id] {
			indeg[next]--
			if indeg[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	for _, id := range nodes {
		if !placed[id] {
			order = append(order, x.p.action(id))
		}
	}
	return order
}

// settleComposites gives actions without a run step the state of their
// subtree: error if anything below failed, cancelled if anything was
// cancelled, success otherwise.
func (x *executor) settleComposites() {
	for i := len(x.p.actions) - 1; i >= 0; i-- {
		a := x.p.actions[i]
		if a.runnable || a.state != StatePending {
			continue
		}
		state := StateSuccess
		for _, d := range a.Descendants() {
			switch {
			case d.state.Failed():
				state = StateError
			case d.state == StateCancelled && state != StateError:
				state = StateCancelled
			}
		}
		x.transition(a, state, ir.PhaseFinalize, nil)
	}
}

// finish computes the final plan status and notifies observers.
func (x *executor) finish() {
	status := StatusSuccess
	for _, a := range x.p.actions {
		if a.state.Failed() {
			status = StatusError
			break
		}
		if a.state == StateCancelled {
			status = StatusCancelled
		}
	}
	x.p.setStatus(status)
	slog.Info("plan finished", "plan_id", x.p.id, "root", x.p.root.def.Name, "status", status)
	x.e.observers.PlanEvent(x.p.planEvent())
}

// refreshStatus publishes running or suspended while the plan executes.
func (x *executor) refreshStatus() {
	status := StatusRunning
	if x.waiting == 0 {
		var running, suspended bool
		for _, a := range x.p.actions {
			switch a.state {
			case StateRunning:
				running = true
			case StateSuspended:
				suspended = true
			}
		}
		if suspended && !running {
			status = StatusSuspended
		}
	}
	if x.p.setStatus(status) {
		x.e.observers.PlanEvent(x.p.planEvent())
	}
}

// transition sets a's state and notifies observers outside the lock.
func (x *executor) transition(a *Action, state State, phase ir.Phase, aerr *ActionError) {
	x.p.mu.Lock()
	a.state = state
	if aerr != nil {
		a.err = aerr
	}
	x.p.mu.Unlock()

	slog.Debug("action transition",
		"plan_id", x.p.id,
		"action_id", a.id,
		"action", a.def.Name,
		"phase", phase,
		"state", state,
	)
	x.e.observers.ActionEvent(x.p.actionEvent(a, phase))
}

func cancelledError(a *Action, phase ir.Phase, reason error) *ActionError {
	return &ActionError{
		Kind:     KindCancelled,
		Phase:    phase,
		ActionID: a.id,
		Action:   a.def.Name,
		Message:  reason.Error(),
		Err:      reason,
	}
}

// callHook invokes a hook, recovering panics as errors.
func callHook(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return fn()
}
