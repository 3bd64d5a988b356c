package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/actionplan/internal/ir"
)

// externalStep performs one invoke or poll of an external task, stores the
// returned state and reports whether the task must be polled again.
func (x *executor) externalStep(a *Action, call func(context.Context, *Action) (ir.IRObject, error)) event {
	task := a.def.Polling

	var state ir.IRObject
	err := callHook(func() error {
		var err error
		state, err = call(x.ctx, a)
		return err
	})
	if err == nil {
		err = callHook(func() error { return storeTaskState(task, a, state) })
	}
	if err != nil {
		return event{typ: evRunDone, action: a, err: err}
	}

	var done bool
	err = callHook(func() error {
		done = taskDone(task, a)
		return nil
	})
	switch {
	case err != nil:
		return event{typ: evRunDone, action: a, err: err}
	case done:
		return event{typ: evRunDone, action: a}
	default:
		return event{typ: evSuspend, action: a}
	}
}

// pollStep polls a suspended external task.
func (x *executor) pollStep(a *Action) event {
	return x.externalStep(a, a.def.Polling.Poll)
}

// schedulePoll arms the poll timer of a suspended action. The timer only
// enqueues; the coordinator dispatches the poll.
func (x *executor) schedulePoll(a *Action) {
	interval := a.def.Polling.Interval
	if interval <= 0 {
		interval = x.e.pollInterval
	}

	slog.Debug("external task suspended",
		"plan_id", x.p.id,
		"action_id", a.id,
		"action", a.def.Name,
		"interval", interval,
	)

	q := x.queue
	x.timers[a.id] = time.AfterFunc(interval, func() {
		q.Enqueue(event{typ: evPollDue, action: a})
	})
}

func storeTaskState(task *ExternalTask, a *Action, state ir.IRObject) error {
	if task.Store != nil {
		return task.Store(a, state)
	}
	return a.output.Update(state)
}

func taskDone(task *ExternalTask, a *Action) bool {
	if task.Done != nil {
		return task.Done(a)
	}
	return a.output.Bool("done")
}
