package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/actionplan/internal/ir"
)

// Journal writes observer events to the store. It satisfies
// engine.Observer.
//
// Observer callbacks cannot return errors, so write failures are logged and
// the first one is kept for Err.
type Journal struct {
	store *Store
	ctx   context.Context

	mu  sync.Mutex
	err error
}

// NewJournal returns a journal writing with ctx.
func NewJournal(ctx context.Context, s *Store) *Journal {
	return &Journal{store: s, ctx: ctx}
}

// ActionEvent journals an action transition.
func (j *Journal) ActionEvent(ev ir.ActionEvent) {
	if err := j.store.WriteActionEvent(j.ctx, ev); err != nil {
		j.fail(err, "plan_id", ev.PlanID, "action_id", ev.ActionID, "action", ev.Action, "state", ev.State)
	}
}

// PlanEvent journals a plan status change.
func (j *Journal) PlanEvent(ev ir.PlanEvent) {
	if err := j.store.WritePlanEvent(j.ctx, ev); err != nil {
		j.fail(err, "plan_id", ev.PlanID, "status", ev.Status)
	}
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Journal) fail(err error, attrs ...any) {
	slog.Error("journal write failed", append(attrs, "error", err)...)
	j.mu.Lock()
	if j.err == nil {
		j.err = err
	}
	j.mu.Unlock()
}
