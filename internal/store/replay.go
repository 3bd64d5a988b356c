package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/actionplan/internal/ir"
)

// ActionState is the last journaled state of one action.
type ActionState struct {
	ID        int64
	Action    string
	ParentID  int64
	TriggerID int64
	DependsOn []int64
	Phase     ir.Phase
	State     string
	Input     ir.IRObject
	Output    ir.IRObject
	Progress  int64
	ErrorKind string
	Error     string
	Events    int // Number of journaled transitions
}

// PlanState is a plan rebuilt from its journal.
type PlanState struct {
	Plan    ir.PlanRecord
	Actions []ActionState // Ordered by action ID
	LastSeq int64

	// Finished is false for plans interrupted before their final status
	// was journaled, for example by a crash.
	Finished bool
}

// Action returns the state of the action with the given ID.
func (ps PlanState) Action(id int64) (ActionState, bool) {
	for _, a := range ps.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return ActionState{}, false
}

// ReplayPlan folds the journaled events of a plan into the final state of
// every action. Later events win, so the result matches the plan as it was
// when the last event was written.
//
// Returns sql.ErrNoRows if the plan was never journaled.
func (s *Store) ReplayPlan(ctx context.Context, planID string) (PlanState, error) {
	if s.replays != nil {
		if cached, ok := s.replays.Get(planID); ok {
			cached.Actions = slices.Clone(cached.Actions)
			return cached, nil
		}
	}

	plan, err := s.ReadPlan(ctx, planID)
	if err != nil {
		if err == sql.ErrNoRows {
			return PlanState{}, err
		}
		return PlanState{}, fmt.Errorf("replay plan: %w", err)
	}

	events, err := s.ReadPlanEvents(ctx, planID)
	if err != nil {
		return PlanState{}, fmt.Errorf("replay plan: %w", err)
	}

	state := PlanState{
		Plan:     plan,
		LastSeq:  plan.LastSeq,
		Finished: isFinished(plan.Status),
	}

	byID := make(map[int64]*ActionState)
	for _, ev := range events {
		a, ok := byID[ev.ActionID]
		if !ok {
			a = &ActionState{ID: ev.ActionID}
			byID[ev.ActionID] = a
		}
		a.Action = ev.Action
		a.ParentID = ev.ParentID
		a.TriggerID = ev.TriggerID
		a.DependsOn = ev.DependsOn
		a.Phase = ev.Phase
		a.State = ev.State
		a.Input = ev.Input
		a.Output = ev.Output
		a.Progress = ev.Progress
		a.ErrorKind = ev.ErrorKind
		a.Error = ev.Error
		a.Events++
		state.LastSeq = max(state.LastSeq, ev.Seq)
	}

	for _, a := range byID {
		state.Actions = append(state.Actions, *a)
	}
	slices.SortFunc(state.Actions, func(a, b ActionState) int {
		return int(a.ID - b.ID)
	})
	if state.Finished && s.replays != nil {
		s.replays.Add(planID, state)
		state.Actions = slices.Clone(state.Actions)
	}
	return state, nil
}

// FindUnfinishedPlans returns plans whose final status was never journaled.
// Results ordered by first_seq ASC, id ASC.
func (s *Store) FindUnfinishedPlans(ctx context.Context) ([]ir.PlanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM plans
		WHERE status NOT IN ('success', 'error', 'cancelled')
		ORDER BY first_seq ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("find unfinished plans: %w", err)
	}
	defer rows.Close()

	plans := []ir.PlanRecord{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("find unfinished plans: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find unfinished plans: %w", err)
	}
	return plans, nil
}

func isFinished(status string) bool {
	switch status {
	case "success", "error", "cancelled":
		return true
	}
	return false
}
