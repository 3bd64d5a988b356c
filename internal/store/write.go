package store

import (
	"context"
	"fmt"

	"github.com/roach88/actionplan/internal/ir"
)

// WriteActionEvent appends an action event to the journal.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - event IDs are content
// addressed, so writing the same event twice is silently ignored.
//
// Input and output are serialized to canonical JSON per RFC 8785.
func (s *Store) WriteActionEvent(ctx context.Context, ev ir.ActionEvent) error {
	if ev.ID == "" {
		return fmt.Errorf("write action event: empty id")
	}
	inputJSON, err := marshalRecord(ev.Input)
	if err != nil {
		return fmt.Errorf("write action event: input: %w", err)
	}
	outputJSON, err := marshalRecord(ev.Output)
	if err != nil {
		return fmt.Errorf("write action event: output: %w", err)
	}
	depsJSON, err := marshalDeps(ev.DependsOn)
	if err != nil {
		return fmt.Errorf("write action event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO phase_events
		(id, plan_id, action_id, action, phase, state, seq, parent_id, trigger_id,
		 depends_on, input, output, progress, error_kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.PlanID,
		ev.ActionID,
		ev.Action,
		string(ev.Phase),
		ev.State,
		ev.Seq,
		ev.ParentID,
		ev.TriggerID,
		depsJSON,
		inputJSON,
		outputJSON,
		ev.Progress,
		ev.ErrorKind,
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("write action event: %w", err)
	}
	s.forget(ev.PlanID)
	return nil
}

// WritePlanEvent records a plan status change. The first event for a plan
// creates its row; later events update status and progress. Events older
// than the stored one never overwrite it.
func (s *Store) WritePlanEvent(ctx context.Context, ev ir.PlanEvent) error {
	if ev.PlanID == "" {
		return fmt.Errorf("write plan event: empty plan id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans
		(id, root_action, status, progress, first_seq, last_seq, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status   = excluded.status,
			progress = excluded.progress,
			last_seq = excluded.last_seq
		WHERE excluded.last_seq > plans.last_seq
	`,
		ev.PlanID,
		ev.RootAction,
		ev.Status,
		ev.Progress,
		ev.Seq,
		ev.Seq,
		ir.EngineVersion,
		ir.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write plan event: %w", err)
	}
	s.forget(ev.PlanID)
	return nil
}

// forget drops any cached replay of planID.
func (s *Store) forget(planID string) {
	if s.replays != nil {
		s.replays.Remove(planID)
	}
}
