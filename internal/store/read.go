package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/actionplan/internal/ir"
)

const eventColumns = `id, plan_id, action_id, action, phase, state, seq, parent_id, trigger_id,
	depends_on, input, output, progress, error_kind, error`

const planColumns = `id, root_action, status, progress, first_seq, last_seq`

// ReadPlanEvents returns every action event of a plan.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the plan has no events.
func (s *Store) ReadPlanEvents(ctx context.Context, planID string) ([]ir.ActionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM phase_events
		WHERE plan_id = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("read plan events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ReadActionEvents returns the events of one action of a plan, in seq order.
func (s *Store) ReadActionEvents(ctx context.Context, planID string, actionID int64) ([]ir.ActionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM phase_events
		WHERE plan_id = ? AND action_id = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, planID, actionID)
	if err != nil {
		return nil, fmt.Errorf("read action events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ReadEvent retrieves a single action event by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEvent(ctx context.Context, id string) (ir.ActionEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM phase_events
		WHERE id = ?
	`, id)
	return scanEvent(row)
}

// ReadPlan retrieves a plan summary by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPlan(ctx context.Context, id string) (ir.PlanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+planColumns+`
		FROM plans
		WHERE id = ?
	`, id)
	return scanPlan(row)
}

// ListPlans returns all journaled plans in creation order.
// Results ordered by first_seq ASC, id ASC.
func (s *Store) ListPlans(ctx context.Context) ([]ir.PlanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM plans
		ORDER BY first_seq ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := []ir.PlanRecord{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("list plans: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// MaxSeq returns the highest seq in the journal, 0 when empty. A clock
// created with engine.NewClockAt(MaxSeq) continues numbering after it.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT COALESCE(MAX(seq), 0) AS seq FROM phase_events
			UNION ALL
			SELECT COALESCE(MAX(last_seq), 0) FROM plans
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func collectEvents(rows *sql.Rows) ([]ir.ActionEvent, error) {
	events := []ir.ActionEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanEvent scans a row into an ActionEvent.
func scanEvent(row scanner) (ir.ActionEvent, error) {
	var ev ir.ActionEvent
	var phase, depsJSON, inputJSON, outputJSON string

	if err := row.Scan(
		&ev.ID, &ev.PlanID, &ev.ActionID, &ev.Action, &phase, &ev.State, &ev.Seq,
		&ev.ParentID, &ev.TriggerID, &depsJSON, &inputJSON, &outputJSON,
		&ev.Progress, &ev.ErrorKind, &ev.Error,
	); err != nil {
		if err == sql.ErrNoRows {
			return ir.ActionEvent{}, err
		}
		return ir.ActionEvent{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Phase = ir.Phase(phase)

	var err error
	if ev.DependsOn, err = unmarshalDeps(depsJSON); err != nil {
		return ir.ActionEvent{}, err
	}
	if ev.Input, err = unmarshalRecord(inputJSON); err != nil {
		return ir.ActionEvent{}, err
	}
	if ev.Output, err = unmarshalRecord(outputJSON); err != nil {
		return ir.ActionEvent{}, err
	}
	return ev, nil
}

func scanPlan(row scanner) (ir.PlanRecord, error) {
	var p ir.PlanRecord
	if err := row.Scan(&p.ID, &p.RootAction, &p.Status, &p.Progress, &p.FirstSeq, &p.LastSeq); err != nil {
		if err == sql.ErrNoRows {
			return ir.PlanRecord{}, err
		}
		return ir.PlanRecord{}, fmt.Errorf("scan plan: %w", err)
	}
	return p, nil
}
