package store

import (
	"context"
	"fmt"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/queryir"
	"github.com/roach88/actionplan/internal/querysql"
)

var queries = &querysql.Compiler{
	EventColumns: eventColumns,
	PlanColumns:  planColumns,
}

// QueryEvents returns the events of q.Plan matching q.Filter, in journal
// order. Returns an empty slice (not nil) when nothing matches.
func (s *Store) QueryEvents(ctx context.Context, q queryir.Events) ([]ir.ActionEvent, error) {
	stmt, params, err := queries.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// QueryPlans returns the plans matching q.Filter in creation order.
func (s *Store) QueryPlans(ctx context.Context, q queryir.Plans) ([]ir.PlanRecord, error) {
	stmt, params, err := queries.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []ir.PlanRecord{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("query plans: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	return plans, nil
}
