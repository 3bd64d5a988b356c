package store

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/queryir"
)

func TestQueryEvents(t *testing.T) {
	s := createTestStore(t)

	failed := createTestEvent("plan-1", 2, ir.PhaseRun, "error_run", 4)
	failed.Action = "Review"
	failed.ErrorKind = "EXECUTION_ERROR"
	writeEvents(t, s,
		createTestEvent("plan-1", 1, ir.PhasePlan, "pending", 1),
		createTestEvent("plan-1", 2, ir.PhaseRun, "running", 3),
		failed,
		createTestEvent("plan-1", 3, ir.PhaseRun, "cancelled", 5),
		createTestEvent("plan-2", 1, ir.PhaseRun, "error_run", 6),
	)

	tests := []struct {
		name     string
		filter   queryir.Predicate
		wantSeqs []int64
	}{
		{"no filter", nil, []int64{1, 3, 4, 5}},
		{"by action", queryir.Equals{Field: "action", Value: ir.IRString("Review")}, []int64{4}},
		{
			"failures",
			queryir.OneOf{Field: "state", Values: []ir.IRValue{ir.IRString("error_run"), ir.IRString("cancelled")}},
			[]int64{4, 5},
		},
		{
			"action and seq",
			queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "action_id", Value: ir.IRInt(2)},
				queryir.AtLeast{Field: "seq", Value: 4},
			}},
			[]int64{4},
		},
		{"no match", queryir.Equals{Field: "error_kind", Value: ir.IRString("FINALIZE_ERROR")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.QueryEvents(context.Background(), queryir.Events{Plan: "plan-1", Filter: tt.filter})
			if err != nil {
				t.Fatalf("QueryEvents() failed: %v", err)
			}
			if events == nil {
				t.Fatal("QueryEvents() returned nil, want empty slice")
			}
			if len(events) != len(tt.wantSeqs) {
				t.Fatalf("len(events) = %d, want %d", len(events), len(tt.wantSeqs))
			}
			for i, want := range tt.wantSeqs {
				if events[i].Seq != want {
					t.Errorf("events[%d].Seq = %d, want %d", i, events[i].Seq, want)
				}
				if events[i].PlanID != "plan-1" {
					t.Errorf("events[%d].PlanID = %q, want plan-1", i, events[i].PlanID)
				}
			}
		})
	}
}

func TestQueryEvents_Invalid(t *testing.T) {
	s := createTestStore(t)

	_, err := s.QueryEvents(context.Background(), queryir.Events{
		Plan:   "plan-1",
		Filter: queryir.Equals{Field: "input", Value: ir.IRString("{}")},
	})
	if err == nil {
		t.Fatal("QueryEvents() succeeded, want error")
	}
	if !strings.Contains(err.Error(), `unknown field "input"`) {
		t.Errorf("error = %v, want unknown field", err)
	}
}

func TestQueryPlans(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, ev := range []ir.PlanEvent{
		createTestPlanEvent("plan-1", "running", 1),
		createTestPlanEvent("plan-1", "success", 4),
		createTestPlanEvent("plan-2", "running", 5),
		createTestPlanEvent("plan-2", "error", 9),
		createTestPlanEvent("plan-3", "running", 10),
	} {
		if err := s.WritePlanEvent(ctx, ev); err != nil {
			t.Fatalf("WritePlanEvent() failed: %v", err)
		}
	}

	plans, err := s.QueryPlans(ctx, queryir.Plans{
		Filter: queryir.OneOf{Field: "status", Values: []ir.IRValue{ir.IRString("error"), ir.IRString("running")}},
	})
	if err != nil {
		t.Fatalf("QueryPlans() failed: %v", err)
	}
	var ids []string
	for _, p := range plans {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "plan-2,plan-3" {
		t.Errorf("plans = %v, want [plan-2 plan-3]", ids)
	}

	all, err := s.QueryPlans(ctx, queryir.Plans{})
	if err != nil {
		t.Fatalf("QueryPlans() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}
