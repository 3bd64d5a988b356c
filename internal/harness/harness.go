package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/actionplan/internal/engine"
	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/store"
	"github.com/roach88/actionplan/internal/testutil"
)

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	PlanID   string `json:"plan_id"`
	Status   string `json:"status"`
	Progress int64  `json:"progress"`

	// Actions is the plan replayed from the journal, ordered by action ID.
	Actions []store.ActionState `json:"actions"`

	// Trace lists every phase transition in the order observed.
	Trace []string `json:"trace"`

	// Errors holds one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	events []ir.ActionEvent
}

// AddError records a failed assertion.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Find returns the actions of kind name in plan order.
func (r *Result) Find(name string) []store.ActionState {
	var out []store.ActionState
	for _, a := range r.Actions {
		if a.Action == name {
			out = append(out, a)
		}
	}
	return out
}

// Env overrides what Run builds for a scenario.
type Env struct {
	// Store receives the journal. Nil opens a fresh in-memory store.
	Store *store.Store

	// Options configure the engine. Nil uses sequential plan IDs and a
	// fresh logical clock.
	Options []engine.EngineOption
}

// Run plans and executes scenario against reg in a fresh in-memory journal,
// then evaluates its assertions.
//
// The returned error reports harness failures (unknown action, journal
// errors, timeout); failed assertions are reported through Result.
func Run(ctx context.Context, scenario *Scenario, reg *engine.Registry) (*Result, error) {
	return RunIn(ctx, scenario, reg, Env{})
}

// RunIn is Run with an explicit journal and engine configuration.
func RunIn(ctx context.Context, scenario *Scenario, reg *engine.Registry, env Env) (*Result, error) {
	st := env.Store
	if st == nil {
		mem, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer mem.Close()
		st = mem
	}

	timeout := scenario.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := testutil.NewRecorder()
	journal := store.NewJournal(ctx, st)
	var opts []engine.EngineOption
	if env.Options == nil {
		opts = testutil.EngineOptions(rec, "plan")
	} else {
		opts = append(slices.Clone(env.Options), engine.WithObserver(rec))
	}
	opts = append(opts, engine.WithObserver(journal))
	if scenario.Workers > 0 {
		opts = append(opts, engine.WithWorkers(scenario.Workers))
	}
	eng := engine.New(reg, opts...)

	// Continue numbering after events already in the journal.
	maxSeq, err := st.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	eng.Clock().AdvanceTo(maxSeq)

	args, err := scenario.IRArgs()
	if err != nil {
		return nil, err
	}
	p, err := eng.Plan(scenario.Action, args...)
	if err != nil {
		return nil, err
	}
	if err := eng.Execute(ctx, p); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if err := journal.Err(); err != nil {
		return nil, fmt.Errorf("scenario %s: journal: %w", scenario.Name, err)
	}

	replayed, err := st.ReplayPlan(ctx, p.ID())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := &Result{
		Pass:     true,
		PlanID:   p.ID(),
		Status:   replayed.Plan.Status,
		Progress: replayed.Plan.Progress,
		Actions:  replayed.Actions,
		Trace:    rec.Trace(),
		events:   rec.Events(),
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"plan_id", result.PlanID,
		"status", result.Status,
		"actions", len(result.Actions),
		"pass", result.Pass,
	)
	return result, nil
}
