package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/ir"
)

// recorder collects observer events.
type recorder struct {
	mu      sync.Mutex
	actions []ir.ActionEvent
	plans   []ir.PlanEvent
}

func (r *recorder) ActionEvent(ev ir.ActionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, ev)
}

func (r *recorder) PlanEvent(ev ir.PlanEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = append(r.plans, ev)
}

// states returns the states action id went through, in order.
func (r *recorder) states(id int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.actions {
		if ev.ActionID == id {
			out = append(out, ev.State)
		}
	}
	return out
}

// indexOf returns the position of the first event of action id in state,
// or -1.
func (r *recorder) indexOf(id int64, state State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ev := range r.actions {
		if ev.ActionID == id && ev.State == string(state) {
			return i
		}
	}
	return -1
}

func (r *recorder) planStatuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.plans {
		out = append(out, ev.Status)
	}
	return out
}

func (r *recorder) events() []ir.ActionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.ActionEvent, len(r.actions))
	copy(out, r.actions)
	return out
}

func newTestEngine(t *testing.T, defs []*Definition, opts ...EngineOption) (*Engine, *recorder) {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(defs...))
	rec := &recorder{}
	opts = append([]EngineOption{
		WithObserver(rec),
		WithPlanIDGenerator(NewFixedGenerator("plan-1", "plan-2", "plan-3")),
		WithPollInterval(time.Millisecond),
	}, opts...)
	return New(reg, opts...), rec
}

// runPlan plans and executes name, failing the test on engine errors.
func runPlan(t *testing.T, e *Engine, name string, args ...ir.IRValue) *Plan {
	t.Helper()
	p, err := e.Plan(name, args...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Execute(ctx, p))
	return p
}

// only returns the single action named name.
func only(t *testing.T, p *Plan, name string) *Action {
	t.Helper()
	found := p.Find(name)
	require.Len(t, found, 1, "actions named %s", name)
	return found[0]
}

func dummy(name string) *Definition {
	return &Definition{Name: name}
}

func failing(name string) *Definition {
	return &Definition{
		Name: name,
		Run: func(ctx context.Context, a *Action) error {
			return Fail("%s failed", name)
		},
	}
}

// planChildren returns a Plan hook that plans the named kinds in sequence.
func planChildren(names ...string) func(*PlanContext, ...ir.IRValue) error {
	return func(p *PlanContext, args ...ir.IRValue) error {
		for _, n := range names {
			if _, err := p.PlanAction(n); err != nil {
				return err
			}
		}
		return nil
	}
}
