package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/schema"
)

func noopTask() *ExternalTask {
	poll := func(ctx context.Context, a *Action) (ir.IRObject, error) { return nil, nil }
	return &ExternalTask{Invoke: poll, Poll: poll}
}

func TestRegistry_RegisterRejectsInvalid(t *testing.T) {
	run := func(ctx context.Context, a *Action) error { return nil }

	tests := []struct {
		name    string
		def     *Definition
		wantErr string
	}{
		{"nil", nil, "cannot be nil"},
		{"empty name", &Definition{}, "cannot be empty"},
		{"dotted name", &Definition{Name: "A.b"}, "dots or spaces"},
		{"spaced name", &Definition{Name: "A b"}, "dots or spaces"},
		{"polling without poll", &Definition{Name: "P", Polling: &ExternalTask{Invoke: noopTask().Invoke}}, "requires Invoke and Poll"},
		{"run and polling", &Definition{Name: "P", Run: run, Polling: noopTask()}, "not both"},
		{"empty subscription", &Definition{Name: "S", Subscribe: []string{""}}, "empty subscription"},
		{"duplicate subscription", &Definition{Name: "S", Subscribe: []string{"T", "T"}}, "duplicate subscription"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(dummy("A")))

	err := r.Register(dummy("A"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_SchemasAndOrder(t *testing.T) {
	r := NewRegistry().MustRegister(
		&Definition{Name: "B", Input: schema.Record(schema.Required("x", schema.Int()))},
		&Definition{Name: "A", Output: schema.Record(schema.Required("y", schema.Bool()))},
	)

	var names []string
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"B", "A"}, names, "registration order")

	assert.Equal(t, []string{"A.output", "B.input"}, r.Schemas().Names())

	_, ok := r.Lookup("A")
	assert.True(t, ok)
	_, ok = r.Lookup("C")
	assert.False(t, ok)
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry().MustRegister(&Definition{})
	})
}

func TestRegistry_Subscribers(t *testing.T) {
	r := NewRegistry().MustRegister(
		dummy("T"),
		&Definition{Name: "S1", Subscribe: []string{"T"}},
		&Definition{Name: "S2", Subscribe: []string{"T", "U"}},
	)

	subs := r.Subscribers("T")
	require.Len(t, subs, 2)
	assert.Equal(t, "S1", subs[0].Name)
	assert.Equal(t, "S2", subs[1].Name)
	assert.Len(t, r.Subscribers("U"), 1)
	assert.Empty(t, r.Subscribers("S1"))
}

func TestRegistry_ValidateUnregisteredTrigger(t *testing.T) {
	r := NewRegistry().MustRegister(&Definition{Name: "S", Subscribe: []string{"Missing"}})

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unregistered action "Missing"`)
}

func TestRegistry_ValidateSchemaRefs(t *testing.T) {
	r := NewRegistry().MustRegister(&Definition{
		Name:  "Merge",
		Input: schema.Record(schema.Required("ci", schema.Ref("Ci.output"))),
	})

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ci.output")

	require.NoError(t, r.Register(&Definition{
		Name:   "Ci",
		Output: schema.Record(schema.Required("passed", schema.Bool())),
	}))
	assert.NoError(t, r.Validate())
}

func TestRegistry_ValidateSubscriptionCycle(t *testing.T) {
	r := NewRegistry().MustRegister(
		&Definition{Name: "A", Subscribe: []string{"B"}},
		&Definition{Name: "B", Subscribe: []string{"A"}},
	)

	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription cycle A → B → A")
}

func TestAnalyzeSubscriptions(t *testing.T) {
	tests := []struct {
		name  string
		defs  []*Definition
		paths [][]string
	}{
		{
			name: "no cycles",
			defs: []*Definition{dummy("T"), {Name: "S", Subscribe: []string{"T"}}},
		},
		{
			name:  "self loop",
			defs:  []*Definition{{Name: "A", Subscribe: []string{"A"}}},
			paths: [][]string{{"A", "A"}},
		},
		{
			name: "three node cycle",
			defs: []*Definition{
				{Name: "A", Subscribe: []string{"C"}},
				{Name: "B", Subscribe: []string{"A"}},
				{Name: "C", Subscribe: []string{"B"}},
			},
			paths: [][]string{{"A", "B", "C", "A"}},
		},
		{
			name: "two separate cycles",
			defs: []*Definition{
				{Name: "A", Subscribe: []string{"B"}},
				{Name: "B", Subscribe: []string{"A"}},
				{Name: "X", Subscribe: []string{"X"}},
			},
			paths: [][]string{{"A", "B", "A"}, {"X", "X"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycles := AnalyzeSubscriptions(NewRegistry().MustRegister(tt.defs...))
			var paths [][]string
			for _, c := range cycles {
				paths = append(paths, c.Path)
			}
			assert.ElementsMatch(t, tt.paths, paths)
		})
	}
}

func TestCapabilities(t *testing.T) {
	run := func(ctx context.Context, a *Action) error { return nil }

	assert.Equal(t, "none", (&Definition{Name: "X"}).Capabilities().String())

	d := &Definition{
		Name:        "X",
		Run:         run,
		Finalize:    run,
		Subscribe:   []string{"T"},
		RunProgress: func(*Action) float64 { return 0 },
		Plan:        func(*PlanContext, ...ir.IRValue) error { return nil },
	}
	caps := d.Capabilities()
	assert.True(t, caps.Has(CapRun|CapFinalize))
	assert.False(t, caps.Has(CapPolling))
	assert.Equal(t, "run|finalize|subscribes|progress|plan", caps.String())

	assert.True(t, (&Definition{Name: "P", Polling: noopTask()}).Capabilities().Has(CapPolling))
}

func TestDefinitionWeights(t *testing.T) {
	assert.Equal(t, 1.0, (&Definition{}).runWeight())
	assert.Equal(t, 4.0, (&Definition{RunWeight: 4}).runWeight())
	assert.Equal(t, 0.0, (&Definition{}).finalizeWeight())
	assert.Equal(t, 0.0, (&Definition{FinalizeWeight: -1}).finalizeWeight())
	assert.Equal(t, 5.0, (&Definition{FinalizeWeight: 5}).finalizeWeight())
}
