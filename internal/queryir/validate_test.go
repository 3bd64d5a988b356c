package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/ir"
)

func TestValidate_Valid(t *testing.T) {
	queries := map[string]Query{
		"events without filter": Events{Plan: "plan-1"},
		"plans without filter":  Plans{},
		"events pointer":        &Events{Plan: "plan-1", Filter: &Equals{Field: "action", Value: ir.IRString("Review")}},
		"nested and": Events{Plan: "plan-1", Filter: And{Predicates: []Predicate{
			Equals{Field: "state", Value: ir.IRString("error_run")},
			And{Predicates: []Predicate{
				AtLeast{Field: "seq", Value: 10},
				OneOf{Field: "action_id", Values: []ir.IRValue{ir.IRInt(1), ir.IRInt(3)}},
			}},
		}}},
		"plan status": Plans{Filter: OneOf{Field: "status", Values: []ir.IRValue{ir.IRString("error"), ir.IRString("cancelled")}}},
		"empty one of": Plans{Filter: OneOf{Field: "root_action"}},
		"empty and":    Plans{Filter: And{}},
	}

	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, Validate(q))
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"nil query", nil, []string{"nil query"}},
		{"missing plan", Events{}, []string{"events query needs a plan"}},
		{
			"unknown event field",
			Events{Plan: "p", Filter: Equals{Field: "status", Value: ir.IRString("error")}},
			[]string{`unknown field "status"`},
		},
		{
			"unknown plan field",
			Plans{Filter: Equals{Field: "state", Value: ir.IRString("error")}},
			[]string{`unknown field "state"`},
		},
		{
			"kind mismatch",
			Events{Plan: "p", Filter: Equals{Field: "action_id", Value: ir.IRString("1")}},
			[]string{`field "action_id" is int, not string`},
		},
		{
			"at least on string",
			Plans{Filter: AtLeast{Field: "status", Value: 1}},
			[]string{`field "status" is string, not int`},
		},
		{
			"uncomparable literal",
			Events{Plan: "p", Filter: Equals{Field: "state", Value: ir.IRBool(true)}},
			[]string{`field "state": cannot compare with ir.IRBool`},
		},
		{
			"all problems reported",
			Events{Filter: And{Predicates: []Predicate{
				Equals{Field: "nope", Value: ir.IRString("x")},
				OneOf{Field: "seq", Values: []ir.IRValue{ir.IRInt(1), ir.IRNull{}}},
			}}},
			[]string{"events query needs a plan", `unknown field "nope"`, `field "seq": cannot compare with ir.IRNull`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestFields(t *testing.T) {
	assert.Equal(t, EventFields, Fields(Events{}))
	assert.Equal(t, EventFields, Fields(&Events{}))
	assert.Equal(t, PlanFields, Fields(Plans{}))
	assert.Nil(t, Fields(nil))
}
