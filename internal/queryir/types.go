package queryir

import "github.com/roach88/actionplan/internal/ir"

// Query is a journal query. Only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate is a filter condition. Only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Events selects the phase events of one plan in journal order.
//
//	Events{
//	  Plan:   "0192...",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "action", Value: ir.IRString("Review")},
//	    OneOf{Field: "state", Values: []ir.IRValue{ir.IRString("error_run"), ir.IRString("error")}},
//	  }},
//	}
type Events struct {
	Plan   string    // required
	Filter Predicate // nil = every event
}

func (Events) queryNode() {}

// Plans selects plan summaries in creation order.
type Plans struct {
	Filter Predicate // nil = every plan
}

func (Plans) queryNode() {}

// Equals is true when the field equals a literal.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// OneOf is true when the field equals any of the literals. An empty list
// matches nothing.
type OneOf struct {
	Field  string
	Values []ir.IRValue
}

func (OneOf) predicateNode() {}

// AtLeast is true when an int field is greater than or equal to Value.
type AtLeast struct {
	Field string
	Value int64
}

func (AtLeast) predicateNode() {}

// And is true when every predicate is true. Empty is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Column kinds.
const (
	KindString = "string"
	KindInt    = "int"
)

// EventFields maps the filterable phase event columns to their kinds.
var EventFields = map[string]string{
	"action":     KindString,
	"phase":      KindString,
	"state":      KindString,
	"error_kind": KindString,
	"action_id":  KindInt,
	"parent_id":  KindInt,
	"trigger_id": KindInt,
	"seq":        KindInt,
	"progress":   KindInt,
}

// PlanFields maps the filterable plan columns to their kinds.
var PlanFields = map[string]string{
	"id":          KindString,
	"root_action": KindString,
	"status":      KindString,
	"progress":    KindInt,
	"first_seq":   KindInt,
	"last_seq":    KindInt,
}

// Fields returns the filterable columns of the query's source.
func Fields(q Query) map[string]string {
	switch q.(type) {
	case Events, *Events:
		return EventFields
	case Plans, *Plans:
		return PlanFields
	default:
		return nil
	}
}
