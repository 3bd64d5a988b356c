package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/actionplan/internal/ir"
)

// Validate checks that a query names its source, filters only on the
// source's columns, and compares each column with a literal of its kind.
// All problems are reported, joined.
func Validate(query Query) error {
	v := &validator{}
	switch q := query.(type) {
	case Events:
		v.validateEvents(q)
	case *Events:
		v.validateEvents(*q)
	case Plans:
		v.validatePredicate(PlanFields, q.Filter)
	case *Plans:
		v.validatePredicate(PlanFields, q.Filter)
	case nil:
		v.addf("nil query")
	default:
		v.addf("unsupported query type: %T", query)
	}
	return errors.Join(v.errs...)
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validateEvents(q Events) {
	if q.Plan == "" {
		v.addf("events query needs a plan")
	}
	v.validatePredicate(EventFields, q.Filter)
}

func (v *validator) validatePredicate(fields map[string]string, p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateLiteral(fields, pred.Field, pred.Value)
	case *Equals:
		v.validateLiteral(fields, pred.Field, pred.Value)
	case OneOf:
		v.validateOneOf(fields, pred)
	case *OneOf:
		v.validateOneOf(fields, *pred)
	case AtLeast:
		v.validateField(fields, pred.Field, KindInt)
	case *AtLeast:
		v.validateField(fields, pred.Field, KindInt)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(fields, sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(fields, sub)
		}
	default:
		v.addf("unsupported predicate type: %T", p)
	}
}

func (v *validator) validateOneOf(fields map[string]string, o OneOf) {
	if len(o.Values) == 0 {
		v.validateField(fields, o.Field, "")
		return
	}
	for _, val := range o.Values {
		v.validateLiteral(fields, o.Field, val)
	}
}

func (v *validator) validateLiteral(fields map[string]string, field string, val ir.IRValue) {
	switch val.(type) {
	case ir.IRString:
		v.validateField(fields, field, KindString)
	case ir.IRInt:
		v.validateField(fields, field, KindInt)
	default:
		v.addf("field %q: cannot compare with %T", field, val)
	}
}

// validateField checks that field exists and, when want is set, has that
// kind.
func (v *validator) validateField(fields map[string]string, field, want string) {
	kind, ok := fields[field]
	if !ok {
		v.addf("unknown field %q", field)
		return
	}
	if want != "" && kind != want {
		v.addf("field %q is %s, not %s", field, kind, want)
	}
}
