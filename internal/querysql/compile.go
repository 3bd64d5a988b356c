// Package querysql compiles journal queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/queryir"
)

// Compiler turns queryir queries into SQL selecting Columns.
//
// Every statement ends in the journal's deterministic order, and every
// literal is a ? parameter.
type Compiler struct {
	// EventColumns and PlanColumns are the select lists for each source.
	EventColumns string
	PlanColumns  string
}

// Compile validates q and returns the statement with its parameters.
func (c *Compiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	switch query := q.(type) {
	case queryir.Events:
		return c.compileEvents(query)
	case *queryir.Events:
		return c.compileEvents(*query)
	case queryir.Plans:
		return c.compilePlans(query)
	case *queryir.Plans:
		return c.compilePlans(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *Compiler) compileEvents(q queryir.Events) (string, []any, error) {
	where, params, err := compilePredicate(q.Filter)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM phase_events WHERE plan_id = ? AND %s ORDER BY seq ASC, id ASC COLLATE BINARY",
		columns(c.EventColumns), where)
	return sql, append([]any{q.Plan}, params...), nil
}

func (c *Compiler) compilePlans(q queryir.Plans) (string, []any, error) {
	where, params, err := compilePredicate(q.Filter)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM plans WHERE %s ORDER BY first_seq ASC, id ASC COLLATE BINARY",
		columns(c.PlanColumns), where)
	return sql, params, nil
}

func columns(list string) string {
	if list == "" {
		return "*"
	}
	return strings.Join(strings.Fields(list), " ")
}

// compilePredicate returns a WHERE fragment and its parameters. Field
// names were checked against the source's columns by queryir.Validate,
// so they are safe to splice.
func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.OneOf:
		return compileOneOf(pred)
	case *queryir.OneOf:
		return compileOneOf(*pred)
	case queryir.AtLeast:
		return pred.Field + " >= ?", []any{pred.Value}, nil
	case *queryir.AtLeast:
		return pred.Field + " >= ?", []any{pred.Value}, nil
	case queryir.And:
		return compileAnd(pred)
	case *queryir.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

func compileOneOf(o queryir.OneOf) (string, []any, error) {
	if len(o.Values) == 0 {
		return "1 = 0", nil, nil
	}
	params := make([]any, 0, len(o.Values))
	for _, v := range o.Values {
		param, err := irValueToParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", o.Field, err)
		}
		params = append(params, param)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return fmt.Sprintf("%s IN (%s)", o.Field, marks), params, nil
}

func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		switch pred.(type) {
		case queryir.And, *queryir.And:
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// irValueToParam converts a literal to a database/sql argument.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}
