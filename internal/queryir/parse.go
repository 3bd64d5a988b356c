package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/actionplan/internal/ir"
)

// ParseFilter builds a conjunction from command-line terms over fields:
//
//	state=error_run          Equals
//	state=error_run|error    OneOf
//	progress>=5000           AtLeast
//
// Values of int fields are parsed as base 10. No terms returns nil.
func ParseFilter(fields map[string]string, terms []string) (Predicate, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	preds := make([]Predicate, 0, len(terms))
	for _, term := range terms {
		p, err := parseTerm(fields, term)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", term, err)
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return And{Predicates: preds}, nil
}

func parseTerm(fields map[string]string, term string) (Predicate, error) {
	if field, value, ok := strings.Cut(term, ">="); ok {
		if kind := fields[field]; kind != KindInt {
			return nil, fmt.Errorf("field %q does not support >=", field)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", value)
		}
		return AtLeast{Field: field, Value: n}, nil
	}

	field, value, ok := strings.Cut(term, "=")
	if !ok || field == "" {
		return nil, fmt.Errorf("expected field=value or field>=n")
	}
	kind, known := fields[field]
	if !known {
		return nil, fmt.Errorf("unknown field %q", field)
	}

	parts := strings.Split(value, "|")
	values := make([]ir.IRValue, 0, len(parts))
	for _, part := range parts {
		if kind == KindString {
			values = append(values, ir.IRString(part))
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", part)
		}
		values = append(values, ir.IRInt(n))
	}
	if len(values) == 1 {
		return Equals{Field: field, Value: values[0]}, nil
	}
	return OneOf{Field: field, Values: values}, nil
}
