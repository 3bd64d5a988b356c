package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/actionplan/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateName     = "E101" // action or type declared twice
	ErrInvalidName       = "E102" // name contains dots or spaces
	ErrUndefinedRef      = "E103" // @ref names no declared schema
	ErrUnknownSubscribe  = "E104" // subscription to an undeclared action
	ErrInvalidEnum       = "E105" // empty enum or repeated literal
	ErrRefAliasCycle     = "E106" // refs that only point at each other
	ErrSubscriptionCycle = "E107" // subscription chain loops back
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled bundle as a whole.
// Returns all errors found (does not fail-fast).
func Validate(b *Bundle) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]bool)
	actions := make(map[string]bool)

	for i, as := range b.Actions {
		field := fmt.Sprintf("action.%s", as.Name)
		if actions[as.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate action name: %q", as.Name),
				Code:    ErrDuplicateName,
				Line:    as.Pos.Line(),
			})
		}
		actions[as.Name] = true
		if strings.ContainsAny(as.Name, ". ") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("action[%d]", i),
				Message: fmt.Sprintf("action name %q cannot contain dots or spaces", as.Name),
				Code:    ErrInvalidName,
				Line:    as.Pos.Line(),
			})
		}
		if as.Input != nil {
			declared[as.Name+".input"] = true
		}
		if as.Output != nil {
			declared[as.Name+".output"] = true
		}
	}

	for _, nt := range b.Types {
		field := fmt.Sprintf("types.%s", nt.Name)
		if declared[nt.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate type name: %q", nt.Name),
				Code:    ErrDuplicateName,
				Line:    nt.Pos.Line(),
			})
		}
		declared[nt.Name] = true
		if strings.ContainsAny(nt.Name, ". ") {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("type name %q cannot contain dots or spaces", nt.Name),
				Code:    ErrInvalidName,
				Line:    nt.Pos.Line(),
			})
		}
	}

	for _, as := range b.Actions {
		line := as.Pos.Line()
		errs = append(errs, validateType(as.Input, "action."+as.Name+".input", declared, line)...)
		errs = append(errs, validateType(as.Output, "action."+as.Name+".output", declared, line)...)

		for _, trigger := range as.Subscribe {
			if !actions[trigger] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("action.%s.subscribe", as.Name),
					Message: fmt.Sprintf("subscribes to undeclared action %q", trigger),
					Code:    ErrUnknownSubscribe,
					Line:    line,
				})
			}
		}
	}
	for _, nt := range b.Types {
		errs = append(errs, validateType(nt.Type, "types."+nt.Name, declared, nt.Pos.Line())...)
	}

	for _, c := range AnalyzeCycles(b) {
		if c.Level != LevelError {
			continue
		}
		code := ErrRefAliasCycle
		if c.Kind == CycleSubscription {
			code = ErrSubscriptionCycle
		}
		errs = append(errs, ValidationError{
			Field:   c.Path[0],
			Message: c.Message,
			Code:    code,
		})
	}

	return errs
}

// validateType walks t checking refs and enums.
func validateType(t *schema.Type, field string, declared map[string]bool, line int) []ValidationError {
	if t == nil {
		return nil
	}
	var errs []ValidationError
	switch t.Kind {
	case schema.KindRef:
		if !declared[t.Ref] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("ref %q: undefined schema", t.Ref),
				Code:    ErrUndefinedRef,
				Line:    line,
			})
		}
	case schema.KindEnum:
		if len(t.Values) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "enum needs at least one value",
				Code:    ErrInvalidEnum,
				Line:    line,
			})
		}
		sorted := slices.Clone(t.Values)
		slices.Sort(sorted)
		if len(slices.Compact(sorted)) != len(t.Values) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("enum repeats a value: %s", t),
				Code:    ErrInvalidEnum,
				Line:    line,
			})
		}
	case schema.KindArray:
		errs = append(errs, validateType(t.Elem, field+"[]", declared, line)...)
	case schema.KindRecord:
		for _, f := range t.Fields {
			errs = append(errs, validateType(f.Type, field+"."+f.Name, declared, line)...)
		}
	}
	return errs
}
