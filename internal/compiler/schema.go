package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/actionplan/internal/schema"
)

// ActionSchema is the compiled declaration of one action kind.
type ActionSchema struct {
	Name      string
	Input     *schema.Type // nil when the declaration has no input
	Output    *schema.Type // nil when the declaration has no output
	Subscribe []string
	Pos       token.Pos
}

// NamedType is a shared type that refs can borrow by name.
type NamedType struct {
	Name string
	Type *schema.Type
	Pos  token.Pos
}

// CompileAction parses a CUE value into an ActionSchema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the action struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`action: Triage: { input: { title: string } }`)
//	as, err := CompileAction(v.LookupPath(cue.ParsePath("action.Triage")))
func CompileAction(v cue.Value) (*ActionSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	as := &ActionSchema{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		as.Name = labels[len(labels)-1].String()
	}

	var err error
	if as.Input, err = compileRecord(v, "input"); err != nil {
		return nil, err
	}
	if as.Output, err = compileRecord(v, "output"); err != nil {
		return nil, err
	}

	subVal := v.LookupPath(cue.ParsePath("subscribe"))
	if subVal.Exists() {
		iter, err := subVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			trigger, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			as.Subscribe = append(as.Subscribe, trigger)
		}
	}

	return as, nil
}

// compileRecord compiles the optional input or output struct of an action.
func compileRecord(v cue.Value, field string) (*schema.Type, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	t, err := CompileType(fv)
	if err != nil {
		return nil, err
	}
	if t.Kind != schema.KindRecord && t.Kind != schema.KindRef {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a struct or @ref, got %s", t),
			Pos:     fv.Pos(),
		}
	}
	return t, nil
}

// CompileType converts a CUE value into a schema type.
//
//	string, int, bool        -> scalar
//	"a" | "b"                -> enum
//	"a"                      -> single-value enum
//	[...T]                   -> array of T
//	{ f: T, g?: T }          -> record, declaration order kept
//	_ @ref(Name)             -> ref to a registered type
//	[...] @ref(Name)         -> array of refs
//	_                        -> any
//
// Floats are forbidden.
func CompileType(v cue.Value) (*schema.Type, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if attr := v.Attribute("ref"); attr.Err() == nil {
		name, err := attr.String(0)
		if err != nil || name == "" {
			return nil, &CompileError{
				Field:   "ref",
				Message: "@ref needs a schema name, e.g. @ref(Triage.output)",
				Pos:     v.Pos(),
			}
		}
		if v.IncompleteKind() == cue.ListKind {
			return schema.Array(schema.Ref(name)), nil
		}
		return schema.Ref(name), nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return compileString(v)
	case cue.IntKind:
		return schema.Int(), nil
	case cue.BoolKind:
		return schema.Bool(), nil
	case cue.ListKind:
		elem := v.LookupPath(cue.MakePath(cue.AnyIndex))
		if !elem.Exists() {
			return schema.Array(schema.Any()), nil
		}
		et, err := CompileType(elem)
		if err != nil {
			return nil, err
		}
		return schema.Array(et), nil
	case cue.StructKind:
		return compileStruct(v)
	case cue.TopKind:
		return schema.Any(), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func compileString(v cue.Value) (*schema.Type, error) {
	if v.IsConcrete() {
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return schema.Enum(s), nil
	}

	op, args := v.Expr()
	if op != cue.OrOp {
		return schema.String(), nil
	}
	var values []string
	for _, a := range args {
		s, err := a.String()
		if err != nil {
			// A disjunction mixing literals with the string type
			// accepts any string.
			return schema.String(), nil
		}
		values = append(values, s)
	}
	return schema.Enum(values...), nil
}

func compileStruct(v cue.Value) (*schema.Type, error) {
	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []schema.Field
	for iter.Next() {
		ft, err := CompileType(iter.Value())
		if err != nil {
			if ce, ok := err.(*CompileError); ok && ce.Field == "type" {
				ce.Field = iter.Label()
			}
			return nil, err
		}
		fields = append(fields, schema.Field{
			Name:     iter.Label(),
			Type:     ft,
			Optional: iter.Selector().ConstraintType() == cue.OptionalConstraint,
		})
	}
	return schema.Record(fields...), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
