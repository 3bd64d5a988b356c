package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/actionplan/internal/engine"
	"github.com/roach88/actionplan/internal/schema"
)

// Bundle is the compiled content of one or more CUE files: action
// declarations under "action" and shared types under "types".
type Bundle struct {
	Actions []ActionSchema
	Types   []NamedType
}

// CompileSource compiles CUE source text. filename is used in error
// positions only.
func CompileSource(filename string, src []byte) (*Bundle, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileValue(v)
}

// MustCompileSource is like CompileSource but panics on error. Intended
// for embedded catalogs.
func MustCompileSource(filename string, src []byte) *Bundle {
	b, err := CompileSource(filename, src)
	if err != nil {
		panic(err)
	}
	return b
}

// CompileValue compiles a built CUE value. Fails on the first error.
func CompileValue(v cue.Value) (*Bundle, error) {
	b, errs := CompileValueAll(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return b, nil
}

// CompileValueAll compiles every declaration it can and collects the
// errors of the rest.
func CompileValueAll(v cue.Value) (*Bundle, []error) {
	b := &Bundle{}
	var errs []error

	actionsVal := v.LookupPath(cue.ParsePath("action"))
	if actionsVal.Exists() {
		iter, err := actionsVal.Fields()
		if err != nil {
			return b, []error{formatCUEError(err)}
		}
		for iter.Next() {
			as, err := CompileAction(iter.Value())
			if err != nil {
				errs = append(errs, fmt.Errorf("action.%s: %w", iter.Label(), err))
				continue
			}
			b.Actions = append(b.Actions, *as)
		}
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if typesVal.Exists() {
		iter, err := typesVal.Fields()
		if err != nil {
			return b, append(errs, formatCUEError(err))
		}
		for iter.Next() {
			t, err := CompileType(iter.Value())
			if err != nil {
				errs = append(errs, fmt.Errorf("types.%s: %w", iter.Label(), err))
				continue
			}
			b.Types = append(b.Types, NamedType{Name: iter.Label(), Type: t, Pos: iter.Value().Pos()})
		}
	}

	if len(b.Actions) == 0 && len(b.Types) == 0 && len(errs) == 0 {
		errs = append(errs, &CompileError{
			Field:   "action",
			Message: "no action or types declarations found",
			Pos:     v.Pos(),
		})
	}
	return b, errs
}

// Action returns the declaration of the named action.
func (b *Bundle) Action(name string) (ActionSchema, bool) {
	for _, as := range b.Actions {
		if as.Name == name {
			return as, true
		}
	}
	return ActionSchema{}, false
}

// Bind copies declared schemas and subscriptions onto definitions. Fields
// already set on a definition are left alone, as are definitions the
// bundle does not declare.
func (b *Bundle) Bind(defs ...*engine.Definition) []*engine.Definition {
	for _, d := range defs {
		as, ok := b.Action(d.Name)
		if !ok {
			continue
		}
		if d.Input == nil {
			d.Input = as.Input
		}
		if d.Output == nil {
			d.Output = as.Output
		}
		if len(d.Subscribe) == 0 && len(as.Subscribe) > 0 {
			d.Subscribe = append([]string(nil), as.Subscribe...)
		}
	}
	return defs
}

// DefineTypes registers the shared types in reg.
func (b *Bundle) DefineTypes(reg *schema.Registry) error {
	for _, nt := range b.Types {
		if err := reg.Define(nt.Name, nt.Type); err != nil {
			return err
		}
	}
	return nil
}

// Registry builds an engine registry holding defs bound to the bundle and
// the bundle's shared types, then validates it.
func (b *Bundle) Registry(defs ...*engine.Definition) (*engine.Registry, error) {
	reg := engine.NewRegistry()
	if err := b.DefineTypes(reg.Schemas()); err != nil {
		return nil, err
	}
	if err := reg.Register(b.Bind(defs...)...); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Schemas builds a schema registry from the bundle alone: each action's
// input and output under "<Name>.input" and "<Name>.output", plus the
// shared types.
func (b *Bundle) Schemas() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := b.DefineTypes(reg); err != nil {
		return nil, err
	}
	for _, as := range b.Actions {
		if as.Input != nil {
			if err := reg.Define(as.Name+".input", as.Input); err != nil {
				return nil, err
			}
		}
		if as.Output != nil {
			if err := reg.Define(as.Name+".output", as.Output); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}
