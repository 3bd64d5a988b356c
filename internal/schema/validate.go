package schema

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/actionplan/internal/ir"
)

// ViolationError reports the first value that does not match its type.
type ViolationError struct {
	// Path is the dotted location of the value, e.g. "classification.severity"
	// or "reviews[1].passed". Empty for the root value.
	Path string

	// Expected describes the declared type.
	Expected string

	// Actual describes the value found.
	Actual string
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	path := e.Path
	if path == "" {
		path = "(root)"
	}
	return fmt.Sprintf("schema violation at %s: expected %s, got %s", path, e.Expected, e.Actual)
}

// IsViolation reports whether err is or wraps a *ViolationError.
func IsViolation(err error) bool {
	var ve *ViolationError
	return errors.As(err, &ve)
}

// RefTyper returns the declared type of the value a ref points at.
type RefTyper func(ref ir.IRRef) (*Type, error)

// Validator checks values against types.
//
// Registry resolves named refs. RefType handles unresolved ir.IRRef values
// found in the value tree: their declared type must be assignable to the
// expected type. When RefType is nil, any ir.IRRef is a violation.
type Validator struct {
	Registry *Registry
	RefType  RefTyper
}

// Validate checks v against t using only registry lookups.
func (r *Registry) Validate(t *Type, v ir.IRValue) error {
	return (&Validator{Registry: r}).Validate(t, v)
}

// Validate checks v against t. A nil type accepts any value. It returns a *ViolationError for the first
// mismatch found, walking record fields in declaration order.
func (vd *Validator) Validate(t *Type, v ir.IRValue) error {
	return vd.validate("", t, v)
}

func (vd *Validator) validate(path string, t *Type, v ir.IRValue) error {
	resolved, err := vd.Registry.Resolve(t)
	if err != nil {
		return &ViolationError{Path: path, Expected: t.String(), Actual: err.Error()}
	}
	t = resolved
	if t == nil {
		return nil
	}

	if ref, ok := v.(ir.IRRef); ok {
		return vd.validateRef(path, t, ref)
	}

	switch t.Kind {
	case KindAny:
		return nil
	case KindString:
		if _, ok := v.(ir.IRString); ok {
			return nil
		}
	case KindInt:
		if _, ok := v.(ir.IRInt); ok {
			return nil
		}
	case KindBool:
		if _, ok := v.(ir.IRBool); ok {
			return nil
		}
	case KindEnum:
		if s, ok := v.(ir.IRString); ok && slices.Contains(t.Values, string(s)) {
			return nil
		}
	case KindArray:
		arr, ok := v.(ir.IRArray)
		if !ok {
			break
		}
		for i, elem := range arr {
			if err := vd.validate(path+"["+strconv.Itoa(i)+"]", t.Elem, elem); err != nil {
				return err
			}
		}
		return nil
	case KindRecord:
		obj, ok := v.(ir.IRObject)
		if !ok {
			break
		}
		return vd.validateRecord(path, t, obj)
	default:
		return &ViolationError{Path: path, Expected: t.String(), Actual: "unknown schema kind"}
	}
	return &ViolationError{Path: path, Expected: t.String(), Actual: Describe(v)}
}

func (vd *Validator) validateRecord(path string, t *Type, obj ir.IRObject) error {
	for _, f := range t.Fields {
		val, ok := obj[f.Name]
		if !ok {
			if f.Optional {
				continue
			}
			return &ViolationError{Path: join(path, f.Name), Expected: f.Type.String(), Actual: "missing"}
		}
		if err := vd.validate(join(path, f.Name), f.Type, val); err != nil {
			return err
		}
	}
	for _, k := range obj.SortedKeys() {
		if _, ok := t.Field(k); !ok {
			return &ViolationError{Path: join(path, k), Expected: "no such field", Actual: Describe(obj[k])}
		}
	}
	return nil
}

func (vd *Validator) validateRef(path string, want *Type, ref ir.IRRef) error {
	if want.Kind == KindAny {
		return nil
	}
	if vd.RefType == nil {
		return &ViolationError{Path: path, Expected: want.String(), Actual: "unresolved " + ref.String()}
	}
	got, err := vd.RefType(ref)
	if err != nil {
		return &ViolationError{Path: path, Expected: want.String(), Actual: fmt.Sprintf("%s (%v)", ref, err)}
	}
	if err := vd.Registry.Assignable(want, got); err != nil {
		return &ViolationError{Path: path, Expected: want.String(), Actual: fmt.Sprintf("%s of type %s: %v", ref, got, err)}
	}
	return nil
}

// Assignable reports whether every value of type got is also a valid value
// of type want. Used to check refs whose value is not known yet.
func (r *Registry) Assignable(want, got *Type) error {
	return r.assignable(want, got, 0)
}

func (r *Registry) assignable(want, got *Type, depth int) error {
	if depth > maxRefDepth {
		return fmt.Errorf("type nesting too deep")
	}
	var err error
	if want, err = r.Resolve(want); err != nil {
		return err
	}
	if got, err = r.Resolve(got); err != nil {
		return err
	}
	if want == nil || got == nil || want.Kind == KindAny || got.Kind == KindAny {
		return nil
	}

	switch want.Kind {
	case KindString:
		if got.Kind == KindString || got.Kind == KindEnum {
			return nil
		}
	case KindInt, KindBool:
		if got.Kind == want.Kind {
			return nil
		}
	case KindEnum:
		if got.Kind == KindEnum {
			for _, v := range got.Values {
				if !slices.Contains(want.Values, v) {
					return fmt.Errorf("literal %q not in %s", v, want)
				}
			}
			return nil
		}
	case KindArray:
		if got.Kind == KindArray {
			return r.assignable(want.Elem, got.Elem, depth+1)
		}
	case KindRecord:
		if got.Kind == KindRecord {
			return r.assignableRecord(want, got, depth)
		}
	}
	return fmt.Errorf("%s is not assignable to %s", got, want)
}

func (r *Registry) assignableRecord(want, got *Type, depth int) error {
	for _, wf := range want.Fields {
		gf, ok := got.Field(wf.Name)
		if !ok {
			if wf.Optional {
				continue
			}
			return fmt.Errorf("field %q missing", wf.Name)
		}
		if gf.Optional && !wf.Optional {
			return fmt.Errorf("field %q may be absent", wf.Name)
		}
		if err := r.assignable(wf.Type, gf.Type, depth+1); err != nil {
			return fmt.Errorf("field %q: %w", wf.Name, err)
		}
	}
	for _, gf := range got.Fields {
		if _, ok := want.Field(gf.Name); !ok {
			return fmt.Errorf("field %q not declared", gf.Name)
		}
	}
	return nil
}

// Describe renders a value for violation messages.
func Describe(v ir.IRValue) string {
	switch val := v.(type) {
	case nil:
		return "nothing"
	case ir.IRNull:
		return "null"
	case ir.IRString:
		return strconv.Quote(string(val))
	case ir.IRInt:
		return "int " + strconv.FormatInt(int64(val), 10)
	case ir.IRBool:
		return "bool " + strconv.FormatBool(bool(val))
	case ir.IRArray:
		return fmt.Sprintf("array of %d", len(val))
	case ir.IRObject:
		return "record"
	case ir.IRRef:
		return val.String()
	default:
		return fmt.Sprintf("%T", v)
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
