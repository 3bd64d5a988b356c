package schema

import (
	"fmt"
	"strings"
)

// Kind is the kind of a schema Type.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	KindEnum   Kind = "enum"
	KindRecord Kind = "record"
	KindArray  Kind = "array"
	KindRef    Kind = "ref"
	KindAny    Kind = "any"
)

// Type is one node of a schema tree.
type Type struct {
	Kind Kind

	// Fields lists record fields in declaration order (KindRecord).
	Fields []Field

	// Values lists the allowed literals (KindEnum).
	Values []string

	// Elem is the element type (KindArray).
	Elem *Type

	// Ref is the registry name of a borrowed type (KindRef).
	Ref string
}

// Field is a named record member.
type Field struct {
	Name     string
	Type     *Type
	Optional bool
}

func String() *Type { return &Type{Kind: KindString} }
func Int() *Type    { return &Type{Kind: KindInt} }
func Bool() *Type   { return &Type{Kind: KindBool} }
func Any() *Type    { return &Type{Kind: KindAny} }

// Enum accepts exactly one of the given string literals.
func Enum(values ...string) *Type {
	return &Type{Kind: KindEnum, Values: values}
}

// Record builds a record type from fields.
func Record(fields ...Field) *Type {
	return &Type{Kind: KindRecord, Fields: fields}
}

// Array builds an array type with the given element type.
func Array(elem *Type) *Type {
	return &Type{Kind: KindArray, Elem: elem}
}

// Ref borrows the type registered under name.
func Ref(name string) *Type {
	return &Type{Kind: KindRef, Ref: name}
}

// Required declares a field that must be present.
func Required(name string, t *Type) Field {
	return Field{Name: name, Type: t}
}

// Optional declares a field that may be absent.
func Optional(name string, t *Type) Field {
	return Field{Name: name, Type: t, Optional: true}
}

// Field returns the record field with the given name.
func (t *Type) Field(name string) (Field, bool) {
	if t == nil {
		return Field{}, false
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// String renders the type for error messages, e.g. "enum(low|medium|high)".
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindEnum:
		return fmt.Sprintf("enum(%s)", strings.Join(t.Values, "|"))
	case KindArray:
		return fmt.Sprintf("array(%s)", t.Elem)
	case KindRef:
		return fmt.Sprintf("ref(%s)", t.Ref)
	case KindRecord:
		names := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			names[i] = f.Name
			if f.Optional {
				names[i] += "?"
			}
		}
		return fmt.Sprintf("record{%s}", strings.Join(names, ","))
	default:
		return string(t.Kind)
	}
}
