package schema

import (
	"fmt"
	"slices"
	"sync"
)

// maxRefDepth bounds chains of refs pointing at refs.
const maxRefDepth = 32

// Registry holds named types that refs resolve against.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Define registers t under name. Redefining a name is an error.
func (r *Registry) Define(name string, t *Type) error {
	if name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}
	if t == nil {
		return fmt.Errorf("schema %q: type cannot be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("schema %q already defined", name)
	}
	r.types[name] = t
	return nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Resolve follows refs until it reaches a concrete type.
// A nil registry resolves nothing and reports every ref as undefined.
func (r *Registry) Resolve(t *Type) (*Type, error) {
	for depth := 0; t != nil && t.Kind == KindRef; depth++ {
		if depth >= maxRefDepth {
			return nil, fmt.Errorf("ref %q: chain too deep", t.Ref)
		}
		if r == nil {
			return nil, fmt.Errorf("ref %q: no registry", t.Ref)
		}
		next, ok := r.Lookup(t.Ref)
		if !ok {
			return nil, fmt.Errorf("ref %q: undefined schema", t.Ref)
		}
		t = next
	}
	return t, nil
}

// TypeAt walks path through record fields of t and returns the type found.
// An empty path returns t resolved.
func (r *Registry) TypeAt(t *Type, path []string) (*Type, error) {
	cur, err := r.Resolve(t)
	if err != nil {
		return nil, err
	}
	for i, name := range path {
		if cur.Kind == KindAny {
			return cur, nil
		}
		if cur.Kind != KindRecord {
			return nil, fmt.Errorf("path %v: %s is not a record", path[:i+1], cur)
		}
		f, ok := cur.Field(name)
		if !ok {
			return nil, fmt.Errorf("path %v: no field %q", path[:i+1], name)
		}
		if cur, err = r.Resolve(f.Type); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// CheckRefs verifies that every ref reachable from a registered type names
// a registered type.
func (r *Registry) CheckRefs() error {
	for _, name := range r.Names() {
		t, _ := r.Lookup(name)
		if err := r.checkRefs(name, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) checkRefs(where string, t *Type) error {
	if t == nil {
		return fmt.Errorf("%s: nil type", where)
	}
	switch t.Kind {
	case KindRef:
		if _, ok := r.Lookup(t.Ref); !ok {
			return fmt.Errorf("%s: ref %q: undefined schema", where, t.Ref)
		}
	case KindArray:
		return r.checkRefs(where+"[]", t.Elem)
	case KindRecord:
		for _, f := range t.Fields {
			if err := r.checkRefs(where+"."+f.Name, f.Type); err != nil {
				return err
			}
		}
	}
	return nil
}
