package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/actionplan/internal/schema"
)

// Registry holds action definitions and their subscription bindings.
// Safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	defs        map[string]*Definition
	order       []string                 // registration order
	subscribers map[string][]*Definition // trigger name → subscribers
	schemas     *schema.Registry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:        make(map[string]*Definition),
		subscribers: make(map[string][]*Definition),
		schemas:     schema.NewRegistry(),
	}
}

// Register adds definitions. Each definition's Subscribe list binds it as
// a subscriber of the named trigger kinds; triggers may be registered later.
// Declared schemas are registered as "<Name>.input" and "<Name>.output".
func (r *Registry) Register(defs ...*Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range defs {
		if err := checkDefinition(d); err != nil {
			return err
		}
		if _, exists := r.defs[d.Name]; exists {
			return fmt.Errorf("action %q already registered", d.Name)
		}
		if d.Input != nil {
			if err := r.schemas.Define(d.inputSchemaName(), d.Input); err != nil {
				return fmt.Errorf("action %q: %w", d.Name, err)
			}
		}
		if d.Output != nil {
			if err := r.schemas.Define(d.outputSchemaName(), d.Output); err != nil {
				return fmt.Errorf("action %q: %w", d.Name, err)
			}
		}

		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
		for _, trigger := range d.Subscribe {
			r.subscribers[trigger] = append(r.subscribers[trigger], d)
		}
	}
	return nil
}

func checkDefinition(d *Definition) error {
	if d == nil {
		return fmt.Errorf("definition cannot be nil")
	}
	if d.Name == "" {
		return fmt.Errorf("definition name cannot be empty")
	}
	if strings.ContainsAny(d.Name, ". ") {
		return fmt.Errorf("action %q: name cannot contain dots or spaces", d.Name)
	}
	if d.Polling != nil {
		if d.Polling.Invoke == nil || d.Polling.Poll == nil {
			return fmt.Errorf("action %q: polling requires Invoke and Poll", d.Name)
		}
		if d.Run != nil {
			return fmt.Errorf("action %q: declare either Run or Polling, not both", d.Name)
		}
	}
	seen := make(map[string]bool, len(d.Subscribe))
	for _, trigger := range d.Subscribe {
		if trigger == "" {
			return fmt.Errorf("action %q: empty subscription", d.Name)
		}
		if seen[trigger] {
			return fmt.Errorf("action %q: duplicate subscription to %q", d.Name, trigger)
		}
		seen[trigger] = true
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(defs ...*Definition) *Registry {
	if err := r.Register(defs...); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, len(r.order))
	for i, name := range r.order {
		out[i] = r.defs[name]
	}
	return out
}

// Subscribers returns the definitions bound to trigger, in registration
// order.
func (r *Registry) Subscribers(trigger string) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.subscribers[trigger]
	out := make([]*Definition, len(subs))
	copy(out, subs)
	return out
}

// Schemas returns the schema registry that action schemas are defined in.
// Additional shared types may be defined there for refs to borrow.
func (r *Registry) Schemas() *schema.Registry {
	return r.schemas
}

// Validate checks the registry as a whole: every subscribed trigger is
// registered, every schema ref resolves, and no subscription chain loops
// back on itself.
func (r *Registry) Validate() error {
	r.mu.RLock()
	for trigger, subs := range r.subscribers {
		if _, ok := r.defs[trigger]; !ok {
			r.mu.RUnlock()
			return fmt.Errorf("action %q subscribes to unregistered action %q", subs[0].Name, trigger)
		}
	}
	r.mu.RUnlock()

	if err := r.schemas.CheckRefs(); err != nil {
		return fmt.Errorf("schemas: %w", err)
	}

	if cycles := AnalyzeSubscriptions(r); len(cycles) > 0 {
		msgs := make([]string, len(cycles))
		for i, c := range cycles {
			msgs[i] = c.Message
		}
		return fmt.Errorf("subscription cycles: %s", strings.Join(msgs, "; "))
	}
	return nil
}
