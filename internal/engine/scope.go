package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/schema"
)

type scopeMode int

const (
	modeSequence scopeMode = iota
	modeConcurrence
)

func (m scopeMode) String() string {
	if m == modeConcurrence {
		return "concurrence"
	}
	return "sequence"
}

// Scope is a planning region. In a sequence each step depends on the exit
// set of the step before it; in a concurrence every member depends only on
// the region's entry set and the region exits through the union of its
// members' exit sets.
//
// The scope handed to a Plan hook (through PlanContext) is a sequence.
type Scope struct {
	pl    *planner
	owner *Action
	mode  scopeMode

	entry []int64
	preds []int64 // sequence: what the next step depends on
	exits []int64 // concurrence: union of member exits
	steps int

	actions []*Action
}

func newScope(pl *planner, owner *Action, mode scopeMode, entry []int64) *Scope {
	return &Scope{
		pl:    pl,
		owner: owner,
		mode:  mode,
		entry: entry,
		preds: entry,
	}
}

// stepDeps is the dependency set for the next step planned in this scope.
func (s *Scope) stepDeps() []int64 {
	if s.mode == modeSequence {
		return s.preds
	}
	return s.entry
}

// addStep records a finished step. A step without exits (it planned
// nothing runnable) passes its dependencies through unchanged.
func (s *Scope) addStep(exits []int64) {
	if len(exits) == 0 {
		return
	}
	s.steps++
	if s.mode == modeSequence {
		s.preds = exits
		return
	}
	s.exits = union(s.exits, exits)
}

// exitSet is what a step following this scope must wait for.
func (s *Scope) exitSet() []int64 {
	if s.mode == modeSequence {
		return s.preds
	}
	if len(s.exits) == 0 {
		return s.entry
	}
	return s.exits
}

// stepExits is the contribution of this scope as one step of its parent.
func (s *Scope) stepExits() []int64 {
	if s.steps == 0 {
		return nil
	}
	return s.exitSet()
}

// Fragment is a composed region of the plan graph.
type Fragment struct {
	entry   []int64
	exits   []int64
	actions []*Action
}

// Actions returns the handles planned in the region, in call order.
func (f Fragment) Actions() []*Action { return slices.Clone(f.actions) }

// Entry returns the IDs the region's first steps depend on.
func (f Fragment) Entry() []int64 { return slices.Clone(f.entry) }

// Exits returns the IDs a step following the region depends on.
func (f Fragment) Exits() []int64 { return slices.Clone(f.exits) }

// PlanSelf registers the planning action's own run step with input. It may
// be called at most once per action. The returned handle is the action
// itself; use its OutputRef to feed later steps.
//
// The input is validated against the action's input schema. Refs inside it
// are checked against the declared output schema of the referenced action
// and add a dependency on that action.
func (s *Scope) PlanSelf(input ir.IRValue) (*Action, error) {
	a := s.owner
	if a.selfCalled {
		err := fmt.Errorf("PlanSelf called twice for %s#%d", a.def.Name, a.id)
		a.failure = err
		return a, err
	}
	a.selfCalled = true

	var obj ir.IRObject
	switch v := input.(type) {
	case nil:
		obj = ir.IRObject{}
	case ir.IRObject:
		obj = v.Clone()
	default:
		err := newActionError(KindSchemaViolation, ir.PhasePlan, a,
			&schema.ViolationError{Expected: "record", Actual: schema.Describe(input)})
		a.failure = err
		return a, err
	}
	a.input = obj

	deps := slices.Clone(s.stepDeps())
	for _, ref := range ir.Refs(obj) {
		target, err := s.pl.refTarget(a, ref)
		if err != nil {
			a.failure = err
			return a, err
		}
		if !slices.Contains(deps, target.id) {
			deps = append(deps, target.id)
		}
	}

	vd := &schema.Validator{Registry: s.pl.schemas, RefType: s.pl.refType}
	if err := vd.Validate(a.def.Input, obj); err != nil {
		ae := newActionError(KindSchemaViolation, ir.PhasePlan, a, err)
		a.failure = ae
		return a, ae
	}

	for _, d := range deps {
		if err := s.pl.addEdge(a, d); err != nil {
			a.failure = err
			return a, err
		}
	}
	a.runnable = true

	s.addStep([]int64{a.id})
	s.actions = append(s.actions, a)
	return a, nil
}

// PlanAction plans a child action of kind name with args and returns its
// handle.
//
// Failures inside the child's planning are recorded on the child, which
// then cancels its dependents at execution; they are not returned here.
// The error is non-nil only when the child cannot be created at all, such
// as for an unknown kind or an exhausted node quota.
func (s *Scope) PlanAction(name string, args ...ir.IRValue) (*Action, error) {
	def, ok := s.pl.reg.Lookup(name)
	if !ok {
		return nil, &UnknownActionError{Name: name}
	}
	child, exits, err := s.pl.planAction(def, s.owner, nil, s.stepDeps(), args)
	if err != nil {
		return nil, err
	}
	s.addStep(exits)
	s.actions = append(s.actions, child)
	return child, nil
}

// Sequence plans a region where each step chains after the previous one.
// The whole region is one step of this scope.
func (s *Scope) Sequence(fn func(*Scope) error) (Fragment, error) {
	return s.region(modeSequence, fn)
}

// Concurrence plans a region whose members are independent of each other.
// The whole region is one step of this scope; anything after it waits for
// every member.
func (s *Scope) Concurrence(fn func(*Scope) error) (Fragment, error) {
	return s.region(modeConcurrence, fn)
}

func (s *Scope) region(mode scopeMode, fn func(*Scope) error) (Fragment, error) {
	entry := slices.Clone(s.stepDeps())
	child := newScope(s.pl, s.owner, mode, entry)
	err := fn(child)

	frag := Fragment{
		entry:   entry,
		exits:   slices.Clone(child.exitSet()),
		actions: child.actions,
	}
	s.addStep(child.stepExits())
	s.actions = append(s.actions, child.actions...)
	if err != nil {
		return frag, fmt.Errorf("%s: %w", mode, err)
	}
	return frag, nil
}

// PlanContext is what a Plan hook receives: the root sequence scope of the
// action being planned.
type PlanContext struct {
	*Scope
}

// Action returns the action being planned.
func (p *PlanContext) Action() *Action { return p.owner }

// Trigger returns the trigger of a subscribed action, nil otherwise.
func (p *PlanContext) Trigger() *Action { return p.owner.trigger }

func union(a, b []int64) []int64 {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
