package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/schema"
)

// planner builds one plan. It runs in the goroutine that called
// Engine.Plan and is discarded afterwards.
type planner struct {
	plan    *Plan
	reg     *Registry
	schemas *schema.Registry
	quota   *QuotaEnforcer

	// exceeded is sticky so a hook swallowing the quota error still aborts
	// the plan.
	exceeded error
}

func newPlanner(p *Plan, reg *Registry, maxNodes int) *planner {
	return &planner{
		plan:    p,
		reg:     reg,
		schemas: reg.Schemas(),
		quota:   NewQuotaEnforcer(maxNodes),
	}
}

// newAction creates an action node and links it into the tree.
func (pl *planner) newAction(def *Definition, parent, trigger *Action) (*Action, error) {
	if err := pl.quota.Check(pl.plan.id); err != nil {
		pl.exceeded = err
		return nil, err
	}
	a := &Action{
		plan:    pl.plan,
		def:     def,
		id:      int64(len(pl.plan.actions) + 1),
		parent:  parent,
		trigger: trigger,
		input:   ir.IRObject{},
		output:  newRecord(),
		state:   StatePending,
	}
	pl.plan.actions = append(pl.plan.actions, a)
	if parent != nil {
		parent.children = append(parent.children, a)
	}
	return a, nil
}

// planAction creates an action, runs its Plan hook with preds as the
// entry set and plans its subscribers. It returns the action and the exit
// set a following step must wait for.
//
// A failing Plan hook is recorded on the action; the action then becomes
// its own exit so that dependents are cancelled. The returned error is
// reserved for an exhausted node quota, which aborts the whole plan.
func (pl *planner) planAction(def *Definition, parent, trigger *Action, preds []int64, args []ir.IRValue) (*Action, []int64, error) {
	a, err := pl.newAction(def, parent, trigger)
	if err != nil {
		return nil, nil, err
	}

	pc := &PlanContext{Scope: newScope(pl, a, modeSequence, slices.Clone(preds))}
	if err := pl.runPlanHook(pc, args); err != nil {
		if IsNodesExceededError(err) {
			return nil, nil, err
		}
		pl.fail(a, preds, err)
		return a, []int64{a.id}, nil
	}
	exits := pc.exitSet()

	subs := pl.reg.Subscribers(def.Name)
	if len(subs) == 0 {
		return a, exits, nil
	}

	subPreds := exits
	if a.runnable {
		subPreds = []int64{a.id}
	}
	for _, sub := range subs {
		if a.ancestry(sub.Name) {
			child, err := pl.newAction(sub, a, a)
			if err != nil {
				return nil, nil, err
			}
			pl.fail(child, subPreds, fmt.Errorf("subscription cycle: %s already planned above %s#%d", sub.Name, def.Name, a.id))
			exits = union(exits, []int64{child.id})
			continue
		}
		_, subExits, err := pl.planAction(sub, a, a, subPreds, args)
		if err != nil {
			return nil, nil, err
		}
		exits = union(exits, subExits)
	}
	return a, exits, nil
}

// runPlanHook invokes the Plan hook, or the default PlanSelf(args[0]).
// Panics are recovered as errors.
func (pl *planner) runPlanHook(pc *PlanContext, args []ir.IRValue) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	a := pc.owner
	if a.def.Plan != nil {
		err = a.def.Plan(pc, args...)
	} else {
		var input ir.IRValue
		if len(args) > 0 {
			input = args[0]
		}
		_, err = pc.PlanSelf(input)
	}
	if err == nil && a.failure != nil {
		err = a.failure
	}
	return err
}

// fail records a planning failure on a and cancels everything planned
// beneath it.
func (pl *planner) fail(a *Action, preds []int64, err error) {
	var ae *ActionError
	if !errors.As(err, &ae) || ae.ActionID != a.id {
		ae = newActionError(KindPlanningError, ir.PhasePlan, a, err)
	}
	a.state = StateError
	a.err = ae
	if !a.runnable {
		a.deps = slices.Clone(preds)
	}
	a.runnable = false

	slog.Debug("planning failed",
		"plan_id", pl.plan.id,
		"action_id", a.id,
		"action", a.def.Name,
		"error", ae.Message,
	)

	for _, d := range a.Descendants() {
		if d.state != StatePending {
			continue
		}
		d.state = StateCancelled
		d.err = &ActionError{
			Kind:     KindCancelled,
			Phase:    ir.PhasePlan,
			ActionID: d.id,
			Action:   d.def.Name,
			Message:  fmt.Sprintf("planning of %s#%d failed", a.def.Name, a.id),
		}
	}
}

// refTarget returns the action a ref inside owner's input points at.
func (pl *planner) refTarget(owner *Action, ref ir.IRRef) (*Action, error) {
	target := pl.plan.action(ref.ActionID)
	switch {
	case target == nil:
		return nil, fmt.Errorf("ref %s: no such action", ref)
	case target == owner:
		return nil, fmt.Errorf("ref %s: action cannot depend on its own output", ref)
	case !target.runnable && target.state != StateError:
		return nil, fmt.Errorf("ref %s: %s#%d has no run step", ref, target.def.Name, target.id)
	}
	return target, nil
}

// refType returns the declared output type at the ref's path.
func (pl *planner) refType(ref ir.IRRef) (*schema.Type, error) {
	target := pl.plan.action(ref.ActionID)
	if target == nil {
		return nil, fmt.Errorf("no such action")
	}
	if target.def.Output == nil {
		return schema.Any(), nil
	}
	return pl.schemas.TypeAt(target.def.Output, ref.Path)
}

// addEdge makes a depend on the action with id dep, refusing edges that
// would close a cycle.
func (pl *planner) addEdge(a *Action, dep int64) error {
	if dep == a.id || pl.reaches(dep, a.id) {
		return fmt.Errorf("dependency on #%d would create a cycle at %s#%d", dep, a.def.Name, a.id)
	}
	if !slices.Contains(a.deps, dep) {
		a.deps = append(a.deps, dep)
	}
	return nil
}

// reaches reports whether from transitively depends on to.
func (pl *planner) reaches(from, to int64) bool {
	seen := map[int64]bool{}
	stack := []int64{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if n := pl.plan.action(id); n != nil {
			stack = append(stack, n.deps...)
		}
	}
	return false
}
