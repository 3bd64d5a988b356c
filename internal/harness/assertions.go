package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/actionplan/internal/ir"
	"github.com/roach88/actionplan/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, line := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertPlanStatus:
			err = assertPlanStatus(result, a)
		case AssertActionState:
			err = assertActionState(result, a)
		case AssertActionOutput:
			err = assertRecord(result, a, "output", a.Output, func(s store.ActionState) ir.IRObject { return s.Output })
		case AssertActionInput:
			err = assertRecord(result, a, "input", a.Input, func(s store.ActionState) ir.IRObject { return s.Input })
		case AssertActionCount:
			err = assertActionCount(result, a)
		case AssertRunBefore:
			err = assertRunBefore(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func assertPlanStatus(r *Result, a Assertion) error {
	if r.Status == a.Status {
		return nil
	}
	return &AssertionError{
		Type:     AssertPlanStatus,
		Expected: fmt.Sprintf("plan status %s", a.Status),
		Actual:   fmt.Sprintf("plan status %s", r.Status),
		Trace:    r.Trace,
	}
}

// nth returns the a.Index-th action of kind a.Action.
func nth(r *Result, a Assertion) (store.ActionState, error) {
	found := r.Find(a.Action)
	if a.Index < len(found) {
		return found[a.Index], nil
	}
	return store.ActionState{}, &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s[%d] to be planned", a.Action, a.Index),
		Actual:   fmt.Sprintf("%d actions of kind %s", len(found), a.Action),
		Trace:    r.Trace,
	}
}

func assertActionState(r *Result, a Assertion) error {
	act, err := nth(r, a)
	if err != nil {
		return err
	}
	if act.State == a.State {
		return nil
	}
	actual := act.State
	if act.Error != "" {
		actual += fmt.Sprintf(" (%s: %s)", act.ErrorKind, act.Error)
	}
	return &AssertionError{
		Type:     AssertActionState,
		Expected: fmt.Sprintf("%s#%d in state %s", act.Action, act.ID, a.State),
		Actual:   actual,
		Trace:    r.Trace,
	}
}

// assertRecord checks that the selected record contains want (subset
// match, recursive into nested objects).
func assertRecord(r *Result, a Assertion, what string, want map[string]any, pick func(store.ActionState) ir.IRObject) error {
	act, err := nth(r, a)
	if err != nil {
		return err
	}
	expected, err := ir.ToIRValue(want)
	if err != nil {
		return fmt.Errorf("%s: expected %s: %w", a.Type, what, err)
	}
	got := pick(act)
	if matchSubset(got, expected) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s#%d %s containing %s", act.Action, act.ID, what, describe(expected)),
		Actual:   describe(got),
		Trace:    r.Trace,
	}
}

func assertActionCount(r *Result, a Assertion) error {
	n := len(r.Find(a.Action))
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertActionCount,
		Expected: fmt.Sprintf("%d actions of kind %s", a.Count, a.Action),
		Actual:   fmt.Sprintf("%d actions", n),
		Trace:    r.Trace,
	}
}

// assertRunBefore checks that every action of each kind finished its run
// phase before any action of the next kind started running.
func assertRunBefore(r *Result, a Assertion) error {
	finished := func(name string) (int, bool) {
		last, seen := -1, false
		for i, ev := range r.events {
			if ev.Action == name && (ev.State == "success_run" || ev.State == "error_run") {
				last, seen = i, true
			}
		}
		return last, seen
	}
	started := func(name string) (int, bool) {
		for i, ev := range r.events {
			if ev.Action == name && ev.State == "running" {
				return i, true
			}
		}
		return -1, false
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		end, ok := finished(prev)
		if !ok {
			return &AssertionError{
				Type:     AssertRunBefore,
				Expected: fmt.Sprintf("%s to finish its run phase", prev),
				Actual:   "never finished",
				Trace:    r.Trace,
			}
		}
		start, ok := started(curr)
		if !ok {
			return &AssertionError{
				Type:     AssertRunBefore,
				Expected: fmt.Sprintf("%s to start running", curr),
				Actual:   "never started",
				Trace:    r.Trace,
			}
		}
		if end > start {
			return &AssertionError{
				Type:     AssertRunBefore,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s finished (event %d) after %s started (event %d)",
					prev, end+1, curr, start+1),
				Trace: r.Trace,
			}
		}
	}
	return nil
}

// matchSubset reports whether got contains want. Objects match when every
// key of want matches; everything else must be equal.
func matchSubset(got, want ir.IRValue) bool {
	wantObj, ok := want.(ir.IRObject)
	if !ok {
		return reflect.DeepEqual(got, want)
	}
	gotObj, ok := got.(ir.IRObject)
	if !ok {
		return false
	}
	for k, w := range wantObj {
		g, exists := gotObj[k]
		if !exists || !matchSubset(g, w) {
			return false
		}
	}
	return true
}

func describe(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
