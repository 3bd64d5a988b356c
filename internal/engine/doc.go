// Package engine implements the action orchestration core.
//
// An action kind is declared as a Definition: optional hooks for planning,
// running, finalizing and polling an external task, plus input and output
// schemas. Planning a root action runs its Plan hook, which composes child
// actions with PlanAction, Sequence and Concurrence and registers its own
// run step with PlanSelf. The result is a dependency graph of Actions.
//
// ARCHITECTURE:
//
// Planning runs in the caller's goroutine and is fully deterministic: action
// IDs are assigned in planning order and subscribers are planned right after
// their trigger's Plan hook returns.
//
// Execution uses a single-writer coordinator. One goroutine owns every state
// transition and consumes events from an unbounded queue. Run phases and
// individual polls execute on worker goroutines bounded by a weighted
// semaphore; they report back by enqueueing events. Suspended actions hold
// no worker between polls.
//
// Lifecycle of a runnable action:
//
//	pending → running → success_run | error_run | suspended
//	suspended → running (next poll)
//	success_run → running_finalize → success | error
//
// Finalize is a second, plan-wide pass that starts only after every action
// reached a terminal run state. A dependency that ends in error_run, error or
// cancelled cancels its dependents before they ever run.
//
// Observers are notified at every phase boundary with ir.ActionEvent and
// ir.PlanEvent values stamped by a logical Clock.
package engine
