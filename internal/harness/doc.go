// Package harness runs action plans described by YAML scenarios and checks
// the outcome.
//
// # Scenario Format
//
//	name: commit_with_rejected_review
//	description: "A failing review blocks the merge"
//	action: Commit
//	args:
//	  - { sha: abc123 }
//	  - { Morfeus: true, Neo: false }
//	assertions:
//	  - type: plan_status
//	    status: success
//	  - type: action_count
//	    action: Review
//	    count: 2
//	  - type: action_output
//	    action: Merge
//	    output: { passed: false }
//	  - type: run_before
//	    actions: [Ci, Merge]
//
// # Assertion Types
//
//   - plan_status: the plan finished with the given status
//   - action_state: an action ended in the given state
//   - action_output: an action's output contains the given fields
//   - action_input: an action's resolved input contains the given fields
//   - action_count: exactly N actions of a kind were planned
//   - run_before: each action finished its run phase before the next started
//
// Actions are addressed by kind and an optional zero-based index in plan
// order, so "index: 1" names the second Review planned.
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory journal with sequential
// plan IDs and a fresh logical clock. Assertions are evaluated against the
// plan as replayed from the journal, so a passing scenario also proves the
// journal captured it. Golden snapshots hold the replayed actions ordered by
// action ID, which planning assigns deterministically.
package harness
