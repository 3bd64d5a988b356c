// Package store is the SQLite plan journal.
//
// Journal is an engine observer that appends every phase event and plan
// status change as it happens. Nothing in the engine reads the journal
// back; it exists for the trace command and for scenario assertions.
//
// Tables:
//   - plans: one row per plan, updated with every plan status change
//   - phase_events: every action state transition, verbatim
//
// Ordering uses seq, the engine's logical clock, never timestamps. Every
// query ends in ORDER BY seq ASC, id ASC COLLATE BINARY (or first_seq for
// plans) so repeated reads return identical results. Event IDs are
// content-addressed, which makes re-journaling an event a no-op.
//
// ReplayPlan folds a plan's events into the last state of each action.
// Replays of finished plans are kept in a small LRU cache; any write for
// the plan evicts its entry.
//
// Records are serialized with ir.MarshalCanonical (RFC 8785).
package store
