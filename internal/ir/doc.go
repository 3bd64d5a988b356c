// Package ir provides the value and event types shared by every actionplan
// package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in action records - use int64 for numbers
//   - IRRef is the only value that points at another action; it is resolved
//     to a concrete value before the referencing action runs
//   - All JSON tags use snake_case
//   - Event ordering uses logical clocks (seq), never wall-clock timestamps
package ir
