// Package codeflow is a catalog of example actions modelling an issue
// tracker and a code review pipeline. The actions carry no orchestration
// logic of their own; they declare how they compose and what their hooks
// do, and the engine does the rest.
//
// Schemas live in catalog.cue and are bound to the definitions at
// registration, so a borrowed schema such as Commit.input has a single
// source.
//
// Tests and scenario files plan these actions to exercise sequencing,
// concurrence, subscriptions, polling and progress end to end.
package codeflow
