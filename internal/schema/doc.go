// Package schema declares the shapes of action inputs and outputs and
// validates records against them.
//
// A Type is a tree of kinds: string, int, bool, enum, record, array, any,
// and ref. A ref names another declared type ("Commit.input") and is looked
// up in a Registry each time it is validated, so a borrowed schema always
// reflects the current declaration instead of a copy.
//
// Validation is structural and recursive. Records reject unknown fields
// and missing required fields. Violations are reported as *ViolationError
// carrying the dotted path of the offending value.
package schema
