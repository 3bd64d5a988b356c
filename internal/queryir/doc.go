// Package queryir is the filter language for journal queries.
//
// A query names a source (the phase events of one plan, or the plan
// summaries) and an optional predicate over that source's columns.
// Backends compile queries; querysql turns them into parameterized SQLite.
//
//	[trace --where] → [queryir.Query] → [querysql] → [store]
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch over every node exhaustively:
//
//	switch q := query.(type) {
//	case Events:
//	    // phase events of q.Plan
//	case Plans:
//	    // plan summaries
//	}
//
// Literal values are ir.IRValues. Only strings and ints are comparable;
// Validate rejects every other kind, and rejects fields the source does
// not have.
package queryir
