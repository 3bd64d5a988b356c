package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts the actions planned in one plan and enforces a
// maximum.
//
// It complements the subscription cycle guard:
//   - Cycle guard: catches recursive subscriptions (A → B → A)
//   - Node quota: catches runaway fan-out and recursive PlanAction calls
//
// Together they guarantee that planning terminates.
type QuotaEnforcer struct {
	maxNodes int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
// A limit <= 0 disables enforcement.
func NewQuotaEnforcer(maxNodes int) *QuotaEnforcer {
	return &QuotaEnforcer{maxNodes: maxNodes}
}

// Check counts one more action and validates against the limit.
func (q *QuotaEnforcer) Check(planID string) error {
	q.current++
	if q.maxNodes > 0 && q.current > q.maxNodes {
		return &NodesExceededError{
			PlanID: planID,
			Nodes:  q.current,
			Limit:  q.maxNodes,
		}
	}
	return nil
}

// Current returns the number of actions counted so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxNodes returns the limit.
func (q *QuotaEnforcer) MaxNodes() int {
	return q.maxNodes
}

// NodesExceededError is returned when a plan grows past the node quota.
type NodesExceededError struct {
	PlanID string
	Nodes  int
	Limit  int
}

// Error implements the error interface.
func (e *NodesExceededError) Error() string {
	return fmt.Sprintf("plan %s exceeded max nodes quota: %d nodes > %d limit",
		e.PlanID, e.Nodes, e.Limit)
}

// IsNodesExceededError returns true if the error is a NodesExceededError.
// Uses errors.As to handle wrapped errors.
func IsNodesExceededError(err error) bool {
	var ne *NodesExceededError
	return errors.As(err, &ne)
}
