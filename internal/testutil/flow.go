package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates plan IDs "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with a fresh SequentialGenerator produces the same plan
// IDs, and with them the same content-addressed event IDs.
//
// Unlike engine.FixedGenerator, which hands out a fixed list and panics when
// it runs out, this generator never runs dry.
//
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a plan ID generator.
//
// The prefix is typically set in the scenario YAML:
//
//	plan_id: "release"
//
// If prefix is empty, IDs start with "plan".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "plan"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next plan ID.
//
// Implements engine.PlanIDGenerator.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
