package engine

import (
	"sync"

	"github.com/google/uuid"
)

// PlanIDGenerator generates unique plan IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type PlanIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 plan IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so journaled
// plans list in creation order.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined plan IDs for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("plan-1", "plan-2")
//	gen.Generate() // "plan-1"
//	gen.Generate() // "plan-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{tokens: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch a test planning more
// often than it expected.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.tokens[g.idx]
	g.idx++
	return id
}
