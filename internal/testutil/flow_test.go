package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/engine"
)

var _ engine.PlanIDGenerator = (*SequentialGenerator)(nil)

func TestSequentialGenerator_Counts(t *testing.T) {
	gen := NewSequentialGenerator("release")

	assert.Equal(t, "release-1", gen.Generate())
	assert.Equal(t, "release-2", gen.Generate())
	assert.Equal(t, "release-3", gen.Generate())
}

func TestSequentialGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialGenerator("")

	assert.Equal(t, "plan-1", gen.Generate())
}

func TestSequentialGenerator_FreshGeneratorsAgree(t *testing.T) {
	a := NewSequentialGenerator("x")
	b := NewSequentialGenerator("x")

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Generate(), b.Generate())
	}
}

func TestSequentialGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialGenerator("p")
	const goroutines = 10
	const calls = 100

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*calls, "ids are unique")
}
