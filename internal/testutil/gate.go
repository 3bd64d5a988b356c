package testutil

import (
	"context"
	"sync"
)

// Gate blocks action hooks until a test releases them.
//
// A hook calls Pause; the test waits on Reached to know a hook is parked,
// inspects the plan, then calls Release to let every parked and future
// caller through.
type Gate struct {
	mu       sync.Mutex
	reached  chan struct{}
	released chan struct{}
	once     sync.Once
	parked   int
}

// NewGate returns a closed gate.
func NewGate() *Gate {
	return &Gate{
		reached:  make(chan struct{}),
		released: make(chan struct{}),
	}
}

// Pause blocks until Release is called or ctx is done. The first call
// closes Reached.
func (g *Gate) Pause(ctx context.Context) error {
	g.mu.Lock()
	g.parked++
	if g.parked == 1 {
		close(g.reached)
	}
	g.mu.Unlock()

	select {
	case <-g.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reached is closed once the first caller is parked.
func (g *Gate) Reached() <-chan struct{} {
	return g.reached
}

// Release opens the gate. Safe to call more than once.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.released) })
}

// Parked returns how many Pause calls were made.
func (g *Gate) Parked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.parked
}
