package testutil

import (
	"time"

	"github.com/roach88/actionplan/internal/engine"
)

// EngineOptions returns options for reproducible runs: plan IDs from a
// fresh SequentialGenerator, a fresh clock, fast polling and rec as an
// observer when non-nil.
func EngineOptions(rec *Recorder, planPrefix string) []engine.EngineOption {
	opts := []engine.EngineOption{
		engine.WithPlanIDGenerator(NewSequentialGenerator(planPrefix)),
		engine.WithClock(engine.NewClock()),
		engine.WithPollInterval(time.Millisecond),
	}
	if rec != nil {
		opts = append(opts, engine.WithObserver(rec))
	}
	return opts
}
