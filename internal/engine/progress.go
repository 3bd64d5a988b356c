package engine

import (
	"log/slog"
	"math"

	"github.com/roach88/actionplan/internal/ir"
)

// RunProgress returns the run phase completion in [0,1].
//
// Without a RunProgress hook it is binary: 0 until the run phase ends,
// then 1. With a hook the reported fraction is clamped to [0,1] and never
// decreases between calls.
func (a *Action) RunProgress() float64 {
	state := a.State()

	var v float64
	switch {
	case state.RunTerminal():
		v = 1
	case (state == StateRunning || state == StateSuspended) && a.def.Capabilities().Has(CapProgress):
		v = a.reportedProgress()
	}

	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	if v < a.runProgress {
		v = a.runProgress
	}
	a.runProgress = v
	return v
}

func (a *Action) reportedProgress() (v float64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("run progress hook panicked",
				"action_id", a.id,
				"action", a.def.Name,
				"panic", r,
			)
			v = 0
		}
	}()
	v = a.def.RunProgress(a)
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}

// finalizeProgress is 1 once nothing is left to do for the action.
func (a *Action) finalizeProgress() float64 {
	if a.State().Terminal() {
		return 1
	}
	return 0
}

// Progress returns plan completion in [0,1], computed on demand.
//
// Each runnable action contributes runWeight*runProgress +
// finalizeWeight*finalizeProgress; the plan value is the weighted average
// over all runnable actions.
func (p *Plan) Progress() float64 {
	var total, done float64
	for _, a := range p.actions {
		if !a.runnable {
			continue
		}
		rw, fw := a.def.runWeight(), a.def.finalizeWeight()
		total += rw + fw
		done += rw*a.RunProgress() + fw*a.finalizeProgress()
	}
	if total == 0 {
		if p.Status().Finished() {
			return 1
		}
		return 0
	}
	return done / total
}

func scaleProgress(v float64) int64 {
	return int64(math.Round(v * ir.ProgressScale))
}
