package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/ir"
)

func heavyProgressDefs() []*Definition {
	return []*Definition{
		{
			Name: "DummyHeavyProgress",
			Plan: func(p *PlanContext, args ...ir.IRValue) error {
				_, err := p.Sequence(func(s *Scope) error {
					if _, err := s.PlanSelf(nil); err != nil {
						return err
					}
					_, err := s.PlanAction("DummySuspended")
					return err
				})
				return err
			},
			RunWeight:      4,
			FinalizeWeight: 5,
		},
		suspended("DummySuspended", 10),
	}
}

func TestProgress_WeightedAverage(t *testing.T) {
	e, _ := newTestEngine(t, heavyProgressDefs())
	p, err := e.Plan("DummyHeavyProgress")
	require.NoError(t, err)

	heavy := p.Root()
	susp := only(t, p, "DummySuspended")
	assert.Equal(t, 0.0, p.Progress())

	heavy.state = StateSuccessRun
	assert.InDelta(t, 0.4, p.Progress(), 1e-9, "run weight 4 of total 10")

	susp.state = StateSuspended
	require.NoError(t, susp.Output().Set("progress", ir.IRInt(50)))
	assert.InDelta(t, 0.45, p.Progress(), 1e-9)

	heavy.state = StateSuccess
	susp.state = StateSuccess
	assert.InDelta(t, 1.0, p.Progress(), 1e-9)
}

func TestProgress_ExecutedPlanIsComplete(t *testing.T) {
	e, _ := newTestEngine(t, heavyProgressDefs())
	p := runPlan(t, e, "DummyHeavyProgress")
	assert.Equal(t, StatusSuccess, p.Status())
	assert.Equal(t, 1.0, p.Progress())
}

func TestProgress_CompositeOnlyPlan(t *testing.T) {
	e, _ := newTestEngine(t, []*Definition{{Name: "Empty", Plan: func(*PlanContext, ...ir.IRValue) error { return nil }}})

	p, err := e.Plan("Empty")
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Progress())

	p = runPlan(t, e, "Empty")
	assert.Equal(t, StatusSuccess, p.Status())
	assert.Equal(t, 1.0, p.Progress())
}

func TestRunProgress_HookIsClampedAndMonotonic(t *testing.T) {
	var reported float64
	e, _ := newTestEngine(t, []*Definition{{
		Name:        "Reporter",
		RunProgress: func(a *Action) float64 { return reported },
	}})
	p, err := e.Plan("Reporter")
	require.NoError(t, err)
	a := p.Root()

	assert.Equal(t, 0.0, a.RunProgress(), "pending reports nothing")

	a.state = StateRunning
	tests := []struct {
		reported float64
		want     float64
	}{
		{0.3, 0.3},
		{0.6, 0.6},
		{0.2, 0.6},
		{-1, 0.6},
		{math.NaN(), 0.6},
		{2, 1},
	}
	for _, tt := range tests {
		reported = tt.reported
		assert.Equal(t, tt.want, a.RunProgress(), "reported %v", tt.reported)
	}
}

func TestRunProgress_HookPanicReportsZero(t *testing.T) {
	e, _ := newTestEngine(t, []*Definition{{
		Name:        "Panics",
		RunProgress: func(a *Action) float64 { panic("nope") },
	}})
	p, err := e.Plan("Panics")
	require.NoError(t, err)

	a := p.Root()
	a.state = StateRunning
	assert.Equal(t, 0.0, a.RunProgress())
}

func TestRunProgress_BinaryWithoutHook(t *testing.T) {
	e, _ := newTestEngine(t, []*Definition{dummy("Dummy")})
	p, err := e.Plan("Dummy")
	require.NoError(t, err)

	a := p.Root()
	a.state = StateRunning
	assert.Equal(t, 0.0, a.RunProgress())
	a.state = StateErrorRun
	assert.Equal(t, 1.0, a.RunProgress(), "a finished run phase counts as complete")
}

func TestScaleProgress(t *testing.T) {
	assert.Equal(t, int64(0), scaleProgress(0))
	assert.Equal(t, int64(4500), scaleProgress(0.45))
	assert.Equal(t, int64(ir.ProgressScale), scaleProgress(1))
}
