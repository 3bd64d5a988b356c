package engine

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/ir"
)

func TestClock_Ticks(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current(), "Current does not tick")
}

func TestClock_ResumesAfterStart(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_AdvanceTo(t *testing.T) {
	tests := []struct {
		name  string
		start int64
		to    int64
		next  int64
	}{
		{name: "forward", start: 3, to: 10, next: 11},
		{name: "equal", start: 10, to: 10, next: 11},
		{name: "never backwards", start: 10, to: 4, next: 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClockAt(tt.start)
			c.AdvanceTo(tt.to)
			assert.Equal(t, tt.next, c.Next())
		})
	}
}

func TestClock_ConcurrentTicksAreUnique(t *testing.T) {
	c := NewClock()
	const workers, ticks = 16, 250

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*ticks)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < ticks; i++ {
				if i%50 == 0 {
					c.AdvanceTo(int64(w))
				}
				seq := c.Next()
				mu.Lock()
				seen[seq] = struct{}{}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	require.Len(t, seen, workers*ticks, "every tick is distinct")
	assert.GreaterOrEqual(t, c.Current(), int64(workers*ticks))
}

func TestEngine_EventsShareOneClock(t *testing.T) {
	rec := &seqRecorder{}
	e, _ := newTestEngine(t, []*Definition{dummy("Noop")}, WithObserver(rec), WithClock(NewClockAt(100)))

	runPlan(t, e, "Noop")
	runPlan(t, e, "Noop")

	require.NotEmpty(t, rec.seqs)
	slices.Sort(rec.seqs)
	assert.Equal(t, int64(101), rec.seqs[0])
	for i := 1; i < len(rec.seqs); i++ {
		assert.Equal(t, rec.seqs[i-1]+1, rec.seqs[i], "seqs across plans are gapless")
	}
	assert.Equal(t, rec.seqs[len(rec.seqs)-1], e.Clock().Current())
}

type seqRecorder struct {
	mu   sync.Mutex
	seqs []int64
}

func (r *seqRecorder) ActionEvent(ev ir.ActionEvent) { r.add(ev.Seq) }
func (r *seqRecorder) PlanEvent(ev ir.PlanEvent)     { r.add(ev.Seq) }

func (r *seqRecorder) add(seq int64) {
	r.mu.Lock()
	r.seqs = append(r.seqs, seq)
	r.mu.Unlock()
}
