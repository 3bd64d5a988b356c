// Package metrics exports engine activity as Prometheus collectors.
//
// An Observer is attached to the engine with engine.WithObserver. It counts
// phase events, times the run and finalize phases of every action, and
// tracks how many plans are executing.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/actionplan/internal/ir"
)

const (
	namespace = "actionplan"
	subsystem = "engine"
)

// Observer implements engine.Observer on top of Prometheus collectors.
//
// Thread-safety: all methods are safe for concurrent use.
type Observer struct {
	events        *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	plansFinished *prometheus.CounterVec
	plansActive   prometheus.Gauge

	now func() time.Time

	mu      sync.Mutex
	started map[phaseKey]time.Time
	active  map[string]struct{}
}

type phaseKey struct {
	plan   string
	action int64
	phase  ir.Phase
}

// Option configures an Observer.
type Option func(*Observer)

// WithNow replaces the clock used to time phases.
func WithNow(now func() time.Time) Option {
	return func(o *Observer) { o.now = now }
}

// New builds an Observer and registers its collectors with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, opts ...Option) (*Observer, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &Observer{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "phase_events_total",
				Help:      "Action state changes, by action kind, phase and state.",
			},
			[]string{"action", "phase", "state"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "phase_duration_seconds",
				Help:      "Time from entering a run or finalize phase to leaving it.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action", "phase", "outcome"},
		),
		plansFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "plans_finished_total",
				Help:      "Plans that reached a final status.",
			},
			[]string{"root", "status"},
		),
		plansActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "plans_active",
				Help:      "Plans currently executing.",
			},
		),
		now:     time.Now,
		started: make(map[phaseKey]time.Time),
		active:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	for _, c := range []prometheus.Collector{o.events, o.phaseDuration, o.plansFinished, o.plansActive} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// MustNew is New that panics on registration errors.
func MustNew(reg prometheus.Registerer, opts ...Option) *Observer {
	o, err := New(reg, opts...)
	if err != nil {
		panic(err)
	}
	return o
}

// ActionEvent implements engine.Observer.
func (o *Observer) ActionEvent(ev ir.ActionEvent) {
	o.events.WithLabelValues(ev.Action, string(ev.Phase), ev.State).Inc()

	key := phaseKey{plan: ev.PlanID, action: ev.ActionID, phase: ev.Phase}
	now := o.now()

	o.mu.Lock()
	defer o.mu.Unlock()

	switch ev.State {
	case "running", "running_finalize":
		if _, ok := o.started[key]; !ok {
			o.started[key] = now
		}
		return
	case "suspended":
		return
	}

	start, ok := o.started[key]
	if !ok {
		return
	}
	delete(o.started, key)
	o.phaseDuration.WithLabelValues(ev.Action, string(ev.Phase), outcome(ev)).Observe(now.Sub(start).Seconds())
}

// PlanEvent implements engine.Observer.
func (o *Observer) PlanEvent(ev ir.PlanEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, running := o.active[ev.PlanID]
	switch ev.Status {
	case "pending":
	case "running", "suspended":
		if !running {
			o.active[ev.PlanID] = struct{}{}
			o.plansActive.Inc()
		}
	default:
		if running {
			delete(o.active, ev.PlanID)
			o.plansActive.Dec()
		}
		o.plansFinished.WithLabelValues(ev.RootAction, ev.Status).Inc()
	}
}

func outcome(ev ir.ActionEvent) string {
	switch {
	case ev.State == "cancelled":
		return "cancelled"
	case ev.ErrorKind != "":
		return "error"
	default:
		return "success"
	}
}
