package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/roach88/actionplan/internal/ir"
)

const (
	// DefaultWorkers bounds concurrent run phases and polls per engine.
	DefaultWorkers = 4

	// DefaultPollInterval is used by external tasks without an Interval.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultMaxNodes bounds the number of actions in one plan.
	DefaultMaxNodes = 10000
)

// Engine plans and executes actions of a Registry.
//
// Thread-safety model:
//   - Plan(): safe from any goroutine; planning runs in the caller's goroutine
//   - Execute(): at most once per plan; blocks until the plan finishes
//   - Trigger(): Plan followed by Execute in a new goroutine
//
// All plans of an engine share the worker pool and the logical clock.
type Engine struct {
	registry     *Registry
	clock        *Clock
	planIDs      PlanIDGenerator
	observers    Observers
	sem          *semaphore.Weighted
	workers      int
	pollInterval time.Duration
	polls        *rate.Limiter // nil: unlimited
	maxNodes     int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithWorkers sets the number of concurrently executing hooks.
//
// Default: 4 (DefaultWorkers). Values below 1 are ignored.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithPollInterval sets the default interval between polls of suspended
// external tasks.
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithPollRate caps how many polls per second the engine issues across
// all plans, allowing bursts of up to burst polls. perSecond <= 0 removes
// the cap. Invokes are not limited.
func WithPollRate(perSecond float64, burst int) EngineOption {
	return func(e *Engine) {
		if perSecond <= 0 {
			e.polls = nil
			return
		}
		e.polls = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithMaxNodes sets the maximum number of actions per plan.
//
// Default: 10000 (DefaultMaxNodes). Zero disables the limit.
// Use WithMaxNodes(10) for testing quota enforcement.
func WithMaxNodes(n int) EngineOption {
	return func(e *Engine) {
		e.maxNodes = n
	}
}

// WithObserver adds an observer. Observers are notified in the order they
// were added.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithPlanIDGenerator replaces the UUIDv7 plan ID generator.
func WithPlanIDGenerator(g PlanIDGenerator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.planIDs = g
		}
	}
}

// WithClock sets the logical clock. Used to continue numbering after
// events already in a journal.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates an Engine for the definitions in reg.
//
// Options can be passed to configure the engine (e.g., WithWorkers).
func New(reg *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:     reg,
		clock:        NewClock(),
		planIDs:      UUIDv7Generator{},
		workers:      DefaultWorkers,
		pollInterval: DefaultPollInterval,
		maxNodes:     DefaultMaxNodes,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sem = semaphore.NewWeighted(int64(e.workers))
	return e
}

// Registry returns the registry the engine plans from.
func (e *Engine) Registry() *Registry { return e.registry }

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock { return e.clock }

// Plan builds the dependency graph of the action kind name.
//
// Planning failures inside the tree are recorded on the failing actions and
// do not make Plan fail; the plan then finishes in error once executed.
// Plan only returns an error when name is unknown or the plan exceeds the
// node quota.
func (e *Engine) Plan(name string, args ...ir.IRValue) (*Plan, error) {
	def, ok := e.registry.Lookup(name)
	if !ok {
		return nil, &UnknownActionError{Name: name}
	}

	p := newPlan(e, e.planIDs.Generate())
	pl := newPlanner(p, e.registry, e.maxNodes)
	root, _, err := pl.planAction(def, nil, nil, nil, args)
	if err == nil {
		err = pl.exceeded
	}
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", name, err)
	}
	p.root = root

	slog.Debug("plan built",
		"plan_id", p.id,
		"root", name,
		"actions", len(p.actions),
	)

	for _, a := range p.actions {
		e.observers.ActionEvent(p.actionEvent(a, ir.PhasePlan))
	}
	e.observers.PlanEvent(p.planEvent())
	return p, nil
}

// Execute runs the plan to completion: every run phase, then the finalize
// pass. It blocks until the plan finished.
//
// ctx is the plan's cancellation token. When it expires pending actions
// are cancelled, suspended external tasks fail and Execute returns
// ctx.Err() after running actions returned. Action failures are not
// returned; inspect Plan.Status and Plan.Errors.
func (e *Engine) Execute(ctx context.Context, p *Plan) error {
	if p.engine != e {
		return fmt.Errorf("plan %s belongs to another engine", p.id)
	}
	return p.execute(ctx)
}

// Trigger plans name and executes the plan in a new goroutine. Use
// Plan.Wait or Plan.Done to observe completion.
func (e *Engine) Trigger(ctx context.Context, name string, args ...ir.IRValue) (*Plan, error) {
	p, err := e.Plan(name, args...)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := e.Execute(ctx, p); err != nil {
			slog.Warn("plan execution interrupted", "plan_id", p.id, "error", err)
		}
	}()
	return p, nil
}
