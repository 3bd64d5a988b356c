package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/actionplan/internal/ir"
)

// Span names.
const (
	SpanPlan     = "actionplan.plan"
	SpanRun      = "actionplan.action.run"
	SpanFinalize = "actionplan.action.finalize"
)

// Attribute keys.
const (
	AttrPlanID     = "actionplan.plan_id"
	AttrRootAction = "actionplan.root_action"
	AttrStatus     = "actionplan.status"
	AttrProgress   = "actionplan.progress"
	AttrActionID   = "actionplan.action_id"
	AttrAction     = "actionplan.action"
	AttrState      = "actionplan.state"
	AttrParentID   = "actionplan.parent_id"
	AttrTriggerID  = "actionplan.trigger_id"
	AttrErrorKind  = "actionplan.error_kind"
)

// Observer implements engine.Observer by opening and closing spans.
//
// Thread-safety: all methods are safe for concurrent use.
type Observer struct {
	tracer trace.Tracer

	mu     sync.Mutex
	plans  map[string]*planSpan
	phases map[phaseKey]trace.Span
}

type planSpan struct {
	ctx  context.Context
	span trace.Span
}

type phaseKey struct {
	plan   string
	action int64
	phase  ir.Phase
}

// NewObserver returns an observer that starts spans from tracer.
func NewObserver(tracer trace.Tracer) *Observer {
	return &Observer{
		tracer: tracer,
		plans:  make(map[string]*planSpan),
		phases: make(map[phaseKey]trace.Span),
	}
}

// ActionEvent implements engine.Observer.
func (o *Observer) ActionEvent(ev ir.ActionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	plan := o.plan(ev.PlanID)
	if ev.Phase == ir.PhasePlan {
		plan.span.AddEvent("planned", trace.WithAttributes(actionAttrs(ev)...))
		return
	}

	key := phaseKey{plan: ev.PlanID, action: ev.ActionID, phase: ev.Phase}
	span, open := o.phases[key]

	switch ev.State {
	case "running", "running_finalize":
		if open {
			span.AddEvent("resumed")
			return
		}
		name := SpanRun
		if ev.Phase == ir.PhaseFinalize {
			name = SpanFinalize
		}
		_, span = o.tracer.Start(plan.ctx, name, trace.WithAttributes(actionAttrs(ev)...))
		o.phases[key] = span
		return
	case "suspended":
		if open {
			span.AddEvent("suspended", trace.WithAttributes(attribute.Int64(AttrProgress, ev.Progress)))
		}
		return
	}

	if !open {
		return
	}
	delete(o.phases, key)
	span.SetAttributes(attribute.String(AttrState, ev.State))
	if ev.ErrorKind != "" {
		span.SetAttributes(attribute.String(AttrErrorKind, ev.ErrorKind))
		span.SetStatus(codes.Error, ev.Error)
	}
	span.End()
}

// PlanEvent implements engine.Observer.
func (o *Observer) PlanEvent(ev ir.PlanEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	plan := o.plan(ev.PlanID)
	if ev.RootAction != "" {
		plan.span.SetAttributes(attribute.String(AttrRootAction, ev.RootAction))
	}
	plan.span.AddEvent(ev.Status, trace.WithAttributes(attribute.Int64(AttrProgress, ev.Progress)))

	switch ev.Status {
	case "pending", "running", "suspended":
		return
	}

	// Phases still open when the plan settles never reported an outcome.
	for key, span := range o.phases {
		if key.plan == ev.PlanID {
			span.End()
			delete(o.phases, key)
		}
	}
	plan.span.SetAttributes(
		attribute.String(AttrStatus, ev.Status),
		attribute.Int64(AttrProgress, ev.Progress),
	)
	if ev.Status == "error" {
		plan.span.SetStatus(codes.Error, "plan finished with errors")
	}
	plan.span.End()
	delete(o.plans, ev.PlanID)
}

// plan returns the span of planID, starting it on first sight. Callers
// hold o.mu.
func (o *Observer) plan(planID string) *planSpan {
	if p, ok := o.plans[planID]; ok {
		return p
	}
	ctx, span := o.tracer.Start(context.Background(), SpanPlan,
		trace.WithAttributes(attribute.String(AttrPlanID, planID)))
	p := &planSpan{ctx: ctx, span: span}
	o.plans[planID] = p
	return p
}

func actionAttrs(ev ir.ActionEvent) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64(AttrActionID, ev.ActionID),
		attribute.String(AttrAction, ev.Action),
	}
	if ev.ParentID != 0 {
		attrs = append(attrs, attribute.Int64(AttrParentID, ev.ParentID))
	}
	if ev.TriggerID != 0 {
		attrs = append(attrs, attribute.Int64(AttrTriggerID, ev.TriggerID))
	}
	return attrs
}
