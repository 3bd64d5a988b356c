package engine

import (
	"github.com/roach88/actionplan/internal/ir"
)

// Observer is notified at every phase boundary.
//
// Calls are made from the planning goroutine and from the plan's
// coordinator goroutine, never while engine locks are held. Observers must
// not block for long; slow sinks should buffer.
type Observer interface {
	ActionEvent(ev ir.ActionEvent)
	PlanEvent(ev ir.PlanEvent)
}

// Observers fans events out to several observers in order.
type Observers []Observer

// ActionEvent implements Observer.
func (o Observers) ActionEvent(ev ir.ActionEvent) {
	for _, obs := range o {
		obs.ActionEvent(ev)
	}
}

// PlanEvent implements Observer.
func (o Observers) PlanEvent(ev ir.PlanEvent) {
	for _, obs := range o {
		obs.PlanEvent(ev)
	}
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnAction func(ir.ActionEvent)
	OnPlan   func(ir.PlanEvent)
}

// ActionEvent implements Observer.
func (f ObserverFuncs) ActionEvent(ev ir.ActionEvent) {
	if f.OnAction != nil {
		f.OnAction(ev)
	}
}

// PlanEvent implements Observer.
func (f ObserverFuncs) PlanEvent(ev ir.PlanEvent) {
	if f.OnPlan != nil {
		f.OnPlan(ev)
	}
}
