// Package trigger decides when the retraining pipeline should run.
//
// Conditions are evaluated against the persisted TriggerState and
// OR-combined; every condition that fires lands in the decision's reasons.
// A pending manual request bypasses the conditions entirely.
package trigger

import (
	"context"
	"time"

	"github.com/opsforge/relearn/pkg/domain"
	kdb "github.com/opsforge/relearn/pkg/domain/trigger/db"
)

// Condition is one automatic trigger rule.
type Condition interface {
	// Evaluate reports whether the condition fires for the given state.
	Evaluate(state domain.TriggerState, now time.Time) (domain.TriggerReason, bool)
}

// Scheduled fires once per weekly slot: Weekday at Hour o'clock, held open
// for Window. It refires only when no family ran since the slot opened.
type Scheduled struct {
	Weekday time.Weekday
	Hour    int
	Window  time.Duration
}

func (s Scheduled) Evaluate(state domain.TriggerState, now time.Time) (domain.TriggerReason, bool) {
	slot := s.currentSlot(now)
	if now.Before(slot) || !now.Before(slot.Add(s.Window)) {
		return domain.ReasonScheduled, false
	}
	for _, last := range state.LastRun {
		if !last.Before(slot) {
			// this slot already got its run
			return domain.ReasonScheduled, false
		}
	}
	return domain.ReasonScheduled, true
}

// currentSlot is the most recent occurrence of (Weekday, Hour) at or
// before now.
func (s Scheduled) currentSlot(now time.Time) time.Time {
	slot := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, 0, 0, 0, now.Location())
	daysBack := (int(now.Weekday()) - int(s.Weekday) + 7) % 7
	slot = slot.AddDate(0, 0, -daysBack)
	if now.Before(slot) {
		slot = slot.AddDate(0, 0, -7)
	}
	return slot
}

// BacklogThreshold fires when unconsumed feedback reaches Min.
type BacklogThreshold struct {
	Min int
}

func (b BacklogThreshold) Evaluate(state domain.TriggerState, _ time.Time) (domain.TriggerReason, bool) {
	return domain.ReasonBacklog, b.Min <= state.Backlog
}

// AccuracyFloor fires when the rolling accuracy over at least MinSamples
// recent feedback records falls under Min.
type AccuracyFloor struct {
	Min        float64
	MinSamples int
}

func (a AccuracyFloor) Evaluate(state domain.TriggerState, _ time.Time) (domain.TriggerReason, bool) {
	if state.SampleCount < a.MinSamples {
		// not enough signal to judge
		return domain.ReasonAccuracyFloor, false
	}
	return domain.ReasonAccuracyFloor, state.RollingAccuracy < a.Min
}

// Evaluator combines the configured conditions with the manual-request
// queue into a single go/no-go decision.
type Evaluator struct {
	db         kdb.Interface
	conditions []Condition
}

func New(db kdb.Interface, conditions ...Condition) *Evaluator {
	return &Evaluator{db: db, conditions: conditions}
}

// Evaluate pops a pending manual request if one exists; otherwise it
// checks every condition against the current trigger state.
//
// Popping is transactional at the store: the request is gone once taken,
// so a fired manual run never runs twice.
func (e *Evaluator) Evaluate(ctx context.Context, now time.Time) (domain.TriggerDecision, error) {
	manual, err := e.db.TakeManualRequest(ctx)
	if err != nil {
		return domain.TriggerDecision{}, err
	}
	if manual != nil {
		return domain.TriggerDecision{
			Fire:    true,
			Reasons: []domain.TriggerReason{domain.ReasonManual},
			Manual:  manual,
		}, nil
	}

	state, err := e.db.Get(ctx)
	if err != nil {
		return domain.TriggerDecision{}, err
	}

	decision := domain.TriggerDecision{}
	for _, cond := range e.conditions {
		if reason, fire := cond.Evaluate(state, now); fire {
			decision.Fire = true
			decision.Reasons = append(decision.Reasons, reason)
		}
	}
	return decision, nil
}
