package domain

import (
	"fmt"
	"time"

	"github.com/opsforge/relearn/pkg/utils/cmp"
)

// TriggerReason names why a retraining run started.
type TriggerReason string

const (
	// the recurring window came around.
	ReasonScheduled TriggerReason = "scheduled"

	// unconsumed feedback piled up over the threshold.
	ReasonBacklog TriggerReason = "backlog"

	// rolling accuracy fell under the floor.
	ReasonAccuracyFloor TriggerReason = "accuracy-floor"

	// an operator asked for it. Bypasses all conditions.
	ReasonManual TriggerReason = "manual"
)

func (tr TriggerReason) String() string {
	return string(tr)
}

// TriggerState is the persisted state the trigger conditions are evaluated
// against.
type TriggerState struct {
	// per-family timestamp of the last successful run. Families whose
	// latest attempt failed are absent, so the scheduled window refires
	// for them.
	LastRun map[string]time.Time

	// count of unconsumed feedback records.
	Backlog int

	// fraction of recent feedback marked "agree".
	RollingAccuracy float64

	// how many recent feedback records back RollingAccuracy.
	SampleCount int
}

func (ts TriggerState) Equal(o TriggerState) bool {
	return cmp.MapEqWith(ts.LastRun, o.LastRun, time.Time.Equal) &&
		ts.Backlog == o.Backlog &&
		ts.RollingAccuracy == o.RollingAccuracy &&
		ts.SampleCount == o.SampleCount
}

// TriggerDecision is the outcome of one trigger evaluation: whether to run,
// and every condition that fired (needed for audit).
type TriggerDecision struct {
	Fire    bool
	Reasons []TriggerReason

	// set when the decision came from a manual request.
	Manual *ManualRequest
}

func (td TriggerDecision) String() string {
	if !td.Fire {
		return "(no trigger)"
	}
	return fmt.Sprintf("fire: %v", td.Reasons)
}

// ManualRequest is a pending request_retraining() call.
type ManualRequest struct {
	Id string

	// when nil, all configured families retrain.
	Family *string

	// run through Validating and stop before Deciding.
	DryRun bool

	RequestedAt time.Time
}
