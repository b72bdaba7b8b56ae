package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/opsforge/relearn/pkg/utils/cmp"
)

// RunStatus is a state of the retraining-run state machine.
type RunStatus string

const (
	// no run in flight.
	Idle RunStatus = "idle"

	// run lock acquired, trigger decision being recorded.
	Evaluating RunStatus = "evaluating"

	// training dataset under construction.
	Building RunStatus = "building"

	// model families being fitted.
	Training RunStatus = "training"

	// candidates being compared against baselines.
	Validating RunStatus = "validating"

	// verdicts being applied: promote or record-as-rejected.
	Deciding RunStatus = "deciding"

	// feedback being marked consumed, trigger state updated, lock released.
	Finalizing RunStatus = "finalizing"

	// run ended after Finalizing.
	DoneRun RunStatus = "done"

	// fatal error or cancellation before Finalizing. Nothing consumed.
	AbortedRun RunStatus = "aborted"
)

func (rs RunStatus) String() string {
	return string(rs)
}

func AsRunStatus(s string) (RunStatus, error) {
	switch s {
	case string(Idle):
		return Idle, nil
	case string(Evaluating):
		return Evaluating, nil
	case string(Building):
		return Building, nil
	case string(Training):
		return Training, nil
	case string(Validating):
		return Validating, nil
	case string(Deciding):
		return Deciding, nil
	case string(Finalizing):
		return Finalizing, nil
	case string(DoneRun):
		return DoneRun, nil
	case string(AbortedRun):
		return AbortedRun, nil
	default:
		return "", fmt.Errorf("'%s' is not RunStatus", s)
	}
}

var ErrInvalidRunStateChanging = errors.New("cannot change run state")

func NewErrInvalidRunStateChanging(from, to RunStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidRunStateChanging, from, to)
}

// CanTransition reports whether from -> to is a legal run state change.
//
// Aborted is reachable from Building, Training and Validating (fatal error)
// and from any pre-Finalizing state on cancellation.
func (rs RunStatus) CanTransition(to RunStatus) bool {
	switch rs {
	case Idle:
		return to == Evaluating
	case Evaluating:
		return to == Building || to == AbortedRun
	case Building:
		return to == Training || to == AbortedRun
	case Training:
		return to == Validating || to == AbortedRun
	case Validating:
		return to == Deciding || to == Finalizing || to == AbortedRun
	case Deciding:
		return to == Finalizing
	case Finalizing:
		return to == DoneRun
	default:
		return false
	}
}

// Verdict of safety validation for one candidate.
type Verdict string

const (
	Approve Verdict = "approve"
	Reject  Verdict = "reject"
)

func (v Verdict) String() string {
	return string(v)
}

// VerdictDetail carries the verdict with the numbers it was derived from,
// for the audit boundary.
type VerdictDetail struct {
	Verdict        Verdict
	Reason         string
	Primary        string
	CandidateScore float64
	BaselineScore  *float64
	Threshold      float64
}

// FamilyOutcome is the per-family result of a retraining run.
type FamilyOutcome struct {
	Family ModelFamily

	// nil when training failed for the family.
	Version *ModelVersion

	Verdict *VerdictDetail

	// set when the family was skipped on a training error.
	TrainingError string
}

func (fo FamilyOutcome) Equal(o FamilyOutcome) bool {
	return fo.Family == o.Family &&
		fo.Version.Equal(o.Version) &&
		fo.TrainingError == o.TrainingError
}

// RunResult is the structured result of one retraining run.
type RunResult struct {
	RunId    string
	Status   RunStatus
	Reasons  []TriggerReason
	DryRun   bool
	Families []FamilyOutcome

	// ids of feedback marked consumed in Finalizing.
	ConsumedFeedback []string

	StartedAt  time.Time
	FinishedAt time.Time
}

func (rr *RunResult) Equal(o *RunResult) bool {
	if (rr == nil) || (o == nil) {
		return (rr == nil) && (o == nil)
	}
	return rr.RunId == o.RunId &&
		rr.Status == o.Status &&
		cmp.SliceContentEq(rr.Reasons, o.Reasons) &&
		rr.DryRun == o.DryRun &&
		cmp.SliceContentEqWith(rr.Families, o.Families, FamilyOutcome.Equal) &&
		cmp.SliceContentEq(rr.ConsumedFeedback, o.ConsumedFeedback)
}
