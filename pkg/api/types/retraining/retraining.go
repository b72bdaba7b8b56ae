package retraining

import (
	apimodels "github.com/opsforge/relearn/pkg/api/types/models"
	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/utils/rfctime"
	"github.com/opsforge/relearn/pkg/utils/slices"
)

// Request is the body of a manual retraining request.
type Request struct {
	Family *string `json:"family,omitempty"`
	DryRun bool    `json:"dryRun,omitempty"`
}

// Accepted acknowledges a queued manual request.
type Accepted struct {
	RequestId string `json:"requestId"`
	Status    string `json:"status"`
}

type VerdictDetail struct {
	Verdict        string   `json:"verdict"`
	Reason         string   `json:"reason"`
	Primary        string   `json:"primary"`
	CandidateScore float64  `json:"candidateScore"`
	BaselineScore  *float64 `json:"baselineScore,omitempty"`
	Threshold      float64  `json:"threshold"`
}

type FamilyOutcome struct {
	Family        string            `json:"family"`
	Version       *apimodels.Detail `json:"version,omitempty"`
	Verdict       *VerdictDetail    `json:"verdict,omitempty"`
	TrainingError string            `json:"trainingError,omitempty"`
}

type RunDetail struct {
	RunId            string          `json:"runId"`
	Status           string          `json:"status"`
	Reasons          []string        `json:"reasons"`
	DryRun           bool            `json:"dryRun"`
	Families         []FamilyOutcome `json:"families"`
	ConsumedFeedback []string        `json:"consumedFeedback,omitempty"`
	StartedAt        rfctime.RFC3339 `json:"startedAt"`
	FinishedAt       rfctime.RFC3339 `json:"finishedAt"`
}

func ComposeRunDetail(r domain.RunResult) RunDetail {
	return RunDetail{
		RunId:  r.RunId,
		Status: r.Status.String(),
		Reasons: slices.Map(r.Reasons, func(reason domain.TriggerReason) string {
			return reason.String()
		}),
		DryRun:           r.DryRun,
		Families:         slices.Map(r.Families, composeFamilyOutcome),
		ConsumedFeedback: r.ConsumedFeedback,
		StartedAt:        rfctime.RFC3339(r.StartedAt),
		FinishedAt:       rfctime.RFC3339(r.FinishedAt),
	}
}

func composeFamilyOutcome(o domain.FamilyOutcome) FamilyOutcome {
	outcome := FamilyOutcome{
		Family:        o.Family.Name,
		TrainingError: o.TrainingError,
	}
	if o.Version != nil {
		version := apimodels.ComposeDetail(*o.Version)
		outcome.Version = &version
	}
	if o.Verdict != nil {
		outcome.Verdict = &VerdictDetail{
			Verdict:        o.Verdict.Verdict.String(),
			Reason:         o.Verdict.Reason,
			Primary:        o.Verdict.Primary,
			CandidateScore: o.Verdict.CandidateScore,
			BaselineScore:  o.Verdict.BaselineScore,
			Threshold:      o.Verdict.Threshold,
		}
	}
	return outcome
}

// TriggerState is the inspection view of the trigger conditions' input.
type TriggerState struct {
	LastRun         map[string]rfctime.RFC3339 `json:"lastRun"`
	Backlog         int                        `json:"backlog"`
	RollingAccuracy float64                    `json:"rollingAccuracy"`
	SampleCount     int                        `json:"sampleCount"`
}

func ComposeTriggerState(s domain.TriggerState) TriggerState {
	lastRun := make(map[string]rfctime.RFC3339, len(s.LastRun))
	for family, at := range s.LastRun {
		lastRun[family] = rfctime.RFC3339(at)
	}
	return TriggerState{
		LastRun:         lastRun,
		Backlog:         s.Backlog,
		RollingAccuracy: s.RollingAccuracy,
		SampleCount:     s.SampleCount,
	}
}
