// Package validator decides whether a candidate model version may replace
// the deployed baseline of its family.
package validator

import (
	"fmt"
	"math"

	"github.com/opsforge/relearn/pkg/domain"
)

// DefaultMinImprovement is the relative bar a candidate must clear over
// the baseline's primary metric.
const DefaultMinImprovement = 0.02

type Validator struct {
	minImprovement float64
}

type Option func(*Validator)

// WithMinImprovement overrides the relative improvement bar.
func WithMinImprovement(minImprovement float64) Option {
	return func(v *Validator) {
		v.minImprovement = minImprovement
	}
}

func New(options ...Option) *Validator {
	v := &Validator{minImprovement: DefaultMinImprovement}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Validate compares candidate against baseline on the family's primary
// metric. baseline is nil when the family has no deployed version; such a
// candidate is approved unless its metrics are degenerate.
//
// The bar is relative and inclusive: candidate >= baseline * (1 + bar)
// approves. With a negative baseline (r2 can be) the bar is below the
// baseline, which is intended: any not-worse candidate replaces a model
// that is worse than predicting the mean.
func (v *Validator) Validate(candidate *domain.ModelVersion, baseline *domain.ModelVersion) domain.VerdictDetail {
	primary := candidate.Family.Kind.PrimaryMetric()

	detail := domain.VerdictDetail{
		Primary:   primary,
		Threshold: v.minImprovement,
	}

	score, ok := candidate.PrimaryScore()
	detail.CandidateScore = score
	if !ok {
		detail.Verdict = domain.Reject
		detail.Reason = fmt.Sprintf("candidate reports no %s", primary)
		return detail
	}
	if reason, degenerate := degenerateScore(candidate.Family.Kind, score); degenerate {
		detail.Verdict = domain.Reject
		detail.Reason = reason
		return detail
	}

	if baseline == nil {
		detail.Verdict = domain.Approve
		detail.Reason = "no deployed baseline"
		return detail
	}

	base, ok := baseline.PrimaryScore()
	if !ok {
		// a deployed version without its primary metric cannot be compared
		// against. Refusing is the safe side.
		detail.Verdict = domain.Reject
		detail.Reason = fmt.Sprintf("deployed baseline reports no %s, cannot compare", primary)
		return detail
	}
	detail.BaselineScore = &base

	bar := base * (1 + v.minImprovement)
	if score >= bar {
		detail.Verdict = domain.Approve
		detail.Reason = fmt.Sprintf(
			"%s %.6f clears baseline %.6f by the %.0f%% bar",
			primary, score, base, v.minImprovement*100,
		)
	} else {
		detail.Verdict = domain.Reject
		detail.Reason = fmt.Sprintf(
			"%s %.6f under bar %.6f (baseline %.6f)",
			primary, score, bar, base,
		)
	}
	return detail
}

// degenerateScore flags primary metric values that mean the candidate
// learned nothing, regardless of the baseline.
func degenerateScore(kind domain.FamilyKind, score float64) (string, bool) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Sprintf("degenerate %s: %f", kind.PrimaryMetric(), score), true
	}
	if kind == domain.Binary && score == 0 {
		return "degenerate f1: 0 (no true positive)", true
	}
	return "", false
}
