package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/opsforge/relearn/pkg/utils/cmp"
)

// FamilyKind distinguishes metric schemas of model families.
type FamilyKind string

const (
	// continuous-score estimators. Primary metric: r2.
	Continuous FamilyKind = "continuous"

	// binary-decision classifiers. Primary metric: f1.
	Binary FamilyKind = "binary"
)

func (fk FamilyKind) String() string {
	return string(fk)
}

func AsFamilyKind(s string) (FamilyKind, error) {
	switch s {
	case string(Continuous):
		return Continuous, nil
	case string(Binary):
		return Binary, nil
	default:
		return "", fmt.Errorf("'%s' is not FamilyKind", s)
	}
}

// PrimaryMetric is the single deployment go/no-go metric of the kind.
func (fk FamilyKind) PrimaryMetric() string {
	switch fk {
	case Binary:
		return "f1"
	default:
		return "r2"
	}
}

// ModelFamily is a named category of models sharing a fixed metric schema.
type ModelFamily struct {
	Name string
	Kind FamilyKind
}

func (mf ModelFamily) String() string {
	return mf.Name
}

// VersionStatus is the deployment status of a ModelVersion.
type VersionStatus string

const (
	// trained and evaluated, not yet decided on.
	Candidate VersionStatus = "candidate"

	// the active version of its family. At most one per family.
	Deployed VersionStatus = "deployed"

	// formerly deployed. Retained for rollback, never deleted.
	Retired VersionStatus = "retired"

	// failed safety validation. Retained as history for inspection.
	Rejected VersionStatus = "rejected"
)

func (vs VersionStatus) String() string {
	return string(vs)
}

func AsVersionStatus(s string) (VersionStatus, error) {
	switch s {
	case string(Candidate):
		return Candidate, nil
	case string(Deployed):
		return Deployed, nil
	case string(Retired):
		return Retired, nil
	case string(Rejected):
		return Rejected, nil
	default:
		return "", fmt.Errorf("'%s' is not VersionStatus", s)
	}
}

var ErrInvalidStatusChanging = errors.New("cannot change version status")

func NewErrInvalidStatusChanging(from, to VersionStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChanging, from, to)
}

// CanTransition reports whether from -> to is a legal status change.
//
// Legal: candidate -> deployed|rejected, deployed -> retired,
// retired -> deployed (rollback).
func (vs VersionStatus) CanTransition(to VersionStatus) bool {
	switch vs {
	case Candidate:
		return to == Deployed || to == Rejected
	case Deployed:
		return to == Retired
	case Retired:
		return to == Deployed
	default:
		return false
	}
}

// ModelVersion is one trained, evaluated candidate of a model family.
type ModelVersion struct {
	Family ModelFamily

	// monotonically increasing per family. Never reused nor decremented.
	Number int

	// reference to the serialized model artifact. Opaque to the pipeline.
	ArtifactRef string

	// metric name -> value, fixed set per family kind.
	Metrics map[string]float64

	// reference of the TrainingDataset the version was fitted on.
	DatasetRef string

	CreatedAt time.Time
	Status    VersionStatus

	// when the version left Deployed. Zero unless Status is Retired.
	RetiredAt time.Time
}

func (mv *ModelVersion) Equal(o *ModelVersion) bool {
	if (mv == nil) || (o == nil) {
		return (mv == nil) && (o == nil)
	}
	return mv.Family == o.Family &&
		mv.Number == o.Number &&
		mv.ArtifactRef == o.ArtifactRef &&
		cmp.MapEqWith(mv.Metrics, o.Metrics, metricEq) &&
		mv.DatasetRef == o.DatasetRef &&
		mv.CreatedAt.Equal(o.CreatedAt) &&
		mv.Status == o.Status
}

// NaN-aware metric equality. NaN == NaN holds here.
func metricEq(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

// PrimaryScore returns the family's primary metric value.
//
// The boolean is false when the metric is absent.
func (mv *ModelVersion) PrimaryScore() (float64, bool) {
	v, ok := mv.Metrics[mv.Family.Kind.PrimaryMetric()]
	return v, ok
}
