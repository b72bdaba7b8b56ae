package leastsquares_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/pipeline/trainer"
	"github.com/opsforge/relearn/pkg/pipeline/trainer/leastsquares"
	"github.com/opsforge/relearn/pkg/utils/try"
)

var family = domain.ModelFamily{Name: "anomaly", Kind: domain.Continuous}

// rows on the plane y = 2*x1 - x2 + 0.5, no noise.
func linearDataset(n int) *domain.TrainingDataset {
	rows := make([]domain.Row, n)
	for i := range rows {
		x1 := float64(i)
		x2 := float64(i%7) * 0.5
		rows[i] = domain.Row{
			Subject:  fmt.Sprintf("srv-%02d", i),
			Kind:     domain.AnomalyScore,
			Features: []float64{x1, x2},
			Label:    2*x1 - x2 + 0.5,
		}
	}
	return &domain.TrainingDataset{
		SchemaVersion: domain.CurrentSchemaVersion,
		SnapshotRef:   "snap-1",
		Rows:          rows,
	}
}

func TestTrainRecoversLinearRelation(t *testing.T) {
	ctx := context.Background()
	tr := leastsquares.New(trainer.NewMemArtifacts(), leastsquares.DefaultConfig())

	version := try.To(tr.Train(ctx, family, linearDataset(40))).OrFatal(t)

	if version.Family != family {
		t.Errorf("family: %v, want %v", version.Family, family)
	}
	if version.Status != domain.Candidate {
		t.Errorf("status: %s, want candidate", version.Status)
	}
	if version.ArtifactRef == "" {
		t.Error("no artifact was stored")
	}
	if r2 := version.Metrics["r2"]; r2 < 0.999 {
		t.Errorf("r2 on a noiseless linear dataset: %f, want ~1", r2)
	}
	if mae := version.Metrics["mae"]; 0.01 < mae {
		t.Errorf("mae: %f, want ~0", mae)
	}
}

func TestTrainIsDeterministic(t *testing.T) {
	ctx := context.Background()
	dataset := linearDataset(40)
	tr := leastsquares.New(trainer.NewMemArtifacts(), leastsquares.DefaultConfig())

	first := try.To(tr.Train(ctx, family, dataset)).OrFatal(t)
	second := try.To(tr.Train(ctx, family, dataset)).OrFatal(t)

	if !first.Equal(&second) {
		t.Errorf("two trainings from identical inputs differ: %+v != %+v", first, second)
	}
	if first.ArtifactRef != second.ArtifactRef {
		t.Errorf("artifact refs differ: %s != %s", first.ArtifactRef, second.ArtifactRef)
	}
}

func TestTrainReportsNaNOnConstantHoldout(t *testing.T) {
	ctx := context.Background()

	rows := make([]domain.Row, 10)
	for i := range rows {
		rows[i] = domain.Row{
			Subject:  fmt.Sprintf("srv-%02d", i),
			Kind:     domain.AnomalyScore,
			Features: []float64{float64(i)},
			Label:    1.0, // constant labels, zero holdout variance
		}
	}
	dataset := &domain.TrainingDataset{
		SchemaVersion: domain.CurrentSchemaVersion,
		SnapshotRef:   "snap-1",
		Rows:          rows,
	}

	tr := leastsquares.New(trainer.NewMemArtifacts(), leastsquares.DefaultConfig())
	version := try.To(tr.Train(ctx, family, dataset)).OrFatal(t)

	if !math.IsNaN(version.Metrics["r2"]) {
		t.Errorf("r2: %f, want NaN on zero label variance", version.Metrics["r2"])
	}
}

func TestTrainRejectsBadDatasets(t *testing.T) {
	ctx := context.Background()
	tr := leastsquares.New(trainer.NewMemArtifacts(), leastsquares.DefaultConfig())

	t.Run("too few rows", func(t *testing.T) {
		if _, err := tr.Train(ctx, family, linearDataset(3)); !errors.Is(err, trainer.ErrUntrainable) {
			t.Errorf("expected ErrUntrainable, got %v", err)
		}
	})

	t.Run("ragged feature matrix", func(t *testing.T) {
		dataset := linearDataset(10)
		dataset.Rows[4].Features = []float64{1}
		if _, err := tr.Train(ctx, family, dataset); !errors.Is(err, trainer.ErrUntrainable) {
			t.Errorf("expected ErrUntrainable, got %v", err)
		}
	})
}
