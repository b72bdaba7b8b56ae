// Package logistic fits gradient-descent logistic regression for
// binary-decision families. Labels are thresholded at 0.5.
package logistic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/pipeline/trainer"
	"github.com/opsforge/relearn/pkg/xerrors"
)

type Config struct {
	LearningRate float64
	Epochs       int

	// seed of the holdout shuffle.
	Seed int64
}

func DefaultConfig() Config {
	return Config{LearningRate: 0.1, Epochs: 200, Seed: 1}
}

type logistic struct {
	conf      Config
	artifacts trainer.ArtifactStore
}

func New(artifacts trainer.ArtifactStore, conf Config) trainer.Trainer {
	return &logistic{conf: conf, artifacts: artifacts}
}

type model struct {
	Weights []float64 `json:"weights"` // bias first
}

func (t *logistic) Train(
	ctx context.Context, family domain.ModelFamily, dataset *domain.TrainingDataset,
) (domain.ModelVersion, error) {
	rows := dataset.Rows
	if len(rows) < 5 {
		return domain.ModelVersion{}, xerrors.Wrap(fmt.Errorf(
			"%w: %d rows (need at least 5)", trainer.ErrUntrainable, len(rows),
		))
	}
	width := len(rows[0].Features)
	for _, row := range rows {
		if len(row.Features) != width {
			return domain.ModelVersion{}, xerrors.Wrap(fmt.Errorf(
				"%w: ragged feature matrix", trainer.ErrUntrainable,
			))
		}
	}

	trainIdx, testIdx := trainer.Holdout(len(rows), t.conf.Seed)

	positives := 0
	for _, nth := range trainIdx {
		if 0.5 <= rows[nth].Label {
			positives += 1
		}
	}
	if positives == 0 || positives == len(trainIdx) {
		return domain.ModelVersion{}, xerrors.Wrap(fmt.Errorf(
			"%w: single-class training labels", trainer.ErrUntrainable,
		))
	}

	weights := fit(rows, trainIdx, width, t.conf.LearningRate, t.conf.Epochs)
	metrics := evaluate(rows, testIdx, weights)

	serialized, err := json.Marshal(model{Weights: weights})
	if err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}
	ref, err := t.artifacts.Put(ctx, serialized)
	if err != nil {
		return domain.ModelVersion{}, err
	}

	return domain.ModelVersion{
		Family:      family,
		ArtifactRef: ref,
		Metrics:     metrics,
		DatasetRef:  dataset.Digest(),
		Status:      domain.Candidate,
	}, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func score(weights []float64, features []float64) float64 {
	z := weights[0]
	for i, f := range features {
		z += weights[i+1] * f
	}
	return sigmoid(z)
}

// full-batch gradient descent. Zero-initialized weights keep the fit
// deterministic; the seed only drives the holdout split.
func fit(rows []domain.Row, index []int, width int, rate float64, epochs int) []float64 {
	dim := width + 1
	weights := make([]float64, dim)
	grad := make([]float64, dim)

	for epoch := 0; epoch < epochs; epoch++ {
		for i := range grad {
			grad[i] = 0
		}
		for _, nth := range index {
			row := rows[nth]
			label := 0.0
			if 0.5 <= row.Label {
				label = 1
			}
			err := score(weights, row.Features) - label
			grad[0] += err
			for i, f := range row.Features {
				grad[i+1] += err * f
			}
		}
		n := float64(len(index))
		for i := range weights {
			weights[i] -= rate * grad[i] / n
		}
	}
	return weights
}

func evaluate(rows []domain.Row, index []int, weights []float64) map[string]float64 {
	var tp, fp, tn, fn float64
	for _, nth := range index {
		row := rows[nth]
		actual := 0.5 <= row.Label
		predicted := 0.5 <= score(weights, row.Features)
		switch {
		case actual && predicted:
			tp += 1
		case !actual && predicted:
			fp += 1
		case !actual && !predicted:
			tn += 1
		default:
			fn += 1
		}
	}

	total := tp + fp + tn + fn
	accuracy := (tp + tn) / total

	// conventions: no positive predictions or no positive truths give 0,
	// not NaN. An f1 of exactly 0 is degenerate for the validator anyway.
	precision := 0.0
	if 0 < tp+fp {
		precision = tp / (tp + fp)
	}
	recall := 0.0
	if 0 < tp+fn {
		recall = tp / (tp + fn)
	}
	f1 := 0.0
	if 0 < precision+recall {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return map[string]float64{
		"accuracy":  accuracy,
		"precision": precision,
		"recall":    recall,
		"f1":        f1,
	}
}
