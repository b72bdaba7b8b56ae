// Package leastsquares fits ridge-regularized linear models for
// continuous-score families.
package leastsquares

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
	// ridge regularization strength.
	Lambda float64

	// seed of the holdout shuffle.
	Seed int64
}

func DefaultConfig() Config {
	return Config{Lambda: 1e-3, Seed: 1}
}

type leastSquares struct {
	conf      Config
	artifacts trainer.ArtifactStore
}

func New(artifacts trainer.ArtifactStore, conf Config) trainer.Trainer {
	return &leastSquares{conf: conf, artifacts: artifacts}
}

type model struct {
	Weights []float64 `json:"weights"` // bias first
	Lambda  float64   `json:"lambda"`
}

func (t *leastSquares) Train(
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

	weights, err := fit(rows, trainIdx, width, t.conf.Lambda)
	if err != nil {
		return domain.ModelVersion{}, err
	}

	metrics := evaluate(rows, testIdx, weights)

	serialized, err := json.Marshal(model{Weights: weights, Lambda: t.conf.Lambda})
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

// fit solves (X'X + lambda*I) w = X'y by Gaussian elimination.
// Column 0 of X is the bias term.
func fit(rows []domain.Row, index []int, width int, lambda float64) ([]float64, error) {
	dim := width + 1

	a := make([][]float64, dim)
	for i := range a {
		a[i] = make([]float64, dim+1)
	}

	x := make([]float64, dim)
	for _, nth := range index {
		row := rows[nth]
		x[0] = 1
		copy(x[1:], row.Features)
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				a[i][j] += x[i] * x[j]
			}
			a[i][dim] += x[i] * row.Label
		}
	}
	for i := 0; i < dim; i++ {
		a[i][i] += lambda
	}

	// forward elimination with partial pivoting
	for col := 0; col < dim; col++ {
		pivot := col
		for r := col + 1; r < dim; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		if math.Abs(a[col][col]) < 1e-12 {
			return nil, xerrors.Wrap(fmt.Errorf(
				"%w: singular normal equations", trainer.ErrUntrainable,
			))
		}
		for r := col + 1; r < dim; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= dim; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	weights := make([]float64, dim)
	for i := dim - 1; 0 <= i; i-- {
		sum := a[i][dim]
		for j := i + 1; j < dim; j++ {
			sum -= a[i][j] * weights[j]
		}
		weights[i] = sum / a[i][i]
	}
	return weights, nil
}

func predict(weights []float64, features []float64) float64 {
	y := weights[0]
	for i, f := range features {
		y += weights[i+1] * f
	}
	return y
}

func evaluate(rows []domain.Row, index []int, weights []float64) map[string]float64 {
	n := float64(len(index))

	mean := 0.0
	for _, nth := range index {
		mean += rows[nth].Label
	}
	mean /= n

	var ssRes, ssTot, absSum float64
	for _, nth := range index {
		row := rows[nth]
		err := row.Label - predict(weights, row.Features)
		ssRes += err * err
		absSum += math.Abs(err)
		dev := row.Label - mean
		ssTot += dev * dev
	}

	// zero label variance in the holdout makes r2 undefined. Reported as
	// NaN; the validator treats that as degenerate.
	r2 := math.NaN()
	if ssTot != 0 {
		r2 = 1 - ssRes/ssTot
	}

	return map[string]float64{
		"r2":   r2,
		"mae":  absSum / n,
		"rmse": math.Sqrt(ssRes / n),
	}
}
