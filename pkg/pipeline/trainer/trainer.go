// Package trainer declares the pluggable model-fitting contract of the
// pipeline and common plumbing shared by the family trainers.
package trainer

import (
	"context"
	"errors"
	"math/rand"

	"github.com/opsforge/relearn/pkg/domain"
)

// Trainer fits one candidate model from a training dataset.
//
// Implementations must be pure functions of the dataset: same input, same
// metrics, modulo the explicitly seeded randomness. They never touch the
// deployed baseline. The returned version is a Candidate with Number 0;
// the registry assigns the number on record.
type Trainer interface {
	Train(ctx context.Context, family domain.ModelFamily, dataset *domain.TrainingDataset) (domain.ModelVersion, error)
}

// Registry selects a Trainer per family kind.
type Registry map[domain.FamilyKind]Trainer

var ErrNoTrainer = errors.New("no trainer for family kind")

func (r Registry) For(kind domain.FamilyKind) (Trainer, error) {
	t, ok := r[kind]
	if !ok {
		return nil, ErrNoTrainer
	}
	return t, nil
}

// ErrUntrainable covers family-level training failures: the family is
// skipped for the run, others proceed.
var ErrUntrainable = errors.New("dataset is untrainable")

// Holdout deterministically splits row indices 80/20 into (train, test).
//
// The shuffle is seeded, so the same (n, seed) always yields the same
// split. test is never empty for n >= 2.
func Holdout(n int, seed int64) (train []int, test []int) {
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}
	rand.New(rand.NewSource(seed)).Shuffle(n, func(i, j int) {
		index[i], index[j] = index[j], index[i]
	})

	cut := n - n/5
	if cut == n && 2 <= n {
		cut = n - 1
	}
	return index[:cut], index[cut:]
}
