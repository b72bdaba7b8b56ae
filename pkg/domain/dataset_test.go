package domain_test

import (
	"testing"

	"github.com/opsforge/relearn/pkg/domain"
)

func TestTrainingDatasetDigest(t *testing.T) {
	base := func() *domain.TrainingDataset {
		return &domain.TrainingDataset{
			SnapshotRef:   "snap-1",
			FeedbackIds:   []string{"fb-1", "fb-2"},
			SchemaVersion: domain.CurrentSchemaVersion,
			Rows: []domain.Row{
				{Subject: "srv-a", Kind: domain.AnomalyScore, Features: []float64{1, 2, 3}, Label: 0.5},
				{Subject: "srv-b", Kind: domain.PriorityScore, Features: []float64{4, 5, 6}, Label: 0.25},
			},
		}
	}

	t.Run("identical datasets share a digest", func(t *testing.T) {
		a, b := base(), base()
		if a.Digest() != b.Digest() {
			t.Error("digests of identical datasets differ")
		}
	})

	t.Run("label change changes the digest", func(t *testing.T) {
		a, b := base(), base()
		b.Rows[1].Label = 0.75
		if a.Digest() == b.Digest() {
			t.Error("digest did not react to a label change")
		}
	})

	t.Run("row order changes the digest", func(t *testing.T) {
		a, b := base(), base()
		b.Rows[0], b.Rows[1] = b.Rows[1], b.Rows[0]
		if a.Digest() == b.Digest() {
			t.Error("digest did not react to row reordering")
		}
	})

	t.Run("snapshot ref changes the digest", func(t *testing.T) {
		a, b := base(), base()
		b.SnapshotRef = "snap-2"
		if a.Digest() == b.Digest() {
			t.Error("digest did not react to the snapshot ref")
		}
	})

	t.Run("field boundaries are not ambiguous", func(t *testing.T) {
		// "ab" + "c" must not hash like "a" + "bc".
		a := &domain.TrainingDataset{
			Rows: []domain.Row{{Subject: "ab", Kind: "c"}},
		}
		b := &domain.TrainingDataset{
			Rows: []domain.Row{{Subject: "a", Kind: "bc"}},
		}
		if a.Digest() == b.Digest() {
			t.Error("digest is ambiguous across field boundaries")
		}
	})
}
