// Package builder combines a base snapshot with applied human corrections
// into a training-ready dataset.
package builder

import (
	"context"
	"sort"

	"github.com/opsforge/relearn/pkg/domain"
	ksnap "github.com/opsforge/relearn/pkg/domain/snapshot/db"
)

type Builder struct {
	snapshots ksnap.Interface
}

func New(snapshots ksnap.Interface) *Builder {
	return &Builder{snapshots: snapshots}
}

// Build resolves snapshotRef and folds feedback into it.
//
// Label overwriting:
//
//   - correct-with-value overwrites the label of the matching
//     (subject, kind) row; on multiple corrections for one row, the latest
//     by (CreatedAt, Id) wins.
//
//   - agree reinforces the existing label unchanged.
//
//   - uncertain never overwrites.
//
// Every feedback record passed in lands in the lineage list, in apply
// order, including uncertain records and records whose subject no longer
// exists in the snapshot. They are consumed like the rest once the run
// finalizes.
//
// The result is deterministic for (snapshotRef, feedback): rows come out
// sorted by (Subject, Kind), so rebuilding yields bit-identical rows.
func (b *Builder) Build(
	ctx context.Context, snapshotRef string, feedback []domain.FeedbackRecord,
) (*domain.TrainingDataset, error) {
	snapshot, err := b.snapshots.Resolve(ctx, snapshotRef)
	if err != nil {
		return nil, err
	}

	applied := make([]domain.FeedbackRecord, len(feedback))
	copy(applied, feedback)
	sort.SliceStable(applied, func(i, j int) bool {
		if !applied[i].CreatedAt.Equal(applied[j].CreatedAt) {
			return applied[i].CreatedAt.Before(applied[j].CreatedAt)
		}
		return applied[i].Id < applied[j].Id
	})

	type key struct {
		subject string
		kind    domain.PredictionKind
	}
	index := map[key]int{}

	rows := make([]domain.Row, len(snapshot.Rows))
	copy(rows, snapshot.Rows)
	for nth, row := range rows {
		index[key{subject: row.Subject, kind: row.Kind}] = nth
	}

	lineage := make([]string, 0, len(applied))
	for _, fb := range applied {
		lineage = append(lineage, fb.Id)

		if fb.Disposition != domain.CorrectWithValue || fb.Actual == nil {
			continue
		}
		nth, ok := index[key{subject: fb.Subject, kind: fb.Kind}]
		if !ok {
			// subject vanished from the snapshot. kept in lineage anyway.
			continue
		}
		rows[nth].Label = *fb.Actual
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Subject != rows[j].Subject {
			return rows[i].Subject < rows[j].Subject
		}
		return rows[i].Kind < rows[j].Kind
	})

	return &domain.TrainingDataset{
		SnapshotRef:   snapshotRef,
		FeedbackIds:   lineage,
		Rows:          rows,
		SchemaVersion: domain.CurrentSchemaVersion,
	}, nil
}
