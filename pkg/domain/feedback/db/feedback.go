package db

import (
	"context"

	"github.com/opsforge/relearn/pkg/domain"
)

// Interface is the feedback boundary: read/write access to human
// correction records.
type Interface interface {
	// Register stores a new feedback record and returns it with its id and
	// timestamp assigned.
	//
	// Returns error when spec.Validate() fails.
	Register(ctx context.Context, spec domain.FeedbackSpec) (domain.FeedbackRecord, error)

	// ListUnconsumed returns up to limit unconsumed records, ordered by
	// (CreatedAt, Id). Reading has no side effect, so a failed run can be
	// retried without data loss.
	//
	// limit <= 0 means no limit.
	ListUnconsumed(ctx context.Context, limit int) ([]domain.FeedbackRecord, error)

	// MarkConsumed flips the consumed flag of the given records.
	//
	// The historical values of a record are never touched; only the flag
	// moves. Unknown ids cause ErrMissing and no record is updated.
	MarkConsumed(ctx context.Context, ids []string) error

	// RecentDispositions returns dispositions of the n newest records
	// (consumed or not), newest first. Backs the rolling accuracy estimate.
	RecentDispositions(ctx context.Context, n int) ([]domain.Disposition, error)

	// CountUnconsumed returns the current feedback backlog.
	CountUnconsumed(ctx context.Context) (int, error)
}
