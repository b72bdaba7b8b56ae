package db

import (
	"context"

	"github.com/opsforge/relearn/pkg/domain"
)

// Interface is the snapshot/feature boundary: it resolves a snapshot
// reference into tabular feature/label data keyed by (subject, kind).
type Interface interface {
	// Resolve returns the snapshot for ref.
	//
	// Rows come back in a stable (Subject, Kind) order so that dataset
	// builds are reproducible. An unresolvable ref is
	// ErrSnapshotUnavailable: fatal for the current run, feedback untouched.
	Resolve(ctx context.Context, ref string) (domain.Snapshot, error)

	// Latest returns the ref of the newest snapshot.
	//
	// Returns ErrSnapshotUnavailable when no snapshot exists at all.
	Latest(ctx context.Context) (string, error)
}
