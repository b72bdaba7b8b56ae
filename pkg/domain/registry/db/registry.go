package db

import (
	"context"

	"github.com/opsforge/relearn/pkg/domain"
)

// Interface is the VersionRegistry: a durable, append-only record of every
// produced model version, its metrics, lineage and deployment status.
type Interface interface {
	// Record appends a version to its family's history.
	//
	// The version number is assigned here: max recorded number of the
	// family + 1, starting at 1. Numbers are never reused nor decremented.
	// The returned ModelVersion carries the assigned number and timestamp.
	Record(ctx context.Context, version domain.ModelVersion) (domain.ModelVersion, error)

	// Promote atomically sets the named version to deployed, and any prior
	// deployed version of the same family to retired.
	//
	// Readers never observe two deployed versions of one family, even
	// momentarily. Promoting the already-deployed version is a no-op, not
	// an error. Unknown (family, number) is ErrMissing.
	Promote(ctx context.Context, family string, number int) error

	// Rollback demotes the current deployed version to retired and promotes
	// the most recently retired version back to deployed.
	//
	// Returns the version deployed after the rollback, or
	// ErrNoRollbackTarget when no retired version exists.
	Rollback(ctx context.Context, family string) (domain.ModelVersion, error)

	// SetStatus moves one version to the given status, guarded by
	// VersionStatus.CanTransition. Used to mark rejected candidates.
	//
	// Returns ErrInvalidStatusChanging on an illegal move, ErrMissing for
	// an unknown version.
	SetStatus(ctx context.Context, family string, number int, status domain.VersionStatus) error

	// GetActive returns the deployed version of the family, or nil when
	// none is deployed.
	GetActive(ctx context.Context, family string) (*domain.ModelVersion, error)

	// History returns all versions of the family, ascending by number.
	History(ctx context.Context, family string) ([]domain.ModelVersion, error)
}
