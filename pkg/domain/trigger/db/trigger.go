package db

import (
	"context"
	"time"

	"github.com/opsforge/relearn/pkg/domain"
)

// Interface persists TriggerState, pending manual requests and the
// pipeline-wide run lock.
type Interface interface {
	// Get assembles the current TriggerState.
	Get(ctx context.Context) (domain.TriggerState, error)

	// NoteRun records a run attempt for the family, success or failure.
	// Only successful attempts land in TriggerState.LastRun; a failed
	// attempt overwrites a prior success, reopening the scheduled window.
	NoteRun(ctx context.Context, family string, at time.Time, ok bool) error

	// RequestManual stores a request_retraining() call to be drained by the
	// next evaluation cycle. family == nil means all configured families.
	RequestManual(ctx context.Context, family *string, dryRun bool) (domain.ManualRequest, error)

	// TakeManualRequest pops the oldest pending manual request, if any.
	TakeManualRequest(ctx context.Context) (*domain.ManualRequest, error)

	// AcquireLock takes the pipeline run lock for holder (a run id).
	//
	// Returns false when another run holds it. Never blocks.
	AcquireLock(ctx context.Context, holder string) (bool, error)

	// ReleaseLock frees the lock if holder still owns it. Releasing a lock
	// held by someone else (or nobody) is a no-op.
	ReleaseLock(ctx context.Context, holder string) error
}
