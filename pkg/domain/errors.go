package domain

import "errors"

var (
	// ErrMissing is returned when an entity is not found for a given key.
	ErrMissing = errors.New("missing entity")

	// ErrSnapshotUnavailable means the base snapshot for a training dataset
	// could not be resolved. Fatal for the current run; feedback stays
	// unconsumed.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")

	// ErrLockBusy means a retraining run is already in flight.
	ErrLockBusy = errors.New("retraining lock is held")

	// ErrNoRollbackTarget means rollback was requested but no retired
	// version exists to restore.
	ErrNoRollbackTarget = errors.New("no rollback target")
)
