// Package domain holds the entities of the continual-learning pipeline:
// human feedback records, training datasets, model versions, trigger state
// and the retraining-run state machine.
//
// Subpackages named like `<area>/db` declare storage interfaces for these
// entities with implementations under `postgres` (production), `inmemory`
// (standalone mode and tests) and `mock` (unit tests).
package domain
