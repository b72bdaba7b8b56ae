// Package inmemory bundles the in-process stores into a Database.
// Standalone mode runs the whole pipeline on it, no postgres needed.
package inmemory

import (
	kfb "github.com/opsforge/relearn/pkg/domain/feedback/db"
	memfb "github.com/opsforge/relearn/pkg/domain/feedback/db/inmemory"
	kreg "github.com/opsforge/relearn/pkg/domain/registry/db"
	memreg "github.com/opsforge/relearn/pkg/domain/registry/db/inmemory"
	dbInterface "github.com/opsforge/relearn/pkg/domain/relearn/db"
	ksnap "github.com/opsforge/relearn/pkg/domain/snapshot/db"
	memsnap "github.com/opsforge/relearn/pkg/domain/snapshot/db/inmemory"
	ktrig "github.com/opsforge/relearn/pkg/domain/trigger/db"
	memtrig "github.com/opsforge/relearn/pkg/domain/trigger/db/inmemory"
)

type Database struct {
	feedback kfb.Interface
	registry kreg.Interface
	trigger  ktrig.Interface
	snapshot *memsnap.Store
}

var _ dbInterface.Database = &Database{}

func New() *Database {
	feedback := memfb.New()
	return &Database{
		feedback: feedback,
		registry: memreg.New(),
		trigger:  memtrig.New(feedback),
		snapshot: memsnap.New(),
	}
}

func (d *Database) Feedback() kfb.Interface {
	return d.feedback
}

func (d *Database) Registry() kreg.Interface {
	return d.registry
}

func (d *Database) Trigger() ktrig.Interface {
	return d.trigger
}

func (d *Database) Snapshot() ksnap.Interface {
	return d.snapshot
}

// Snapshots exposes the concrete snapshot store so callers can seed it.
func (d *Database) Snapshots() *memsnap.Store {
	return d.snapshot
}

func (d *Database) Close() error {
	return nil
}
