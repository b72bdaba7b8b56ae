package db

import (
	kfb "github.com/opsforge/relearn/pkg/domain/feedback/db"
	kreg "github.com/opsforge/relearn/pkg/domain/registry/db"
	ksnap "github.com/opsforge/relearn/pkg/domain/snapshot/db"
	ktrig "github.com/opsforge/relearn/pkg/domain/trigger/db"
)

// Database bundles the stores the pipeline depends on.
type Database interface {
	Feedback() kfb.Interface
	Registry() kreg.Interface
	Trigger() ktrig.Interface
	Snapshot() ksnap.Interface

	Close() error
}
