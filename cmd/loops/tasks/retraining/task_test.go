package retraining_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/opsforge/relearn/cmd/loops/recurring"
	"github.com/opsforge/relearn/cmd/loops/tasks/retraining"
	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/domain/relearn/db/inmemory"
	"github.com/opsforge/relearn/pkg/loop"
	"github.com/opsforge/relearn/pkg/pipeline/orchestrator"
	"github.com/opsforge/relearn/pkg/pipeline/trainer"
	"github.com/opsforge/relearn/pkg/pipeline/trigger"
	"github.com/opsforge/relearn/pkg/utils/try"
)

var quiet = log.New(io.Discard, "", 0)

var attention = domain.ModelFamily{Name: "needs-attention", Kind: domain.Binary}

type scripted struct {
	metrics map[string]float64
}

func (s scripted) Train(
	ctx context.Context, family domain.ModelFamily, dataset *domain.TrainingDataset,
) (domain.ModelVersion, error) {
	return domain.ModelVersion{
		Family:      family,
		ArtifactRef: "artifact",
		Metrics:     s.metrics,
		DatasetRef:  dataset.Digest(),
		Status:      domain.Candidate,
	}, nil
}

func seed(t *testing.T) *inmemory.Database {
	t.Helper()
	db := inmemory.New()
	db.Snapshots().Add(domain.Snapshot{
		Ref: "snap-1",
		Rows: []domain.Row{
			{Subject: "srv-a", Kind: domain.NeedsAttention, Features: []float64{1}, Label: 0},
			{Subject: "srv-b", Kind: domain.NeedsAttention, Features: []float64{2}, Label: 1},
		},
	})
	return db
}

func testbed(t *testing.T, db *inmemory.Database) (*trigger.Evaluator, *orchestrator.Orchestrator) {
	t.Helper()
	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{metrics: map[string]float64{"f1": 0.9}},
	})
	return trigger.New(db.Trigger()), o
}

func TestTask(t *testing.T) {
	ctx := context.Background()

	t.Run("a quiet trigger leaves the tally alone", func(t *testing.T) {
		db := seed(t)
		ev, o := testbed(t, db)
		task := retraining.Task(ev, o, quiet)

		tally, updated, err := task(ctx, retraining.Seed())
		if err != nil {
			t.Fatal(err)
		}
		if updated {
			t.Error("cycle claims an update without a run")
		}
		if len(tally.Runs) != 0 {
			t.Errorf("tally: %+v", tally)
		}
	})

	t.Run("a manual request drives a run and is drained", func(t *testing.T) {
		db := seed(t)
		ev, o := testbed(t, db)
		task := retraining.Task(ev, o, quiet)

		try.To(db.Trigger().RequestManual(ctx, nil, false)).OrFatal(t)

		tally, updated, err := task(ctx, retraining.Seed())
		if err != nil {
			t.Fatal(err)
		}
		if !updated {
			t.Error("cycle does not report the run")
		}
		if len(tally.Runs) != 1 {
			t.Errorf("tally: %+v", tally)
		}

		// the request is consumed. the next cycle stays quiet.
		tally, updated, err = task(ctx, tally)
		if err != nil {
			t.Fatal(err)
		}
		if updated || len(tally.Runs) != 1 {
			t.Errorf("request ran twice: %+v", tally)
		}
	})

	t.Run("an aborted run does not stop the loop", func(t *testing.T) {
		// no snapshot registered: building the dataset fails and the run
		// aborts. The scheduler has to live through that and try again on
		// the next trigger.
		db := inmemory.New()
		ev, o := testbed(t, db)
		task := retraining.Task(ev, o, quiet)

		try.To(db.Trigger().RequestManual(ctx, nil, false)).OrFatal(t)

		tally, err := loop.Start(
			ctx, retraining.Seed(),
			task.Applied(recurring.UntilError(recurring.Backlog())),
		)
		if err != nil {
			t.Fatalf("one aborted run stopped the loop: %s", err)
		}
		if len(tally.Runs) != 1 {
			t.Errorf("tally: %+v, want the aborted run counted", tally)
		}
		if o.ConsecutiveAborts() != 1 {
			t.Errorf("consecutive aborts: %d, want 1", o.ConsecutiveAborts())
		}

		// the lock came back; a later cycle can still run.
		held := try.To(db.Trigger().AcquireLock(ctx, "later")).OrFatal(t)
		if !held {
			t.Error("the aborted run left the lock held")
		}
	})

	t.Run("lock contention is a quiet cycle, not an error", func(t *testing.T) {
		db := seed(t)
		ev, o := testbed(t, db)
		task := retraining.Task(ev, o, quiet)

		held := try.To(db.Trigger().AcquireLock(ctx, "other")).OrFatal(t)
		if !held {
			t.Fatal("could not take the lock for the test")
		}
		defer db.Trigger().ReleaseLock(ctx, "other")

		try.To(db.Trigger().RequestManual(ctx, nil, false)).OrFatal(t)

		tally, updated, err := task(ctx, retraining.Seed())
		if err != nil {
			t.Fatal(err)
		}
		if updated || len(tally.Runs) != 0 {
			t.Errorf("cycle ran despite the lock: %+v", tally)
		}
	})
}
