package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/domain/relearn/db/inmemory"
	ktrig "github.com/opsforge/relearn/pkg/domain/trigger/db"
	"github.com/opsforge/relearn/pkg/pipeline/orchestrator"
	"github.com/opsforge/relearn/pkg/pipeline/trainer"
	"github.com/opsforge/relearn/pkg/utils/pointer"
	"github.com/opsforge/relearn/pkg/utils/try"
)

var (
	attention = domain.ModelFamily{Name: "needs-attention", Kind: domain.Binary}
	anomaly   = domain.ModelFamily{Name: "anomaly", Kind: domain.Continuous}
)

// scripted returns fixed metrics, or fails, regardless of the dataset.
type scripted struct {
	metrics map[string]float64
	err     error
}

func (s scripted) Train(
	ctx context.Context, family domain.ModelFamily, dataset *domain.TrainingDataset,
) (domain.ModelVersion, error) {
	if s.err != nil {
		return domain.ModelVersion{}, s.err
	}
	return domain.ModelVersion{
		Family:      family,
		ArtifactRef: "artifact-" + family.Name,
		Metrics:     s.metrics,
		DatasetRef:  dataset.Digest(),
		Status:      domain.Candidate,
	}, nil
}

// seed builds an in-memory database with one snapshot and feedbackCount
// unconsumed feedback records.
func seed(t *testing.T, feedbackCount int) *inmemory.Database {
	t.Helper()
	ctx := context.Background()

	db := inmemory.New()
	db.Snapshots().Add(domain.Snapshot{
		Ref: "snap-1",
		Rows: []domain.Row{
			{Subject: "srv-a", Kind: domain.NeedsAttention, Features: []float64{1, 0}, Label: 0},
			{Subject: "srv-b", Kind: domain.NeedsAttention, Features: []float64{0, 1}, Label: 1},
			{Subject: "srv-a", Kind: domain.AnomalyScore, Features: []float64{1, 0}, Label: 0.1},
		},
	})

	for i := 0; i < feedbackCount; i++ {
		try.To(db.Feedback().Register(ctx, domain.FeedbackSpec{
			Subject:     "srv-a",
			Kind:        domain.NeedsAttention,
			Predicted:   0.2,
			Actual:      pointer.Ref(1.0),
			Disposition: domain.CorrectWithValue,
		})).OrFatal(t)
	}
	return db
}

// deployBaseline records a version with the given metrics and deploys it.
func deployBaseline(
	t *testing.T, db *inmemory.Database, family domain.ModelFamily, metrics map[string]float64,
) domain.ModelVersion {
	t.Helper()
	ctx := context.Background()

	recorded := try.To(db.Registry().Record(ctx, domain.ModelVersion{
		Family:      family,
		ArtifactRef: "artifact-baseline",
		Metrics:     metrics,
		Status:      domain.Candidate,
	})).OrFatal(t)
	if err := db.Registry().Promote(ctx, family.Name, recorded.Number); err != nil {
		t.Fatal(err)
	}
	return recorded
}

func fired(reasons ...domain.TriggerReason) domain.TriggerDecision {
	return domain.TriggerDecision{Fire: true, Reasons: reasons}
}

func TestRunPromotesBetterCandidate(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 5)
	deployBaseline(t, db, attention, map[string]float64{"f1": 0.70})

	// 0.75 >= 0.70 * 1.02 = 0.714
	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{metrics: map[string]float64{"f1": 0.75}},
	})

	result := try.To(o.TryRun(ctx, fired(domain.ReasonBacklog))).OrFatal(t)

	if result.Status != domain.DoneRun {
		t.Fatalf("run status: %s, want done", result.Status)
	}
	if len(result.Families) != 1 {
		t.Fatalf("family outcomes: %d, want 1", len(result.Families))
	}
	outcome := result.Families[0]
	if outcome.Verdict == nil || outcome.Verdict.Verdict != domain.Approve {
		t.Fatalf("verdict: %+v, want approve", outcome.Verdict)
	}

	active := try.To(db.Registry().GetActive(ctx, attention.Name)).OrFatal(t)
	if active == nil || active.Number != 2 {
		t.Errorf("active version: %+v, want number 2", active)
	}

	if len(result.ConsumedFeedback) != 5 {
		t.Errorf("consumed feedback: %d, want 5", len(result.ConsumedFeedback))
	}
	backlog := try.To(db.Feedback().CountUnconsumed(ctx)).OrFatal(t)
	if backlog != 0 {
		t.Errorf("backlog after run: %d, want 0", backlog)
	}

	history := try.To(db.Registry().History(ctx, attention.Name)).OrFatal(t)
	if len(history) != 2 || history[0].Status != domain.Retired {
		t.Errorf("baseline should be retired: %+v", history)
	}
}

func TestRunRejectsInsufficientImprovement(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 3)
	deployBaseline(t, db, attention, map[string]float64{"f1": 0.70})

	// 0.705 < 0.714: better, but under the bar
	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{metrics: map[string]float64{"f1": 0.705}},
	})

	result := try.To(o.TryRun(ctx, fired(domain.ReasonBacklog))).OrFatal(t)

	if result.Status != domain.DoneRun {
		t.Fatalf("run status: %s, want done", result.Status)
	}
	if v := result.Families[0].Verdict; v == nil || v.Verdict != domain.Reject {
		t.Fatalf("verdict: %+v, want reject", v)
	}

	active := try.To(db.Registry().GetActive(ctx, attention.Name)).OrFatal(t)
	if active == nil || active.Number != 1 {
		t.Errorf("baseline must stay deployed, active: %+v", active)
	}

	history := try.To(db.Registry().History(ctx, attention.Name)).OrFatal(t)
	if history[1].Status != domain.Rejected {
		t.Errorf("candidate status: %s, want rejected", history[1].Status)
	}

	// a rejected-but-evaluated candidate still consumes its feedback
	backlog := try.To(db.Feedback().CountUnconsumed(ctx)).OrFatal(t)
	if backlog != 0 {
		t.Errorf("backlog after run: %d, want 0", backlog)
	}
}

func TestDryRunStopsBeforeDeciding(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 4)
	deployBaseline(t, db, attention, map[string]float64{"f1": 0.70})

	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{metrics: map[string]float64{"f1": 0.99}},
	})

	decision := fired(domain.ReasonManual)
	decision.Manual = &domain.ManualRequest{Id: "req-1", DryRun: true}
	result := try.To(o.TryRun(ctx, decision)).OrFatal(t)

	if result.Status != domain.DoneRun {
		t.Fatalf("run status: %s, want done", result.Status)
	}
	if !result.DryRun {
		t.Error("result should be flagged dry-run")
	}
	if v := result.Families[0].Verdict; v == nil || v.Verdict != domain.Approve {
		t.Errorf("dry run still reports the verdict: %+v", v)
	}

	history := try.To(db.Registry().History(ctx, attention.Name)).OrFatal(t)
	if len(history) != 1 {
		t.Errorf("dry run recorded a version: %+v", history)
	}
	active := try.To(db.Registry().GetActive(ctx, attention.Name)).OrFatal(t)
	if active == nil || active.Number != 1 {
		t.Errorf("dry run changed the deployment: %+v", active)
	}

	backlog := try.To(db.Feedback().CountUnconsumed(ctx)).OrFatal(t)
	if backlog != 4 {
		t.Errorf("dry run consumed feedback: backlog %d, want 4", backlog)
	}
}

func TestManualRequestNarrowsToOneFamily(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 2)

	o := orchestrator.New(
		db, []domain.ModelFamily{anomaly, attention},
		trainer.Registry{
			domain.Binary:     scripted{metrics: map[string]float64{"f1": 0.9}},
			domain.Continuous: scripted{metrics: map[string]float64{"r2": 0.9}},
		},
	)

	decision := fired(domain.ReasonManual)
	decision.Manual = &domain.ManualRequest{Id: "req-1", Family: pointer.Ref(attention.Name)}
	result := try.To(o.TryRun(ctx, decision)).OrFatal(t)

	if len(result.Families) != 1 || result.Families[0].Family != attention {
		t.Errorf("families attempted: %+v, want only %s", result.Families, attention.Name)
	}
	history := try.To(db.Registry().History(ctx, anomaly.Name)).OrFatal(t)
	if len(history) != 0 {
		t.Errorf("the other family trained anyway: %+v", history)
	}
}

func TestCancellationAbortsAndConsumesNothing(t *testing.T) {
	db := seed(t, 3)

	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{metrics: map[string]float64{"f1": 0.9}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.TryRun(ctx, fired(domain.ReasonBacklog))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.Status != domain.AbortedRun {
		t.Fatalf("result: %+v, want aborted", result)
	}

	backlog := try.To(db.Feedback().CountUnconsumed(context.Background())).OrFatal(t)
	if backlog != 3 {
		t.Errorf("aborted run consumed feedback: backlog %d, want 3", backlog)
	}

	// the lock must be free again: a fresh run goes through
	fresh := try.To(o.TryRun(context.Background(), fired(domain.ReasonBacklog))).OrFatal(t)
	if fresh.Status != domain.DoneRun {
		t.Errorf("run after abort: %s, want done (lock released)", fresh.Status)
	}
}

func TestLockContentionIsNoOp(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 1)

	held := try.To(db.Trigger().AcquireLock(ctx, "someone-else")).OrFatal(t)
	if !held {
		t.Fatal("could not take the lock for the test")
	}

	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{metrics: map[string]float64{"f1": 0.9}},
	})

	result, err := o.TryRun(ctx, fired(domain.ReasonBacklog))
	if !errors.Is(err, domain.ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
	if result != nil {
		t.Errorf("contended run produced a result: %+v", result)
	}

	backlog := try.To(db.Feedback().CountUnconsumed(ctx)).OrFatal(t)
	if backlog != 1 {
		t.Errorf("contended run touched feedback: backlog %d", backlog)
	}
}

func TestPartialFamilyFailure(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 2)

	o := orchestrator.New(
		db, []domain.ModelFamily{anomaly, attention},
		trainer.Registry{
			domain.Continuous: scripted{err: errors.New("singular normal equations")},
			domain.Binary:     scripted{metrics: map[string]float64{"f1": 0.9}},
		},
	)

	result := try.To(o.TryRun(ctx, fired(domain.ReasonScheduled))).OrFatal(t)

	if result.Status != domain.DoneRun {
		t.Fatalf("one family failing must not abort the run: %s", result.Status)
	}

	var failed, trained *domain.FamilyOutcome
	for nth := range result.Families {
		switch result.Families[nth].Family {
		case anomaly:
			failed = &result.Families[nth]
		case attention:
			trained = &result.Families[nth]
		}
	}
	if failed == nil || failed.TrainingError == "" || failed.Version != nil {
		t.Errorf("failed family outcome: %+v", failed)
	}
	if trained == nil || trained.Verdict == nil {
		t.Fatalf("surviving family outcome: %+v", trained)
	}

	// one family got evaluated, so the feedback is consumed
	backlog := try.To(db.Feedback().CountUnconsumed(ctx)).OrFatal(t)
	if backlog != 0 {
		t.Errorf("backlog: %d, want 0", backlog)
	}
}

func TestAllFamiliesFailingKeepsFeedback(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 3)

	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{err: errors.New("single-class training labels")},
	})

	result := try.To(o.TryRun(ctx, fired(domain.ReasonBacklog))).OrFatal(t)

	if result.Status != domain.DoneRun {
		t.Fatalf("run status: %s, want done", result.Status)
	}
	if len(result.ConsumedFeedback) != 0 {
		t.Errorf("nothing was evaluated but feedback got consumed: %v", result.ConsumedFeedback)
	}
	backlog := try.To(db.Feedback().CountUnconsumed(ctx)).OrFatal(t)
	if backlog != 3 {
		t.Errorf("backlog: %d, want 3 (retryable)", backlog)
	}
}

func TestParallelTrainingKeepsVersionOrder(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 1)

	o := orchestrator.New(
		db, []domain.ModelFamily{anomaly, attention},
		trainer.Registry{
			domain.Continuous: scripted{metrics: map[string]float64{"r2": 0.9}},
			domain.Binary:     scripted{metrics: map[string]float64{"f1": 0.9}},
		},
		orchestrator.WithParallelTraining(4),
	)

	result := try.To(o.TryRun(ctx, fired(domain.ReasonScheduled))).OrFatal(t)

	if result.Status != domain.DoneRun {
		t.Fatalf("run status: %s", result.Status)
	}
	if len(result.Families) != 2 {
		t.Fatalf("outcomes: %d", len(result.Families))
	}
	// outcomes stay in configured family order regardless of scheduling
	if result.Families[0].Family != anomaly || result.Families[1].Family != attention {
		t.Errorf("outcome order: %v, %v", result.Families[0].Family, result.Families[1].Family)
	}
	for _, outcome := range result.Families {
		if outcome.Version == nil || outcome.Version.Number != 1 {
			t.Errorf("outcome %s: %+v, want version 1", outcome.Family.Name, outcome.Version)
		}
	}
}

func TestNonFiringDecisionDoesNothing(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 1)

	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{})

	result, err := o.TryRun(ctx, domain.TriggerDecision{Fire: false})
	if err != nil || result != nil {
		t.Errorf("no-fire decision: result %+v, err %v", result, err)
	}
}

func TestConsecutiveAborts(t *testing.T) {
	db := seed(t, 1)

	o := orchestrator.New(db, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{metrics: map[string]float64{"f1": 0.9}},
	})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		if _, err := o.TryRun(canceled, fired(domain.ReasonBacklog)); err == nil {
			t.Fatal("canceled run should fail")
		}
	}
	if n := o.ConsecutiveAborts(); n != 3 {
		t.Errorf("consecutive aborts: %d, want 3", n)
	}

	if _, err := o.TryRun(context.Background(), fired(domain.ReasonBacklog)); err != nil {
		t.Fatal(err)
	}
	if n := o.ConsecutiveAborts(); n != 0 {
		t.Errorf("a finalized run must reset the abort counter, got %d", n)
	}
}

// noteRunFails makes the trigger store reject NoteRun, leaving everything
// else intact.
type noteRunFails struct {
	ktrig.Interface
}

func (noteRunFails) NoteRun(context.Context, string, time.Time, bool) error {
	return errors.New("fake error")
}

type overlay struct {
	*inmemory.Database
	trigger ktrig.Interface
}

func (o overlay) Trigger() ktrig.Interface { return o.trigger }

func TestFinalizeFailureConsumesNothing(t *testing.T) {
	ctx := context.Background()
	db := seed(t, 4)
	broken := overlay{Database: db, trigger: noteRunFails{db.Trigger()}}

	o := orchestrator.New(broken, []domain.ModelFamily{attention}, trainer.Registry{
		domain.Binary: scripted{metrics: map[string]float64{"f1": 0.9}},
	})

	result, err := o.TryRun(ctx, fired(domain.ReasonBacklog))
	if err == nil {
		t.Fatal("the run should abort when finalizing cannot record the attempt")
	}
	if result.Status != domain.AbortedRun {
		t.Fatalf("run status: %s, want aborted", result.Status)
	}

	// aborted means no feedback is marked consumed
	if len(result.ConsumedFeedback) != 0 {
		t.Errorf("consumed feedback on abort: %v", result.ConsumedFeedback)
	}
	backlog := try.To(db.Feedback().CountUnconsumed(ctx)).OrFatal(t)
	if backlog != 4 {
		t.Errorf("backlog after aborted run: %d, want 4", backlog)
	}
}
