// Package orchestrator drives one retraining run end to end through the
// run state machine: evaluating, building, training, validating, deciding,
// finalizing.
//
// At most one run is in flight at a time, enforced by the persisted run
// lock. A run observes a stable set of feedback: what it read in Building
// is exactly what it marks consumed in Finalizing.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsforge/relearn/pkg/domain"
	kdb "github.com/opsforge/relearn/pkg/domain/relearn/db"
	"github.com/opsforge/relearn/pkg/pipeline/audit"
	"github.com/opsforge/relearn/pkg/pipeline/builder"
	"github.com/opsforge/relearn/pkg/pipeline/trainer"
	"github.com/opsforge/relearn/pkg/pipeline/validator"
	"github.com/opsforge/relearn/pkg/xerrors"
)

// DegradedAfter is how many consecutive aborted runs raise the degraded
// signal.
const DegradedAfter = 3

type Orchestrator struct {
	db       kdb.Database
	builder  *builder.Builder
	trainers trainer.Registry
	check    *validator.Validator
	emit     audit.Emitter

	families      []domain.ModelFamily
	parallel      int
	feedbackLimit int
	now           func() time.Time

	mu     sync.Mutex
	aborts int
}

type Option func(*Orchestrator)

// WithParallelTraining fits up to n families concurrently. Verdicts and
// registry writes stay serial either way.
func WithParallelTraining(n int) Option {
	return func(o *Orchestrator) {
		if 1 < n {
			o.parallel = n
		}
	}
}

// WithValidator replaces the default safety validator.
func WithValidator(v *validator.Validator) Option {
	return func(o *Orchestrator) { o.check = v }
}

// WithEmitter sets the audit sink. Defaults to discarding.
func WithEmitter(e audit.Emitter) Option {
	return func(o *Orchestrator) { o.emit = e }
}

// WithFeedbackLimit caps how much unconsumed feedback one run takes in.
func WithFeedbackLimit(limit int) Option {
	return func(o *Orchestrator) { o.feedbackLimit = limit }
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(
	db kdb.Database, families []domain.ModelFamily, trainers trainer.Registry,
	options ...Option,
) *Orchestrator {
	o := &Orchestrator{
		db:       db,
		builder:  builder.New(db.Snapshot()),
		trainers: trainers,
		check:    validator.New(),
		emit:     audit.Null(),
		families: families,
		parallel: 1,
		now:      time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// ConsecutiveAborts reports how many runs in a row ended aborted. Reset by
// any finalized run. Backs the degraded-health signal.
func (o *Orchestrator) ConsecutiveAborts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.aborts
}

// TryRun executes one retraining run for the given trigger decision.
//
// Returns (nil, ErrLockBusy) when another run holds the lock; the caller
// treats that as a no-op. A non-firing decision is (nil, nil). Otherwise
// the RunResult always comes back, aborted runs included, alongside the
// error that aborted them.
func (o *Orchestrator) TryRun(ctx context.Context, decision domain.TriggerDecision) (*domain.RunResult, error) {
	if !decision.Fire {
		return nil, nil
	}

	runId := uuid.NewString()
	ok, err := o.db.Trigger().AcquireLock(ctx, runId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.Wrap(domain.ErrLockBusy)
	}
	// release survives ctx cancellation, otherwise an aborted run would
	// wedge the pipeline
	defer o.db.Trigger().ReleaseLock(context.WithoutCancel(ctx), runId)

	result := &domain.RunResult{
		RunId:     runId,
		Status:    domain.Idle,
		Reasons:   decision.Reasons,
		StartedAt: o.now(),
	}
	if decision.Manual != nil {
		result.DryRun = decision.Manual.DryRun
	}

	run := &run{o: o, result: result, decision: decision}
	if err := run.execute(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// run is the per-run working state.
type run struct {
	o        *Orchestrator
	result   *domain.RunResult
	decision domain.TriggerDecision

	dataset  *domain.TrainingDataset
	families []domain.ModelFamily
}

func (r *run) execute(ctx context.Context) error {
	r.event(audit.Event{Kind: audit.RunStarted, Reasons: r.result.Reasons})

	steps := []struct {
		status domain.RunStatus
		do     func(context.Context) error
	}{
		{domain.Evaluating, r.evaluate},
		{domain.Building, r.build},
		{domain.Training, r.train},
		{domain.Validating, r.validate},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return r.abort(err)
		}
		if err := r.advance(step.status); err != nil {
			return r.abort(err)
		}
		if err := step.do(ctx); err != nil {
			return r.abort(err)
		}
	}

	if !r.result.DryRun {
		if err := r.advance(domain.Deciding); err != nil {
			return r.abort(err)
		}
		if err := r.decide(ctx); err != nil {
			return r.abort(err)
		}
	}

	if err := r.advance(domain.Finalizing); err != nil {
		return r.abort(err)
	}
	if err := r.finalize(ctx); err != nil {
		return r.abort(err)
	}

	if err := r.advance(domain.DoneRun); err != nil {
		return r.abort(err)
	}
	r.result.FinishedAt = r.o.now()
	r.event(audit.Event{Kind: audit.RunFinalized})
	r.o.noteRunEnd(false)
	return nil
}

func (r *run) advance(to domain.RunStatus) error {
	if !r.result.Status.CanTransition(to) {
		return xerrors.Wrap(domain.NewErrInvalidRunStateChanging(r.result.Status, to))
	}
	r.result.Status = to
	return nil
}

func (r *run) abort(cause error) error {
	r.result.Status = domain.AbortedRun
	r.result.FinishedAt = r.o.now()
	r.event(audit.Event{Kind: audit.RunAborted, Note: cause.Error()})
	r.o.noteRunEnd(true)
	if r.o.ConsecutiveAborts() == DegradedAfter {
		r.event(audit.Event{
			Kind: audit.Degraded,
			Note: fmt.Sprintf("%d consecutive aborted runs", DegradedAfter),
		})
	}
	return cause
}

func (o *Orchestrator) noteRunEnd(aborted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if aborted {
		o.aborts += 1
	} else {
		o.aborts = 0
	}
}

func (r *run) event(ev audit.Event) {
	ev.RunId = r.result.RunId
	ev.At = r.o.now()
	r.o.emit.Emit(ev)
}

// evaluate pins down which families this run attempts.
func (r *run) evaluate(context.Context) error {
	manual := r.decision.Manual
	if manual == nil || manual.Family == nil {
		r.families = r.o.families
		return nil
	}
	for _, family := range r.o.families {
		if family.Name == *manual.Family {
			r.families = []domain.ModelFamily{family}
			return nil
		}
	}
	return xerrors.Wrap(fmt.Errorf(
		"%w: model family '%s' is not configured", domain.ErrMissing, *manual.Family,
	))
}

func (r *run) build(ctx context.Context) error {
	feedback, err := r.o.db.Feedback().ListUnconsumed(ctx, r.o.feedbackLimit)
	if err != nil {
		return err
	}

	snapshotRef, err := r.o.db.Snapshot().Latest(ctx)
	if err != nil {
		return err
	}

	dataset, err := r.o.builder.Build(ctx, snapshotRef, feedback)
	if err != nil {
		return err
	}
	r.dataset = dataset
	r.event(audit.Event{
		Kind: audit.DatasetBuilt,
		Note: fmt.Sprintf(
			"snapshot=%s rows=%d feedback=%d digest=%s",
			snapshotRef, len(dataset.Rows), len(dataset.FeedbackIds), dataset.Digest(),
		),
	})
	return nil
}

// train fits every family. A family that fails to train is skipped with
// its outcome carrying the error; the run itself keeps going.
func (r *run) train(ctx context.Context) error {
	outcomes := make([]domain.FamilyOutcome, len(r.families))

	sem := make(chan struct{}, r.o.parallel)
	wg := sync.WaitGroup{}
	for nth, family := range r.families {
		wg.Add(1)
		go func(nth int, family domain.ModelFamily) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[nth] = r.trainOne(ctx, family)
		}(nth, family)
	}
	wg.Wait()

	// registry writes happen here, serially in configured family order, so
	// version numbering does not depend on goroutine scheduling
	for nth := range outcomes {
		outcome := &outcomes[nth]
		if outcome.Version == nil {
			r.event(audit.Event{
				Kind: audit.FamilySkipped, Family: outcome.Family.Name,
				Note: outcome.TrainingError,
			})
			continue
		}
		if !r.result.DryRun {
			recorded, err := r.o.db.Registry().Record(ctx, *outcome.Version)
			if err != nil {
				return err
			}
			outcome.Version = &recorded
		}
		r.event(audit.Event{
			Kind: audit.FamilyTrained, Family: outcome.Family.Name,
			Version: outcome.Version.Number,
		})
	}

	r.result.Families = outcomes
	return nil
}

func (r *run) trainOne(ctx context.Context, family domain.ModelFamily) domain.FamilyOutcome {
	outcome := domain.FamilyOutcome{Family: family}

	tr, err := r.o.trainers.For(family.Kind)
	if err != nil {
		outcome.TrainingError = err.Error()
		return outcome
	}
	version, err := tr.Train(ctx, family, r.dataset)
	if err != nil {
		outcome.TrainingError = err.Error()
		return outcome
	}
	outcome.Version = &version
	return outcome
}

func (r *run) validate(ctx context.Context) error {
	for nth := range r.result.Families {
		outcome := &r.result.Families[nth]
		if outcome.Version == nil {
			continue
		}

		baseline, err := r.o.db.Registry().GetActive(ctx, outcome.Family.Name)
		if err != nil {
			return err
		}

		detail := r.o.check.Validate(outcome.Version, baseline)
		outcome.Verdict = &detail
		r.event(audit.Event{
			Kind: audit.VerdictReached, Family: outcome.Family.Name,
			Version: outcome.Version.Number, Verdict: &detail,
		})
	}
	return nil
}

func (r *run) decide(ctx context.Context) error {
	registry := r.o.db.Registry()
	for nth := range r.result.Families {
		outcome := &r.result.Families[nth]
		if outcome.Verdict == nil {
			continue
		}

		switch outcome.Verdict.Verdict {
		case domain.Approve:
			if err := registry.Promote(ctx, outcome.Family.Name, outcome.Version.Number); err != nil {
				return err
			}
			outcome.Version.Status = domain.Deployed
			r.event(audit.Event{
				Kind: audit.Promoted, Family: outcome.Family.Name,
				Version: outcome.Version.Number,
			})
		case domain.Reject:
			if err := registry.SetStatus(
				ctx, outcome.Family.Name, outcome.Version.Number, domain.Rejected,
			); err != nil {
				return err
			}
			outcome.Version.Status = domain.Rejected
			r.event(audit.Event{
				Kind: audit.RejectedModel, Family: outcome.Family.Name,
				Version: outcome.Version.Number, Verdict: outcome.Verdict,
			})
		}
	}
	return nil
}

// finalize updates trigger state and marks feedback consumed.
//
// Feedback counts as consumed only when at least one family's candidate
// got a verdict. When every family failed to train, the feedback stays
// unconsumed for the next attempt. A dry run touches nothing.
//
// MarkConsumed is the last fallible write of the run. Anything failing
// before it aborts the run with the feedback still unconsumed.
func (r *run) finalize(ctx context.Context) error {
	if r.result.DryRun {
		return nil
	}

	at := r.o.now()
	for _, outcome := range r.result.Families {
		ok := outcome.TrainingError == ""
		if err := r.o.db.Trigger().NoteRun(ctx, outcome.Family.Name, at, ok); err != nil {
			return err
		}
	}

	evaluated := false
	for _, outcome := range r.result.Families {
		if outcome.Verdict != nil {
			evaluated = true
			break
		}
	}

	if evaluated && 0 < len(r.dataset.FeedbackIds) {
		if err := r.o.db.Feedback().MarkConsumed(ctx, r.dataset.FeedbackIds); err != nil {
			return err
		}
		r.result.ConsumedFeedback = r.dataset.FeedbackIds
	}
	return nil
}
