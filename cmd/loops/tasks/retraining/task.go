package retraining

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/opsforge/relearn/cmd/loops/recurring"
	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/pipeline/orchestrator"
	"github.com/opsforge/relearn/pkg/pipeline/trigger"
)

// Tally carries what the loop has done so far between cycles.
type Tally struct {
	// run ids of finished runs, oldest first. Aborted runs included.
	Runs []string
}

// initial value for task
func Seed() Tally {
	return Tally{}
}

// Task evaluating the trigger and, when it fires, driving one retraining
// run.
//
// # Params
//
// - ev: trigger evaluator combining the configured conditions with the
// manual-request queue.
//
// - o: orchestrator executing the run.
//
// - logger: sink for per-cycle failures.
//
// # Return
//
// - task : run retraining when the trigger fires.
// A cycle reports updated=true only when a run actually happened, so the
// backlog policy drains queued manual requests and then stops.
//
// Run-level failures never break the loop: an aborted run is a completed
// cycle, logged here and surfaced through the audit stream and the
// degraded-health signal. The loop ends only when its context does.
func Task(
	ev *trigger.Evaluator,
	o *orchestrator.Orchestrator,
	logger *log.Logger,
) recurring.Task[Tally] {
	return func(ctx context.Context, value Tally) (Tally, bool, error) {
		decision, err := ev.Evaluate(ctx, time.Now())
		if err != nil {
			logger.Printf("trigger evaluation failed: %s. retrying next cycle.", err)
			return value, false, nil
		}

		result, err := o.TryRun(ctx, decision)
		if errors.Is(err, domain.ErrLockBusy) {
			// someone else is retraining. nothing for this cycle.
			return value, false, nil
		}
		if result != nil {
			value.Runs = append(value.Runs, result.RunId)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("retraining run failed: %s. retrying on the next trigger.", err)
		}
		return value, result != nil, nil
	}
}
