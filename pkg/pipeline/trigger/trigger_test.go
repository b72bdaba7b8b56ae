package trigger_test

import (
	"context"
	"testing"
	"time"

	"github.com/opsforge/relearn/pkg/domain"
	trigmock "github.com/opsforge/relearn/pkg/domain/trigger/db/mock"
	"github.com/opsforge/relearn/pkg/pipeline/trigger"
	"github.com/opsforge/relearn/pkg/utils/cmp"
	"github.com/opsforge/relearn/pkg/utils/try"
)

func stateOf(state domain.TriggerState) *trigmock.Interface {
	m := trigmock.New()
	m.Impl.TakeManualRequest = func(ctx context.Context) (*domain.ManualRequest, error) {
		return nil, nil
	}
	m.Impl.Get = func(ctx context.Context) (domain.TriggerState, error) {
		return state, nil
	}
	return m
}

func TestScheduled(t *testing.T) {
	// mondays at 03:00, two-hour window
	cond := trigger.Scheduled{Weekday: time.Monday, Hour: 3, Window: 2 * time.Hour}

	monday0330 := time.Date(2024, 4, 1, 3, 30, 0, 0, time.UTC) // a monday
	slot := time.Date(2024, 4, 1, 3, 0, 0, 0, time.UTC)

	for name, testcase := range map[string]struct {
		now   time.Time
		state domain.TriggerState
		want  bool
	}{
		"in the window, no prior run": {
			now: monday0330, want: true,
		},
		"in the window, last run before the slot": {
			now: monday0330,
			state: domain.TriggerState{LastRun: map[string]time.Time{
				"anomaly": slot.Add(-24 * time.Hour),
			}},
			want: true,
		},
		"in the window, this slot already ran": {
			now: monday0330,
			state: domain.TriggerState{LastRun: map[string]time.Time{
				"anomaly": slot.Add(10 * time.Minute),
			}},
			want: false,
		},
		"before the window opens": {
			now: slot.Add(-time.Minute), want: false,
		},
		"after the window closes": {
			now: slot.Add(2 * time.Hour), want: false,
		},
		"wrong weekday": {
			now: monday0330.AddDate(0, 0, 1), want: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			reason, fire := cond.Evaluate(testcase.state, testcase.now)
			if fire != testcase.want {
				t.Errorf("fire = %v, want %v", fire, testcase.want)
			}
			if reason != domain.ReasonScheduled {
				t.Errorf("reason: %s", reason)
			}
		})
	}
}

func TestBacklogThreshold(t *testing.T) {
	cond := trigger.BacklogThreshold{Min: 50}
	now := time.Now()

	if _, fire := cond.Evaluate(domain.TriggerState{Backlog: 49}, now); fire {
		t.Error("49 < 50 should not fire")
	}
	if _, fire := cond.Evaluate(domain.TriggerState{Backlog: 50}, now); !fire {
		t.Error("50 should fire, the threshold is inclusive")
	}
}

func TestAccuracyFloor(t *testing.T) {
	cond := trigger.AccuracyFloor{Min: 0.8, MinSamples: 20}
	now := time.Now()

	for name, testcase := range map[string]struct {
		state domain.TriggerState
		want  bool
	}{
		"low accuracy with enough samples fires": {
			state: domain.TriggerState{RollingAccuracy: 0.5, SampleCount: 30}, want: true,
		},
		"low accuracy with too few samples stays quiet": {
			state: domain.TriggerState{RollingAccuracy: 0.5, SampleCount: 19}, want: false,
		},
		"accuracy at the floor does not fire": {
			state: domain.TriggerState{RollingAccuracy: 0.8, SampleCount: 30}, want: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if _, fire := cond.Evaluate(testcase.state, now); fire != testcase.want {
				t.Errorf("fire = %v, want %v", fire, testcase.want)
			}
		})
	}
}

func TestEvaluatorCombinesConditions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 1, 3, 30, 0, 0, time.UTC) // monday in window

	mock := stateOf(domain.TriggerState{Backlog: 100, RollingAccuracy: 0.9, SampleCount: 50})
	ev := trigger.New(
		mock,
		trigger.Scheduled{Weekday: time.Monday, Hour: 3, Window: 2 * time.Hour},
		trigger.BacklogThreshold{Min: 50},
		trigger.AccuracyFloor{Min: 0.8, MinSamples: 20},
	)

	decision := try.To(ev.Evaluate(ctx, now)).OrFatal(t)

	if !decision.Fire {
		t.Fatal("two conditions hold, the evaluator should fire")
	}
	want := []domain.TriggerReason{domain.ReasonScheduled, domain.ReasonBacklog}
	if !cmp.SliceContentEq(decision.Reasons, want) {
		t.Errorf("reasons: %v, want %v", decision.Reasons, want)
	}
}

func TestEvaluatorStaysQuiet(t *testing.T) {
	ctx := context.Background()

	mock := stateOf(domain.TriggerState{Backlog: 3, RollingAccuracy: 0.95, SampleCount: 50})
	ev := trigger.New(mock, trigger.BacklogThreshold{Min: 50})

	decision := try.To(ev.Evaluate(ctx, time.Now())).OrFatal(t)
	if decision.Fire {
		t.Errorf("nothing holds, but the evaluator fired: %v", decision.Reasons)
	}
}

func TestEvaluatorPrefersManualRequest(t *testing.T) {
	ctx := context.Background()

	pending := &domain.ManualRequest{Id: "req-1", DryRun: true, RequestedAt: time.Now()}
	mock := trigmock.New()
	mock.Impl.TakeManualRequest = func(ctx context.Context) (*domain.ManualRequest, error) {
		return pending, nil
	}

	// no Get impl: a manual request must short-circuit state loading
	ev := trigger.New(mock, trigger.BacklogThreshold{Min: 1})

	decision := try.To(ev.Evaluate(ctx, time.Now())).OrFatal(t)

	if !decision.Fire {
		t.Fatal("manual request should always fire")
	}
	if !cmp.SliceContentEq(decision.Reasons, []domain.TriggerReason{domain.ReasonManual}) {
		t.Errorf("reasons: %v", decision.Reasons)
	}
	if decision.Manual == nil || decision.Manual.Id != "req-1" {
		t.Errorf("manual request not carried: %+v", decision.Manual)
	}
	if mock.Calls.Get.Times() != 0 {
		t.Error("trigger state was loaded although the manual request decides alone")
	}
}
