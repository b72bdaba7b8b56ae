// Package audit carries the event stream of the retraining pipeline to
// logs and metrics. Every externally observable pipeline action emits
// exactly one event.
package audit

import (
	"log"
	"strconv"
	"time"

	"github.com/opsforge/relearn/pkg/domain"
)

type Kind string

const (
	RunStarted   Kind = "run-started"
	DatasetBuilt Kind = "dataset-built"

	FamilyTrained Kind = "family-trained"
	FamilySkipped Kind = "family-skipped"

	VerdictReached Kind = "verdict-reached"
	Promoted       Kind = "promoted"
	RejectedModel  Kind = "rejected"
	RolledBack     Kind = "rolled-back"

	RunFinalized Kind = "run-finalized"
	RunAborted   Kind = "run-aborted"

	// the pipeline kept aborting. raised once the consecutive-abort
	// threshold is reached.
	Degraded Kind = "degraded"
)

// Event is one audit record. Fields other than Kind and At are set when
// they apply to the kind.
type Event struct {
	Kind  Kind
	At    time.Time
	RunId string

	Family  string
	Version int
	Reasons []domain.TriggerReason
	Verdict *domain.VerdictDetail

	// human-readable detail. Never parsed.
	Note string
}

// Emitter receives pipeline events. Emit must not block the pipeline and
// must not fail; sinks degrade silently.
type Emitter interface {
	Emit(ev Event)
}

type tee []Emitter

// Tee fans each event out to every given emitter, in order.
func Tee(emitters ...Emitter) Emitter {
	return tee(emitters)
}

func (t tee) Emit(ev Event) {
	for _, e := range t {
		e.Emit(ev)
	}
}

type logEmitter struct {
	logger *log.Logger
}

// NewLogEmitter writes events as single log lines.
func NewLogEmitter(logger *log.Logger) Emitter {
	return &logEmitter{logger: logger}
}

func (l *logEmitter) Emit(ev Event) {
	msg := "[audit] " + string(ev.Kind)
	if ev.RunId != "" {
		msg += " run=" + ev.RunId
	}
	if ev.Family != "" {
		msg += " family=" + ev.Family
	}
	if ev.Version != 0 {
		msg += " version=" + strconv.Itoa(ev.Version)
	}
	if 0 < len(ev.Reasons) {
		msg += " reasons="
		for i, r := range ev.Reasons {
			if 0 < i {
				msg += ","
			}
			msg += string(r)
		}
	}
	if ev.Verdict != nil {
		msg += " verdict=" + string(ev.Verdict.Verdict) + " (" + ev.Verdict.Reason + ")"
	}
	if ev.Note != "" {
		msg += ": " + ev.Note
	}
	l.logger.Println(msg)
}

type nullEmitter struct{}

// Null discards all events.
func Null() Emitter {
	return nullEmitter{}
}

func (nullEmitter) Emit(Event) {}
