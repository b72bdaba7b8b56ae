package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opsforge/relearn/pkg/domain"
	kfb "github.com/opsforge/relearn/pkg/domain/feedback/db"
	ktrig "github.com/opsforge/relearn/pkg/domain/trigger/db"
)

const defaultAccuracyWindow = 50

// store keeps trigger state in process memory.
//
// Backlog and rolling accuracy are derived from the feedback boundary, like
// the postgres implementation derives them from the feedback table.
type noted struct {
	at time.Time
	ok bool
}

type store struct {
	mu             sync.Mutex
	feedback       kfb.Interface
	accuracyWindow int
	lastRun        map[string]noted
	requests       []domain.ManualRequest
	lockHolder     string
}

type Option func(*store) *store

func WithAccuracyWindow(n int) Option {
	return func(s *store) *store {
		s.accuracyWindow = n
		return s
	}
}

func New(feedback kfb.Interface, options ...Option) ktrig.Interface {
	s := &store{
		feedback:       feedback,
		accuracyWindow: defaultAccuracyWindow,
		lastRun:        map[string]noted{},
	}
	for _, opt := range options {
		s = opt(s)
	}
	return s
}

func (s *store) Get(ctx context.Context) (domain.TriggerState, error) {
	backlog, err := s.feedback.CountUnconsumed(ctx)
	if err != nil {
		return domain.TriggerState{}, err
	}
	recent, err := s.feedback.RecentDispositions(ctx, s.accuracyWindow)
	if err != nil {
		return domain.TriggerState{}, err
	}

	agree := 0
	for _, d := range recent {
		if d == domain.Agree {
			agree += 1
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := domain.TriggerState{
		LastRun:     map[string]time.Time{},
		Backlog:     backlog,
		SampleCount: len(recent),
	}
	// only successful runs suppress the scheduled window
	for f, n := range s.lastRun {
		if n.ok {
			state.LastRun[f] = n.at
		}
	}
	if 0 < len(recent) {
		state.RollingAccuracy = float64(agree) / float64(len(recent))
	}
	return state, nil
}

func (s *store) NoteRun(ctx context.Context, family string, at time.Time, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[family] = noted{at: at, ok: ok}
	return nil
}

func (s *store) RequestManual(ctx context.Context, family *string, dryRun bool) (domain.ManualRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := domain.ManualRequest{
		Id:          uuid.NewString(),
		Family:      family,
		DryRun:      dryRun,
		RequestedAt: time.Now().UTC(),
	}
	s.requests = append(s.requests, req)
	return req, nil
}

func (s *store) TakeManualRequest(ctx context.Context) (*domain.ManualRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.requests) == 0 {
		return nil, nil
	}
	req := s.requests[0]
	s.requests = s.requests[1:]
	return &req, nil
}

func (s *store) AcquireLock(ctx context.Context, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockHolder != "" {
		return false, nil
	}
	s.lockHolder = holder
	return true, nil
}

func (s *store) ReleaseLock(ctx context.Context, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockHolder == holder {
		s.lockHolder = ""
	}
	return nil
}
