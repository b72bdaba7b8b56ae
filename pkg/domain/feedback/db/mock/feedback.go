package mock

import (
	"context"
	"errors"

	"github.com/opsforge/relearn/pkg/domain"
	kfb "github.com/opsforge/relearn/pkg/domain/feedback/db"
	dbmock "github.com/opsforge/relearn/pkg/domain/internal/db/mock"
)

type Interface struct {
	Impl struct {
		Register           func(ctx context.Context, spec domain.FeedbackSpec) (domain.FeedbackRecord, error)
		ListUnconsumed     func(ctx context.Context, limit int) ([]domain.FeedbackRecord, error)
		MarkConsumed       func(ctx context.Context, ids []string) error
		RecentDispositions func(ctx context.Context, n int) ([]domain.Disposition, error)
		CountUnconsumed    func(ctx context.Context) (int, error)
	}

	Calls struct {
		Register           dbmock.CallLog[domain.FeedbackSpec]
		ListUnconsumed     dbmock.CallLog[int]
		MarkConsumed       dbmock.CallLog[[]string]
		RecentDispositions dbmock.CallLog[int]
		CountUnconsumed    dbmock.CallLog[struct{}]
	}
}

func New() *Interface {
	return &Interface{}
}

var _ kfb.Interface = &Interface{}

func (m *Interface) Register(ctx context.Context, spec domain.FeedbackSpec) (domain.FeedbackRecord, error) {
	m.Calls.Register = append(m.Calls.Register, spec)
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, spec)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) ListUnconsumed(ctx context.Context, limit int) ([]domain.FeedbackRecord, error) {
	m.Calls.ListUnconsumed = append(m.Calls.ListUnconsumed, limit)
	if m.Impl.ListUnconsumed != nil {
		return m.Impl.ListUnconsumed(ctx, limit)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) MarkConsumed(ctx context.Context, ids []string) error {
	m.Calls.MarkConsumed = append(m.Calls.MarkConsumed, ids)
	if m.Impl.MarkConsumed != nil {
		return m.Impl.MarkConsumed(ctx, ids)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) RecentDispositions(ctx context.Context, n int) ([]domain.Disposition, error) {
	m.Calls.RecentDispositions = append(m.Calls.RecentDispositions, n)
	if m.Impl.RecentDispositions != nil {
		return m.Impl.RecentDispositions(ctx, n)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) CountUnconsumed(ctx context.Context) (int, error) {
	m.Calls.CountUnconsumed = append(m.Calls.CountUnconsumed, struct{}{})
	if m.Impl.CountUnconsumed != nil {
		return m.Impl.CountUnconsumed(ctx)
	}
	panic(errors.New("it should not be called"))
}
