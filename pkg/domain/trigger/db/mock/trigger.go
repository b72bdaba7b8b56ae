package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opsforge/relearn/pkg/domain"
	dbmock "github.com/opsforge/relearn/pkg/domain/internal/db/mock"
	ktrig "github.com/opsforge/relearn/pkg/domain/trigger/db"
)

type Interface struct {
	Impl struct {
		Get               func(ctx context.Context) (domain.TriggerState, error)
		NoteRun           func(ctx context.Context, family string, at time.Time, ok bool) error
		RequestManual     func(ctx context.Context, family *string, dryRun bool) (domain.ManualRequest, error)
		TakeManualRequest func(ctx context.Context) (*domain.ManualRequest, error)
		AcquireLock       func(ctx context.Context, holder string) (bool, error)
		ReleaseLock       func(ctx context.Context, holder string) error
	}

	Calls struct {
		Get     dbmock.CallLog[struct{}]
		NoteRun dbmock.CallLog[struct {
			Family string
			At     time.Time
			Ok     bool
		}]
		RequestManual dbmock.CallLog[struct {
			Family *string
			DryRun bool
		}]
		TakeManualRequest dbmock.CallLog[struct{}]
		AcquireLock       dbmock.CallLog[string]
		ReleaseLock       dbmock.CallLog[string]
	}
}

func New() *Interface {
	return &Interface{}
}

var _ ktrig.Interface = &Interface{}

func (m *Interface) Get(ctx context.Context) (domain.TriggerState, error) {
	m.Calls.Get = append(m.Calls.Get, struct{}{})
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) NoteRun(ctx context.Context, family string, at time.Time, ok bool) error {
	m.Calls.NoteRun = append(m.Calls.NoteRun, struct {
		Family string
		At     time.Time
		Ok     bool
	}{Family: family, At: at, Ok: ok})
	if m.Impl.NoteRun != nil {
		return m.Impl.NoteRun(ctx, family, at, ok)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) RequestManual(ctx context.Context, family *string, dryRun bool) (domain.ManualRequest, error) {
	m.Calls.RequestManual = append(m.Calls.RequestManual, struct {
		Family *string
		DryRun bool
	}{Family: family, DryRun: dryRun})
	if m.Impl.RequestManual != nil {
		return m.Impl.RequestManual(ctx, family, dryRun)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) TakeManualRequest(ctx context.Context) (*domain.ManualRequest, error) {
	m.Calls.TakeManualRequest = append(m.Calls.TakeManualRequest, struct{}{})
	if m.Impl.TakeManualRequest != nil {
		return m.Impl.TakeManualRequest(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) AcquireLock(ctx context.Context, holder string) (bool, error) {
	m.Calls.AcquireLock = append(m.Calls.AcquireLock, holder)
	if m.Impl.AcquireLock != nil {
		return m.Impl.AcquireLock(ctx, holder)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) ReleaseLock(ctx context.Context, holder string) error {
	m.Calls.ReleaseLock = append(m.Calls.ReleaseLock, holder)
	if m.Impl.ReleaseLock != nil {
		return m.Impl.ReleaseLock(ctx, holder)
	}
	panic(errors.New("it should not be called"))
}
