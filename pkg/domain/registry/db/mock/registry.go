package mock

import (
	"context"
	"errors"

	"github.com/opsforge/relearn/pkg/domain"
	dbmock "github.com/opsforge/relearn/pkg/domain/internal/db/mock"
	kreg "github.com/opsforge/relearn/pkg/domain/registry/db"
)

type Interface struct {
	Impl struct {
		Record    func(ctx context.Context, version domain.ModelVersion) (domain.ModelVersion, error)
		Promote   func(ctx context.Context, family string, number int) error
		Rollback  func(ctx context.Context, family string) (domain.ModelVersion, error)
		SetStatus func(ctx context.Context, family string, number int, status domain.VersionStatus) error
		GetActive func(ctx context.Context, family string) (*domain.ModelVersion, error)
		History   func(ctx context.Context, family string) ([]domain.ModelVersion, error)
	}

	Calls struct {
		Record   dbmock.CallLog[domain.ModelVersion]
		Promote  dbmock.CallLog[struct {
			Family string
			Number int
		}]
		Rollback  dbmock.CallLog[string]
		SetStatus dbmock.CallLog[struct {
			Family string
			Number int
			Status domain.VersionStatus
		}]
		GetActive dbmock.CallLog[string]
		History   dbmock.CallLog[string]
	}
}

func New() *Interface {
	return &Interface{}
}

var _ kreg.Interface = &Interface{}

func (m *Interface) Record(ctx context.Context, version domain.ModelVersion) (domain.ModelVersion, error) {
	m.Calls.Record = append(m.Calls.Record, version)
	if m.Impl.Record != nil {
		return m.Impl.Record(ctx, version)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) Promote(ctx context.Context, family string, number int) error {
	m.Calls.Promote = append(m.Calls.Promote, struct {
		Family string
		Number int
	}{Family: family, Number: number})
	if m.Impl.Promote != nil {
		return m.Impl.Promote(ctx, family, number)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) Rollback(ctx context.Context, family string) (domain.ModelVersion, error) {
	m.Calls.Rollback = append(m.Calls.Rollback, family)
	if m.Impl.Rollback != nil {
		return m.Impl.Rollback(ctx, family)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) SetStatus(ctx context.Context, family string, number int, status domain.VersionStatus) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, struct {
		Family string
		Number int
		Status domain.VersionStatus
	}{Family: family, Number: number, Status: status})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, family, number, status)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) GetActive(ctx context.Context, family string) (*domain.ModelVersion, error) {
	m.Calls.GetActive = append(m.Calls.GetActive, family)
	if m.Impl.GetActive != nil {
		return m.Impl.GetActive(ctx, family)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) History(ctx context.Context, family string) ([]domain.ModelVersion, error) {
	m.Calls.History = append(m.Calls.History, family)
	if m.Impl.History != nil {
		return m.Impl.History(ctx, family)
	}
	panic(errors.New("it should not be called"))
}
