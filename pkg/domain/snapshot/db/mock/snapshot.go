package mock

import (
	"context"
	"errors"

	"github.com/opsforge/relearn/pkg/domain"
	dbmock "github.com/opsforge/relearn/pkg/domain/internal/db/mock"
	ksnap "github.com/opsforge/relearn/pkg/domain/snapshot/db"
)

type Interface struct {
	Impl struct {
		Resolve func(ctx context.Context, ref string) (domain.Snapshot, error)
		Latest  func(ctx context.Context) (string, error)
	}

	Calls struct {
		Resolve dbmock.CallLog[string]
		Latest  dbmock.CallLog[struct{}]
	}
}

func New() *Interface {
	return &Interface{}
}

var _ ksnap.Interface = &Interface{}

func (m *Interface) Resolve(ctx context.Context, ref string) (domain.Snapshot, error) {
	m.Calls.Resolve = append(m.Calls.Resolve, ref)
	if m.Impl.Resolve != nil {
		return m.Impl.Resolve(ctx, ref)
	}
	panic(errors.New("it should not be called"))
}

func (m *Interface) Latest(ctx context.Context) (string, error) {
	m.Calls.Latest = append(m.Calls.Latest, struct{}{})
	if m.Impl.Latest != nil {
		return m.Impl.Latest(ctx)
	}
	panic(errors.New("it should not be called"))
}
