package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsforge/relearn/pkg/domain"
	kreg "github.com/opsforge/relearn/pkg/domain/registry/db"
)

// registry keeps version history in process memory.
//
// Used in standalone mode and tests. Semantics match the postgres
// implementation: one mutex takes the place of the row locks, so readers
// never observe two deployed versions of a family.
type registry struct {
	mu       sync.Mutex
	families map[string][]domain.ModelVersion
}

func New() kreg.Interface {
	return &registry{families: map[string][]domain.ModelVersion{}}
}

func (r *registry) Record(ctx context.Context, version domain.ModelVersion) (domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.families[version.Family.Name]
	next := 1
	if 0 < len(history) {
		next = history[len(history)-1].Number + 1
	}

	recorded := version
	recorded.Number = next
	recorded.CreatedAt = time.Now().UTC()
	r.families[version.Family.Name] = append(history, recorded)
	return recorded, nil
}

func (r *registry) locate(family string, number int) (int, error) {
	for nth, v := range r.families[family] {
		if v.Number == number {
			return nth, nil
		}
	}
	return -1, fmt.Errorf("%w: model version %s/%d", domain.ErrMissing, family, number)
}

func (r *registry) Promote(ctx context.Context, family string, number int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nth, err := r.locate(family, number)
	if err != nil {
		return err
	}

	history := r.families[family]
	if history[nth].Status == domain.Deployed {
		return nil // idempotent
	}
	if !history[nth].Status.CanTransition(domain.Deployed) {
		return domain.NewErrInvalidStatusChanging(history[nth].Status, domain.Deployed)
	}

	for i := range history {
		if history[i].Status == domain.Deployed {
			history[i].Status = domain.Retired
			history[i].RetiredAt = time.Now().UTC()
		}
	}
	history[nth].Status = domain.Deployed
	history[nth].RetiredAt = time.Time{}
	return nil
}

func (r *registry) Rollback(ctx context.Context, family string) (domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.families[family]
	target := -1
	for nth, v := range history {
		if v.Status != domain.Retired {
			continue
		}
		if target < 0 ||
			history[target].RetiredAt.Before(v.RetiredAt) ||
			(history[target].RetiredAt.Equal(v.RetiredAt) && history[target].Number < v.Number) {
			target = nth
		}
	}
	if target < 0 {
		return domain.ModelVersion{}, fmt.Errorf("%w: family %s", domain.ErrNoRollbackTarget, family)
	}

	for i := range history {
		if history[i].Status == domain.Deployed {
			history[i].Status = domain.Retired
			history[i].RetiredAt = time.Now().UTC()
		}
	}
	history[target].Status = domain.Deployed
	history[target].RetiredAt = time.Time{}
	return history[target], nil
}

func (r *registry) SetStatus(ctx context.Context, family string, number int, status domain.VersionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nth, err := r.locate(family, number)
	if err != nil {
		return err
	}

	history := r.families[family]
	if !history[nth].Status.CanTransition(status) {
		return domain.NewErrInvalidStatusChanging(history[nth].Status, status)
	}
	history[nth].Status = status
	if status == domain.Retired {
		history[nth].RetiredAt = time.Now().UTC()
	}
	return nil
}

func (r *registry) GetActive(ctx context.Context, family string) (*domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.families[family] {
		if v.Status == domain.Deployed {
			found := v
			return &found, nil
		}
	}
	return nil, nil
}

func (r *registry) History(ctx context.Context, family string) ([]domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.families[family]
	found := make([]domain.ModelVersion, len(history))
	copy(found, history)
	return found, nil
}
