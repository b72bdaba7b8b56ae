package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opsforge/relearn/pkg/domain"
	kfb "github.com/opsforge/relearn/pkg/domain/feedback/db"
)

// store keeps feedback in process memory. For standalone mode and tests.
type store struct {
	mu      sync.Mutex
	records []domain.FeedbackRecord
}

func New() kfb.Interface {
	return &store{}
}

func (s *store) Register(ctx context.Context, spec domain.FeedbackSpec) (domain.FeedbackRecord, error) {
	if err := spec.Validate(); err != nil {
		return domain.FeedbackRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := domain.FeedbackRecord{
		Id:          uuid.NewString(),
		Subject:     spec.Subject,
		Kind:        spec.Kind,
		Predicted:   spec.Predicted,
		Actual:      spec.Actual,
		Disposition: spec.Disposition,
		Note:        spec.Note,
		CreatedAt:   time.Now().UTC(),
	}
	s.records = append(s.records, record)
	return record, nil
}

func (s *store) ListUnconsumed(ctx context.Context, limit int) ([]domain.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := []domain.FeedbackRecord{}
	for _, r := range s.records {
		if !r.Consumed {
			found = append(found, r)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.Before(found[j].CreatedAt)
		}
		return found[i].Id < found[j].Id
	})
	if 0 < limit && limit < len(found) {
		found = found[:limit]
	}
	return found, nil
}

func (s *store) MarkConsumed(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := map[string]int{}
	for nth, r := range s.records {
		index[r.Id] = nth
	}
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			return fmt.Errorf("%w: feedback %s", domain.ErrMissing, id)
		}
	}
	for _, id := range ids {
		s.records[index[id]].Consumed = true
	}
	return nil
}

func (s *store) RecentDispositions(ctx context.Context, n int) ([]domain.Disposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]domain.FeedbackRecord, len(s.records))
	copy(ordered, s.records)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[j].CreatedAt.Before(ordered[i].CreatedAt)
		}
		return ordered[j].Id < ordered[i].Id
	})
	if n < len(ordered) {
		ordered = ordered[:n]
	}

	found := make([]domain.Disposition, len(ordered))
	for nth, r := range ordered {
		found[nth] = r.Disposition
	}
	return found, nil
}

func (s *store) CountUnconsumed(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.records {
		if !r.Consumed {
			count += 1
		}
	}
	return count, nil
}
