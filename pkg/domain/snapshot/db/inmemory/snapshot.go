package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opsforge/relearn/pkg/domain"
	ksnap "github.com/opsforge/relearn/pkg/domain/snapshot/db"
)

// Store keeps snapshots in process memory. For standalone mode and tests.
type Store struct {
	mu        sync.Mutex
	snapshots map[string]domain.Snapshot
	order     []string // refs, oldest first
}

var _ ksnap.Interface = &Store{}

func New() *Store {
	return &Store{snapshots: map[string]domain.Snapshot{}}
}

// Add registers a snapshot. The latest added one is what Latest returns.
func (s *Store) Add(snapshot domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[snapshot.Ref]; !ok {
		s.order = append(s.order, snapshot.Ref)
	}
	s.snapshots[snapshot.Ref] = snapshot
}

func (s *Store) Resolve(ctx context.Context, ref string) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[ref]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%w: %s", domain.ErrSnapshotUnavailable, ref)
	}

	found := domain.Snapshot{Ref: snapshot.Ref, Rows: make([]domain.Row, len(snapshot.Rows))}
	copy(found.Rows, snapshot.Rows)
	sort.Slice(found.Rows, func(i, j int) bool {
		if found.Rows[i].Subject != found.Rows[j].Subject {
			return found.Rows[i].Subject < found.Rows[j].Subject
		}
		return found.Rows[i].Kind < found.Rows[j].Kind
	})
	return found, nil
}

func (s *Store) Latest(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return "", fmt.Errorf("%w: no snapshot is registered", domain.ErrSnapshotUnavailable)
	}
	return s.order[len(s.order)-1], nil
}
