package pointset

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store]. It backs development servers
// that run without a database and the tests of packages that need sets.
// The zero value is ready to use.
type MemStore struct {
	mu   sync.RWMutex
	sets map[string]PointSet
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{sets: make(map[string]PointSet)}
}

// Create implements [Store.Create].
func (s *MemStore) Create(_ context.Context, set *PointSet) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("pointset: create: %w", err)
	}
	if set.ID == "" {
		set.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sets == nil {
		s.sets = make(map[string]PointSet)
	}
	if _, exists := s.sets[set.ID]; exists {
		return ErrDuplicateID
	}
	now := s.clock()
	set.CreatedAt, set.UpdatedAt = now, now
	s.sets[set.ID] = clone(*set)
	return nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, id string) (*PointSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(set)
	return &out, nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context, ownerID string) ([]PointSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]PointSet, 0, len(s.sets))
	for _, set := range s.sets {
		if ownerID != "" && set.OwnerID != ownerID {
			continue
		}
		result = append(result, clone(set))
	}
	slices.SortFunc(result, func(a, b PointSet) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Update implements [Store.Update].
func (s *MemStore) Update(_ context.Context, set *PointSet) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("pointset: update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sets[set.ID]
	if !ok {
		return ErrNotFound
	}
	set.CreatedAt = old.CreatedAt
	set.UpdatedAt = s.clock()
	s.sets[set.ID] = clone(*set)
	return nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sets[id]; !ok {
		return ErrNotFound
	}
	delete(s.sets, id)
	return nil
}

// Ping implements [Store.Ping]. A MemStore is always ready.
func (s *MemStore) Ping(context.Context) error { return nil }

func (s *MemStore) clock() time.Time {
	return time.Now().UTC()
}

// clone copies set so that callers cannot mutate stored points.
func clone(set PointSet) PointSet {
	set.Points = slices.Clone(set.Points)
	return set
}
