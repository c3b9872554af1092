package persistence

import (
	"sort"
	"sync"

	"github.com/mkardel/flowgraph/pkg/api"
)

// InMemoryStore is a goroutine-safe InvocationStore backed by a map.
type InMemoryStore struct {
	mu          sync.RWMutex
	invocations map[string]api.Invocation
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{invocations: make(map[string]api.Invocation)}
}

var _ InvocationStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveInvocation(inv *api.Invocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy so callers mutating inv later do not bypass Update.
	s.invocations[inv.ID] = *inv
	return nil
}

func (s *InMemoryStore) UpdateInvocation(inv *api.Invocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invocations[inv.ID]; !ok {
		return ErrInvocationNotFound
	}
	s.invocations[inv.ID] = *inv
	return nil
}

func (s *InMemoryStore) GetInvocation(id string) (*api.Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invocations[id]
	if !ok {
		return nil, ErrInvocationNotFound
	}
	return &inv, nil
}

func (s *InMemoryStore) ListInvocations(filter api.InvocationFilter) ([]*api.Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Invocation
	for _, inv := range s.invocations {
		if filter.Workflow != "" && inv.Workflow != filter.Workflow {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		copied := inv
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}
