package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

// DefaultCapacity is the number of faults kept when New is given none.
const DefaultCapacity = 1000

// Store is an in-memory implementation of ports.FaultStore. It keeps the
// most recent faults up to its capacity.
type Store struct {
	mu       sync.RWMutex
	capacity int
	faults   []*domain.FaultRecord
	ids      map[string]struct{}
}

var _ ports.FaultStore = (*Store)(nil)

// New creates a new in-memory store holding at most capacity faults.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		ids:      make(map[string]struct{}),
	}
}

func (s *Store) SaveFault(ctx context.Context, rec *domain.FaultRecord) error {
	if rec == nil {
		return &domain.ArgumentError{Name: "rec"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[rec.ID]; exists {
		return fmt.Errorf("fault %s already exists", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	stored := *rec
	s.faults = append(s.faults, &stored)
	s.ids[rec.ID] = struct{}{}

	if over := len(s.faults) - s.capacity; over > 0 {
		for _, old := range s.faults[:over] {
			delete(s.ids, old.ID)
		}
		s.faults = append([]*domain.FaultRecord(nil), s.faults[over:]...)
	}
	return nil
}

// ListFaults returns copies of the stored faults, newest first.
func (s *Store) ListFaults(ctx context.Context, limit int) ([]*domain.FaultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.faults)
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]*domain.FaultRecord, 0, n)
	for i := len(s.faults) - 1; i >= 0 && len(result) < n; i-- {
		rec := *s.faults[i]
		result = append(result, &rec)
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
