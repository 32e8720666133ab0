package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRunStore implements RunStore for testing and for runs that
// should not touch disk.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]Run
	seq  map[string]int
	next int
}

// NewInMemoryRunStore creates a new in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs: make(map[string]Run),
		seq:  make(map[string]int),
	}
}

// RecordRun stores a copy of run.
func (s *InMemoryRunStore) RecordRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, exists := s.runs[run.ID]; exists {
		return "", fmt.Errorf("run %s already exists", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.ExitOrder = slices.Clone(run.ExitOrder)

	s.runs[run.ID] = run
	s.seq[run.ID] = s.next
	s.next++
	return run.ID, nil
}

// GetRun returns a copy of the run.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run.ExitOrder = slices.Clone(run.ExitOrder)
	return &run, nil
}

// ListRuns returns matching runs, newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Strategy != "" && run.Strategy != filter.Strategy {
			continue
		}
		run.ExitOrder = nil
		runs = append(runs, run)
	}

	slices.SortFunc(runs, func(a, b Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(s.seq[b.ID], s.seq[a.ID])
	})

	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

// DeleteRun removes a run.
func (s *InMemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	delete(s.runs, id)
	delete(s.seq, id)
	return nil
}

// Close is a no-op for in-memory store.
func (s *InMemoryRunStore) Close() error {
	return nil
}
