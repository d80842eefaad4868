// Package runstore keeps the latest snapshot of each conversation run.
package runstore

import (
	"context"
	"errors"
	"sync"

	"github.com/capitalize-ai/persona-chat/internal/model"
)

// ErrNotFound is returned when no run exists for the id.
var ErrNotFound = errors.New("run not found")

// Store persists run snapshots.
type Store interface {
	Save(ctx context.Context, run *model.Run) error
	Get(ctx context.Context, runID string) (*model.Run, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*model.Run
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*model.Run)}
}

// Save stores a copy of run.
func (s *MemoryStore) Save(_ context.Context, run *model.Run) error {
	cp := copyRun(run)

	s.mu.Lock()
	s.runs[run.ID] = cp
	s.mu.Unlock()

	return nil
}

// Get returns a copy of the stored run.
func (s *MemoryStore) Get(_ context.Context, runID string) (*model.Run, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return copyRun(run), nil
}

func copyRun(run *model.Run) *model.Run {
	cp := *run
	cp.Turns = append([]model.Turn(nil), run.Turns...)
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
