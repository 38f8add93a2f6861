package store

import (
	"context"
	"sync"

	"github.com/hafeefas/investment-simulator/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]*model.Ledger
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers: make(map[string]*model.Ledger),
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[userID]
	if !ok {
		return nil, ErrLedgerNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, l *model.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledgers[l.UserID]; ok {
		return ErrLedgerExists
	}
	s.ledgers[l.UserID] = l.Clone()
	return nil
}

// ConditionalPut performs the compare-and-set under the store mutex, which
// makes the revision check and the write a single atomic step.
func (s *MemoryStore) ConditionalPut(_ context.Context, l *model.Ledger, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.ledgers[l.UserID]
	if !ok {
		return ErrLedgerNotFound
	}
	if current.Revision != expectedRevision {
		return ErrRevisionConflict
	}
	s.ledgers[l.UserID] = l.Clone()
	return nil
}
