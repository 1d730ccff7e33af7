package storage

import (
	"context"
	"maps"
	"sync"

	"github.com/conorfennell/revision/internal/domain"
)

// MemoryStore keeps the collection in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	cards map[string]domain.CardState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cards: map[string]domain.CardState{}}
}

func (s *MemoryStore) Load(ctx context.Context) (map[string]domain.CardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.cards), nil
}

func (s *MemoryStore) Save(ctx context.Context, cards map[string]domain.CardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = maps.Clone(cards)
	if s.cards == nil {
		s.cards = map[string]domain.CardState{}
	}
	return nil
}

func (s *MemoryStore) Export(ctx context.Context) ([]byte, error) {
	cards, _ := s.Load(ctx)
	return Marshal(cards)
}

func (s *MemoryStore) Close() error { return nil }
