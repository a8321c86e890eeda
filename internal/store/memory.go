package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/tradegame/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	games  map[string]*model.GameSnapshot
	scores []model.ScoreEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]*model.GameSnapshot),
	}
}

func (s *MemoryStore) SaveGame(_ context.Context, snap *model.GameSnapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("save game: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.games[snap.ID] = snap.Clone()
	return nil
}

func (s *MemoryStore) GetGame(_ context.Context, id string) (*model.GameSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return g.Clone(), nil
}

func (s *MemoryStore) ListGames(_ context.Context) ([]model.GameSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.GameSummary, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) InsertHighScores(_ context.Context, entries []model.ScoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scores = append(s.scores, entries...)
	return nil
}

// TopHighScores sorts by score descending; earlier entries win ties.
func (s *MemoryStore) TopHighScores(_ context.Context, limit int) ([]model.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.ScoreEntry(nil), s.scores...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.GreaterThan(out[j].Score)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
