package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/atmx/tradegame/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Snapshots are cached msgpack-encoded. Writes go to the primary
// store and refresh or invalidate the cache; reads check Redis first then
// fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) SaveGame(ctx context.Context, snap *model.GameSnapshot) error {
	if err := s.primary.SaveGame(ctx, snap); err != nil {
		return err
	}
	s.cacheGame(ctx, snap)
	return nil
}

func (s *CachedStore) InsertHighScores(ctx context.Context, entries []model.ScoreEntry) error {
	if err := s.primary.InsertHighScores(ctx, entries); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, highScoresKey)
	return nil
}

// --- Read-through ---

func (s *CachedStore) GetGame(ctx context.Context, id string) (*model.GameSnapshot, error) {
	data, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == nil {
		if snap, err := decodeSnapshot(data); err == nil {
			return snap, nil
		}
	}

	snap, err := s.primary.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheGame(ctx, snap)
	return snap, nil
}

// TopHighScores caches the most recently requested list. The key is
// dropped on every insert.
func (s *CachedStore) TopHighScores(ctx context.Context, limit int) ([]model.ScoreEntry, error) {
	field := fmt.Sprintf("%d", limit)
	data, err := s.rdb.HGet(ctx, highScoresKey, field).Bytes()
	if err == nil {
		var entries []model.ScoreEntry
		if msgpack.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.primary.TopHighScores(ctx, limit)
	if err != nil {
		return nil, err
	}
	if data, err := msgpack.Marshal(entries); err == nil {
		s.rdb.HSet(ctx, highScoresKey, field, data)
		s.rdb.Expire(ctx, highScoresKey, s.ttl)
	}
	return entries, nil
}

// --- Passthrough ---

func (s *CachedStore) ListGames(ctx context.Context) ([]model.GameSummary, error) {
	return s.primary.ListGames(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheGame(ctx context.Context, snap *model.GameSnapshot) {
	if data, err := encodeSnapshot(snap); err == nil {
		s.rdb.Set(ctx, gameKey(snap.ID), data, s.ttl)
	}
}

func encodeSnapshot(snap *model.GameSnapshot) ([]byte, error) {
	return msgpack.Marshal(snap)
}

func decodeSnapshot(data []byte) (*model.GameSnapshot, error) {
	var snap model.GameSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

const highScoresKey = "tradegame:highscores"

func gameKey(id string) string { return fmt.Sprintf("tradegame:game:%s", id) }
