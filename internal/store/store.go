// Package store defines the persistence interface for game sessions.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/tradegame/internal/model"
)

// ErrNotFound is returned when a game does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Games ---

	// SaveGame inserts or replaces a game snapshot.
	SaveGame(ctx context.Context, snap *model.GameSnapshot) error

	// GetGame retrieves a game snapshot by its ID.
	GetGame(ctx context.Context, id string) (*model.GameSnapshot, error)

	// ListGames returns summaries of all games, most recently updated first.
	ListGames(ctx context.Context) ([]model.GameSummary, error)

	// --- High scores ---

	// InsertHighScores appends finished-game entries to the shared list.
	InsertHighScores(ctx context.Context, entries []model.ScoreEntry) error

	// TopHighScores returns the best entries by descending score.
	TopHighScores(ctx context.Context, limit int) ([]model.ScoreEntry, error)
}
