package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/tradegame/internal/model"
)

// Schema creates the tables used by PostgresStore. Scores are NUMERIC for
// exact decimal precision; the full snapshot is kept as JSONB next to the
// columns needed for listing.
const Schema = `
CREATE TABLE IF NOT EXISTS games (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	current_turn INTEGER NOT NULL,
	total_turns  INTEGER NOT NULL,
	players      INTEGER NOT NULL,
	snapshot     JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS high_scores (
	id          BIGSERIAL PRIMARY KEY,
	player_name TEXT NOT NULL,
	score       NUMERIC NOT NULL,
	game_id     TEXT NOT NULL,
	turns       INTEGER NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS high_scores_score_idx ON high_scores (score DESC, id ASC);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveGame(ctx context.Context, snap *model.GameSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", snap.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO games (id, status, current_turn, total_turns, players, snapshot, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET status = EXCLUDED.status,
		     current_turn = EXCLUDED.current_turn,
		     total_turns = EXCLUDED.total_turns,
		     players = EXCLUDED.players,
		     snapshot = EXCLUDED.snapshot,
		     updated_at = EXCLUDED.updated_at`,
		snap.ID, snap.Status, snap.CurrentTurn, snap.TotalTurns, len(snap.Players),
		data, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save game %s: %w", snap.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetGame(ctx context.Context, id string) (*model.GameSnapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT snapshot FROM games WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}

	var snap model.GameSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return &snap, nil
}

func (s *PostgresStore) ListGames(ctx context.Context) ([]model.GameSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, current_turn, total_turns, players, updated_at
		 FROM games ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []model.GameSummary
	for rows.Next() {
		var g model.GameSummary
		if err := rows.Scan(&g.ID, &g.Status, &g.CurrentTurn, &g.TotalTurns, &g.Players, &g.UpdatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *PostgresStore) InsertHighScores(ctx context.Context, entries []model.ScoreEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO high_scores (player_name, score, game_id, turns, recorded_at)
			 VALUES ($1, $2::NUMERIC, $3, $4, $5)`,
			e.PlayerName, e.Score.String(), e.GameID, e.Turns, e.RecordedAt,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert high scores: %w", err)
	}
	return nil
}

func (s *PostgresStore) TopHighScores(ctx context.Context, limit int) ([]model.ScoreEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT player_name, score::TEXT, game_id, turns, recorded_at
		 FROM high_scores ORDER BY score DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScoreEntries(rows)
}

// pgxRows is the subset of pgx.Rows the scanners need.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanScoreEntries(rows pgxRows) ([]model.ScoreEntry, error) {
	var entries []model.ScoreEntry
	for rows.Next() {
		var e model.ScoreEntry
		var scoreS string

		if err := rows.Scan(&e.PlayerName, &scoreS, &e.GameID, &e.Turns, &e.RecordedAt); err != nil {
			return nil, err
		}

		score, err := decimal.NewFromString(scoreS)
		if err != nil {
			return nil, fmt.Errorf("parse score %q: %w", scoreS, err)
		}
		e.Score = score
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
