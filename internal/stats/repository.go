// Package stats is the persistence collaborator informed of every
// terminal game. The in-memory game state is final before any write here
// runs; failures are reported to the caller for logging, never rolled back
// into a session.
package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/castlelight/gambit/internal/models"
)

// Repository writes game results to Postgres. See schema.sql for the
// tables it expects.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const insertFinishedGame = `
INSERT INTO finished_games (game_uuid, outcome, reason, winner_id, loser_id, ended_at, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (game_uuid) DO NOTHING
`

const bumpWinner = `
UPDATE users SET wins = wins + 1, games_played = games_played + 1 WHERE id = $1
`

const bumpLoser = `
UPDATE users SET losses = losses + 1, games_played = games_played + 1 WHERE id = $1
`

const bumpDraw = `
UPDATE users SET draws = draws + 1, games_played = games_played + 1 WHERE id = $1
`

// RecordResult persists the outcome and updates per-player counters in one
// transaction.
func (r *Repository) RecordResult(ctx context.Context, result models.GameResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stats txn: %w", err)
	}
	defer tx.Rollback()

	metadata, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertFinishedGame,
		result.GameID,
		string(result.Outcome),
		string(result.Reason),
		nullUUID(result.WinnerID),
		nullUUID(result.LoserID),
		result.EndedAt,
		pqtype.NullRawMessage{RawMessage: metadata, Valid: len(metadata) > 0},
	); err != nil {
		return fmt.Errorf("insert finished game: %w", err)
	}

	if result.WinnerID != nil {
		if _, err := tx.ExecContext(ctx, bumpWinner, *result.WinnerID); err != nil {
			return fmt.Errorf("update winner stats: %w", err)
		}
	}
	if result.LoserID != nil {
		if _, err := tx.ExecContext(ctx, bumpLoser, *result.LoserID); err != nil {
			return fmt.Errorf("update loser stats: %w", err)
		}
	}
	for _, id := range result.DrawIDs {
		if _, err := tx.ExecContext(ctx, bumpDraw, id); err != nil {
			return fmt.Errorf("update draw stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stats txn: %w", err)
	}
	return nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}
