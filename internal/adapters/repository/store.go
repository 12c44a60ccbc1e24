// Package repository holds evaluated standings and answers ranking queries.
package repository

import (
	"context"

	"github.com/okian/tiebreak/internal/domain/types"
)

// BoardKey identifies one standings table: a tournament evaluated up to a round.
type BoardKey struct {
	TournamentID string `json:"tournament_id"`
	MaxRound     int    `json:"max_round"`
}

// Store provides read/write access to the standings state.
type Store interface {
	// Upsert inserts or replaces one player's row on the board of
	// (tournamentID, s.MaxRound).
	Upsert(ctx context.Context, tournamentID string, s types.Standing) error

	// Publish replaces a whole board at once.
	Publish(ctx context.Context, key BoardKey, rows []types.Standing) error

	// Rank returns a player's ranked row. Returns ErrNotFound if the board
	// or the player is unknown.
	Rank(ctx context.Context, key BoardKey, playerID int) (types.Entry, error)

	// TopN returns the first n rows in rank order.
	TopN(ctx context.Context, key BoardKey, n int) ([]types.Entry, error)

	// Count returns the number of rows on a board.
	Count(ctx context.Context, key BoardKey) int

	// Boards lists every board ordered by tournament id then round.
	Boards(ctx context.Context) []BoardKey

	// Drop removes a board and reports whether it existed.
	Drop(ctx context.Context, key BoardKey) bool
}
