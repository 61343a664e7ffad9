// Package repository persists the history of finished matches.
package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/syu-y/card-tictactoe/internal/config"
)

// MatchRecord summarizes one finished match.
type MatchRecord struct {
	RoomID     string    `json:"roomId"`
	Players    [2]string `json:"players"`
	Winner     string    `json:"winner,omitempty"` // empty on a draw
	Draw       bool      `json:"draw"`
	Turns      int       `json:"turns"`
	BoardRows  int       `json:"boardRows"`
	BoardCols  int       `json:"boardCols"`
	Checksum   string    `json:"checksum"`
	FinishedAt time.Time `json:"finishedAt"`
}

// MatchRecorder stores and lists finished matches.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
	// RecentMatches returns at most limit records, newest first.
	RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS match_history (
	id          INTEGER PRIMARY KEY %s,
	room_id     TEXT NOT NULL,
	player0     TEXT NOT NULL,
	player1     TEXT NOT NULL,
	winner      TEXT NOT NULL DEFAULT '',
	draw        BOOLEAN NOT NULL DEFAULT FALSE,
	turns       INTEGER NOT NULL,
	board_rows  INTEGER NOT NULL,
	board_cols  INTEGER NOT NULL,
	checksum    TEXT NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS match_history_finished_at ON match_history (finished_at DESC);
`

// New opens the recorder selected by cfg.Driver.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (MatchRecorder, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("match history kept in memory")
		return NewMemoryRecorder(), nil
	case "postgres":
		return NewPostgresRecorder(ctx, cfg, logger)
	case "sqlite":
		return NewSQLiteRecorder(ctx, cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
