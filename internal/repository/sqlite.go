package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteRecorder stores match history in a local SQLite file.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens path, creating its directory and the schema as needed.
func NewSQLiteRecorder(ctx context.Context, path string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, fmt.Sprintf(schema, "AUTOINCREMENT")); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("match history stored in sqlite", zap.String("path", path))
	return &SQLiteRecorder{db: db}, nil
}

func (r *SQLiteRecorder) RecordMatch(ctx context.Context, rec MatchRecord) error {
	q := `
	INSERT INTO match_history (room_id, player0, player1, winner, draw, turns, board_rows, board_cols, checksum, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.RoomID, rec.Players[0], rec.Players[1], rec.Winner, rec.Draw,
		rec.Turns, rec.BoardRows, rec.BoardCols, rec.Checksum, rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	q := `
	SELECT room_id, player0, player1, winner, draw, turns, board_rows, board_cols, checksum, finished_at
	FROM match_history ORDER BY finished_at DESC, id DESC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	out := make([]MatchRecord, 0, limit)
	for rows.Next() {
		var rec MatchRecord
		if err := rows.Scan(
			&rec.RoomID, &rec.Players[0], &rec.Players[1], &rec.Winner, &rec.Draw,
			&rec.Turns, &rec.BoardRows, &rec.BoardCols, &rec.Checksum, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}
	return out, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
