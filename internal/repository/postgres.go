package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/syu-y/card-tictactoe/internal/config"
)

// PostgresRecorder stores match history in PostgreSQL.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder connects, verifies the connection and ensures the schema exists.
func NewPostgresRecorder(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresRecorder, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(connectCtx, fmt.Sprintf(schema, "GENERATED ALWAYS AS IDENTITY")); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	stats := pool.Stat()
	logger.Info("match history connected to postgres",
		zap.Int32("max_conns", stats.MaxConns()),
		zap.Int32("total_conns", stats.TotalConns()),
	)
	return &PostgresRecorder{pool: pool}, nil
}

func (r *PostgresRecorder) RecordMatch(ctx context.Context, rec MatchRecord) error {
	q := `
	INSERT INTO match_history (room_id, player0, player1, winner, draw, turns, board_rows, board_cols, checksum, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := r.pool.Exec(ctx, q,
		rec.RoomID, rec.Players[0], rec.Players[1], rec.Winner, rec.Draw,
		rec.Turns, rec.BoardRows, rec.BoardCols, rec.Checksum, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	q := `
	SELECT room_id, player0, player1, winner, draw, turns, board_rows, board_cols, checksum, finished_at
	FROM match_history ORDER BY finished_at DESC, id DESC LIMIT $1;
	`
	rows, err := r.pool.Query(ctx, q, limit)
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

func (r *PostgresRecorder) Close() error {
	r.pool.Close()
	return nil
}
