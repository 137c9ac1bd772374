package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema holds the match journal table. Rows are written by the venue and
// never read back into it.
const Schema = `
CREATE TABLE IF NOT EXISTS match_events (
	id            UUID PRIMARY KEY,
	pair          TEXT        NOT NULL,
	buy_order_id  TEXT        NOT NULL,
	sell_order_id TEXT        NOT NULL,
	buyer         TEXT        NOT NULL,
	seller        TEXT        NOT NULL,
	quantity      NUMERIC     NOT NULL,
	price         NUMERIC     NOT NULL,
	block_height  BIGINT      NOT NULL,
	matched_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS match_events_pair_height ON match_events (pair, block_height);
`

func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, errors.New("database url is empty")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the journal table if it does not exist.
func EnsureSchema(ctx context.Context, conn execer) error {
	if _, err := conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
