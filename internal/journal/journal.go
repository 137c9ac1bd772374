// Package journal exports match events to Postgres. It is write-only: the
// venue never reads its state back, so a restart still begins empty.
package journal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/engine"
	"github.com/hakimelghazi/ledger-dex/internal/metrics"
)

type Recorder interface {
	Record(ctx context.Context, events []engine.MatchEvent) error
}

// Beginner opens a transaction. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const insertMatch = `
INSERT INTO match_events
	(id, pair, buy_order_id, sell_order_id, buyer, seller, quantity, price, block_height, matched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Postgres writes each batch of matches in one transaction.
type Postgres struct {
	db Beginner
}

func NewPostgres(db Beginner) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Record(ctx context.Context, events []engine.MatchEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := insertMatches(ctx, tx, events); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertMatches(ctx context.Context, tx pgx.Tx, events []engine.MatchEvent) error {
	for _, ev := range events {
		id, err := newUUID()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, insertMatch,
			id,
			ev.Pair,
			ev.BuyOrder.ID,
			ev.SellOrder.ID,
			ev.BuyOrder.Owner,
			ev.SellOrder.Owner,
			numericFromDecimal(ev.Quantity),
			numericFromDecimal(ev.Price),
			int64(ev.BlockHeight),
			ev.MatchedAt,
		)
		if err != nil {
			return fmt.Errorf("insert match %s/%s: %w", ev.BuyOrder.ID, ev.SellOrder.ID, err)
		}
	}
	return nil
}

func newUUID() (pgtype.UUID, error) {
	uid, err := uuid.NewRandom()
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: uid, Valid: true}, nil
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   d.Coefficient(),
		Exp:   d.Exponent(),
		Valid: true,
	}
}

// Writer moves match batches off the scanner's path. Enqueue never blocks;
// when the buffer is full the batch is dropped and counted.
type Writer struct {
	rec     Recorder
	batches chan []engine.MatchEvent
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewWriter(rec Recorder, buffer int, log *zap.Logger, m *metrics.Metrics) *Writer {
	return &Writer{
		rec:     rec,
		batches: make(chan []engine.MatchEvent, buffer),
		log:     log,
		metrics: m,
	}
}

func (w *Writer) Enqueue(events []engine.MatchEvent) bool {
	if len(events) == 0 {
		return true
	}
	select {
	case w.batches <- events:
		return true
	default:
		w.metrics.JournalDrop()
		w.log.Warn("match journal buffer full, dropping batch",
			zap.String("pair", events[0].Pair),
			zap.Int("matches", len(events)))
		return false
	}
}

// Run records batches until ctx is done. Failed batches are logged and not
// retried.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-w.batches:
			if err := w.rec.Record(ctx, batch); err != nil {
				w.log.Error("persist matches failed",
					zap.String("pair", batch[0].Pair),
					zap.Int("matches", len(batch)),
					zap.Error(err))
			}
		}
	}
}
