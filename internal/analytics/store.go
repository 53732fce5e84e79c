package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/qianzhou/goso/pkg/postgres"
)

// Store persists daily per-kind query aggregates in PostgreSQL.
//
// It requires a `query_stats` table:
//
//	CREATE TABLE query_stats (
//	    day        DATE NOT NULL,
//	    kind       TEXT NOT NULL,
//	    requests   BIGINT NOT NULL DEFAULT 0,
//	    failures   BIGINT NOT NULL DEFAULT 0,
//	    latency_ms BIGINT NOT NULL DEFAULT 0,
//	    PRIMARY KEY (day, kind)
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates an analytics store over the given client.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// RecordBatch folds a batch of events into the daily aggregates.
func (s *Store) RecordBatch(ctx context.Context, events []QueryEvent) error {
	type key struct {
		day  string
		kind EventKind
	}
	type agg struct {
		requests  int64
		failures  int64
		latencyMs int64
	}
	aggs := make(map[key]*agg)
	for _, e := range events {
		k := key{day: e.Timestamp.UTC().Format("2006-01-02"), kind: e.Kind}
		a, ok := aggs[k]
		if !ok {
			a = &agg{}
			aggs[k] = a
		}
		a.requests++
		if e.Failed {
			a.failures++
		}
		a.latencyMs += e.LatencyMs
	}

	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		for k, a := range aggs {
			day, err := time.Parse("2006-01-02", k.day)
			if err != nil {
				return fmt.Errorf("parsing aggregate day: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO query_stats (day, kind, requests, failures, latency_ms)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (day, kind) DO UPDATE SET
				   requests   = query_stats.requests + EXCLUDED.requests,
				   failures   = query_stats.failures + EXCLUDED.failures,
				   latency_ms = query_stats.latency_ms + EXCLUDED.latency_ms`,
				day, string(k.kind), a.requests, a.failures, a.latencyMs,
			)
			if err != nil {
				return fmt.Errorf("upserting query stats: %w", err)
			}
		}
		return nil
	})
}
