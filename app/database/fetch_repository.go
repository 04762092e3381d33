package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lysyi3m/hn-comb/app/cache"
)

// FetchRepository handles database operations for the page fetch journal
type FetchRepository struct {
	db *DB
}

// NewFetchRepository creates a new fetch repository
func NewFetchRepository(db *DB) *FetchRepository {
	return &FetchRepository{db: db}
}

// RecordFetch stores one network attempt made by the page cache
func (r *FetchRepository) RecordFetch(ctx context.Context, record cache.FetchRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO page_fetches (
			url, status_code, outcome, error, bytes, duration_ms, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.URL, record.StatusCode, string(record.Outcome), record.Error,
		record.Bytes, record.Duration.Milliseconds(), record.FetchedAt.UnixMilli())

	if err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}

	return nil
}

// GetFetchStats aggregates fetches made at or after since
func (r *FetchRepository) GetFetchStats(ctx context.Context, since time.Time) (*FetchStats, error) {
	stats := &FetchStats{Since: since}
	var lastFetched sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(bytes), 0),
			COALESCE(AVG(duration_ms), 0),
			MAX(fetched_at)
		FROM page_fetches
		WHERE fetched_at >= ?
	`, string(cache.OutcomeSuccess), string(cache.OutcomeHTTPError), string(cache.OutcomeTransportError),
		since.UnixMilli()).Scan(
		&stats.Total,
		&stats.Successes,
		&stats.HTTPErrors,
		&stats.TransportErrors,
		&stats.Bytes,
		&stats.AvgDurationMs,
		&lastFetched,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get fetch stats: %w", err)
	}

	if lastFetched.Valid {
		t := time.UnixMilli(lastFetched.Int64).UTC()
		stats.LastFetchedAt = &t
	}

	return stats, nil
}

// DeleteFetchesBefore prunes journal rows older than cutoff
func (r *FetchRepository) DeleteFetchesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM page_fetches WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete fetches: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted fetches: %w", err)
	}

	return deleted, nil
}
