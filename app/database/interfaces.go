package database

import (
	"context"
	"time"

	"github.com/lysyi3m/hn-comb/app/cache"
)

type FetchJournal interface {
	RecordFetch(ctx context.Context, record cache.FetchRecord) error
	GetFetchStats(ctx context.Context, since time.Time) (*FetchStats, error)
	DeleteFetchesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
