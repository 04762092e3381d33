package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/hn-comb/app/feed"
)

const DefaultPrefetchTimeout = 2 * time.Minute

// Prefetcher warms the page cache for a set of URLs concurrently, bounded by
// a global deadline.
type Prefetcher struct {
	pages   feed.PageSource
	timeout time.Duration
	limit   int // 0 means one goroutine per URL
	logger  *slog.Logger
}

func NewPrefetcher(pages feed.PageSource, timeout time.Duration, limit int, logger *slog.Logger) *Prefetcher {
	if timeout <= 0 {
		timeout = DefaultPrefetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefetcher{pages: pages, timeout: timeout, limit: limit, logger: logger}
}

// Run returns once every URL has been attempted or the deadline passed.
// Outstanding fetches are cancelled at the deadline and are not recorded as
// failures. The only error is the parent context's.
func (p *Prefetcher) Run(ctx context.Context, urls []string) error {
	unique := dedupeURLs(urls)
	if len(unique) == 0 {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}

	started := time.Now()

	for _, u := range unique {
		g.Go(func() error {
			if _, err := p.pages.Get(gctx, u); err != nil {
				p.logger.Debug("Prefetch interrupted", "url", u, "error", err)
			}
			return nil
		})
	}

	g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		p.logger.Warn("Timeout waiting for all items to be fetched", "urls", len(unique), "timeout", p.timeout)
		return nil
	}

	p.logger.Debug("Prefetch completed", "urls", len(unique), "duration", time.Since(started))

	return nil
}

func dedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))

	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}

	return unique
}
