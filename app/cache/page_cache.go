package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/hn-comb/app/fileutil"
)

const (
	Expiry    = 14 * 24 * time.Hour
	Extension = ".cache"

	DefaultConnectTimeout  = 10 * time.Second
	DefaultTransferTimeout = 30 * time.Second

	MaxBodySize = 10 << 20
)

// DefaultExcludePattern matches Hacker News discussion pages.
var DefaultExcludePattern = regexp.MustCompile(`^https?://news\.ycombinator\.com/item\?`)

// PageCache is a durable cache of raw page bodies keyed by URL. A missing
// record means the URL was never attempted; an empty record means the fetch
// failed and must not be retried until the record expires.
type PageCache struct {
	dir            string
	client         *http.Client
	userAgent      string
	requestTimeout time.Duration
	exclude        *regexp.Regexp
	recorder       FetchRecorder
	group          singleflight.Group
	logger         *slog.Logger
	now            func() time.Time
}

func New(dir string, opts Options, logger *slog.Logger) (*PageCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	transferTimeout := opts.TransferTimeout
	if transferTimeout <= 0 {
		transferTimeout = DefaultTransferTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   connectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   connectTimeout,
				ResponseHeaderTimeout: transferTimeout,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				TLSClientConfig:       &tls.Config{InsecureSkipVerify: opts.InsecureTLS},
			},
		}
	}

	c := &PageCache{
		dir:            dir,
		client:         client,
		userAgent:      opts.UserAgent,
		requestTimeout: connectTimeout + transferTimeout,
		exclude:        opts.ExcludePattern,
		recorder:       opts.Recorder,
		logger:         logger,
		now:            time.Now,
	}

	if _, err := c.Sweep(context.Background()); err != nil {
		logger.Warn("Failed to sweep page cache", "dir", dir, "error", err)
	}

	return c, nil
}

// Get returns the cached body for rawURL, fetching it on first use. A nil body
// with a nil error means there is no content (excluded URL, failed fetch, or a
// memoized failure). The only error returned is the context's own.
func (c *PageCache) Get(ctx context.Context, rawURL string) ([]byte, error) {
	pageURL := NormalizeURL(rawURL)

	if c.exclude != nil && c.exclude.MatchString(pageURL) {
		return nil, nil
	}

	path := c.Path(pageURL)

	if data, ok := c.read(path); ok {
		c.logger.Debug("Page cache hit", "url", pageURL, "bytes", len(data))
		return nonEmpty(data), nil
	}

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		// Another caller may have finished the same fetch while we waited.
		if data, ok := c.read(path); ok {
			return data, nil
		}
		return c.fetch(ctx, pageURL, path)
	})
	if err != nil {
		return nil, err
	}

	data, _ := v.([]byte)
	return nonEmpty(data), nil
}

// Path returns the record location for a URL.
func (c *PageCache) Path(rawURL string) string {
	return filepath.Join(c.dir, Key(rawURL)+Extension)
}

// Sweep deletes records older than Expiry whether or not they are requested again.
func (c *PageCache) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed, err := SweepDir(c.dir, Extension, Expiry, c.now(), c.logger)
	if err != nil {
		return removed, fmt.Errorf("failed to sweep %s: %w", c.dir, err)
	}

	if removed > 0 {
		c.logger.Info("Purged expired cache records", "dir", c.dir, "count", removed)
	}

	return removed, nil
}

func (c *PageCache) read(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Failed to read cache record", "file", path, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (c *PageCache) fetch(ctx context.Context, pageURL, path string) ([]byte, error) {
	c.logger.Info("Fetching page", "url", pageURL)

	started := c.now()
	body, status, err := c.download(ctx, pageURL)

	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	record := FetchRecord{
		URL:        pageURL,
		StatusCode: status,
		Outcome:    OutcomeSuccess,
		Bytes:      len(body),
		Duration:   time.Since(started),
		FetchedAt:  started,
	}

	switch {
	case err != nil:
		record.Outcome = OutcomeTransportError
		record.Error = err.Error()
		body = nil
		c.logger.Info("Error fetching page", "url", pageURL, "error", err)
	case status != http.StatusOK:
		record.Outcome = OutcomeHTTPError
		record.Error = fmt.Sprintf("HTTP error: %d", status)
		body = nil
		c.logger.Info("Page fetch failed", "url", pageURL, "status", status)
	default:
		c.logger.Debug("Page fetched", "url", pageURL, "bytes", len(body), "duration", record.Duration)
	}

	if werr := fileutil.WriteAtomic(path, body, 0644); werr != nil {
		c.logger.Warn("Failed to write cache record", "url", pageURL, "error", werr)
	}

	if c.recorder != nil {
		if rerr := c.recorder.RecordFetch(ctx, record); rerr != nil {
			c.logger.Warn("Failed to record fetch", "url", pageURL, "error", rerr)
		}
	}

	return body, nil
}

func (c *PageCache) download(ctx context.Context, pageURL string) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, resp.StatusCode, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}

func nonEmpty(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return data
}
