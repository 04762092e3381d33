package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/hn-comb/app/cache"
	"github.com/lysyi3m/hn-comb/app/fileutil"
)

const (
	DefaultClearReadAPI = "http://api.thequeue.org/v1/clear"

	cleanExtension = ".html"
)

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&amp;", "&",
)

type clearReadResponse struct {
	Status string `json:"status"`
	Item   struct {
		Description string `json:"description"`
	} `json:"item"`
}

// RemoteCleanupExtractor delegates extraction to the Clear Read API and keeps
// successful results in its own cache directory.
type RemoteCleanupExtractor struct {
	dir     string
	api     string
	client  *http.Client
	agent   string
	timeout time.Duration
	logger  *slog.Logger
}

type RemoteOptions struct {
	API        string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewRemoteCleanupExtractor(dir string, opts RemoteOptions, logger *slog.Logger) (*RemoteCleanupExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clean cache directory: %w", err)
	}

	api := opts.API
	if api == "" {
		api = DefaultClearReadAPI
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = cache.DefaultConnectTimeout + cache.DefaultTransferTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	if n, err := cache.SweepDir(dir, cleanExtension, cache.Expiry, time.Now(), logger); err != nil {
		logger.Warn("Failed to sweep clean cache", "dir", dir, "error", err)
	} else if n > 0 {
		logger.Info("Purged expired clean cache records", "dir", dir, "count", n)
	}

	return &RemoteCleanupExtractor{
		dir:     dir,
		api:     api,
		client:  client,
		agent:   opts.UserAgent,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (e *RemoteCleanupExtractor) Get(ctx context.Context, pageURL string) (string, error) {
	path := filepath.Join(e.dir, cache.Key(pageURL)+cleanExtension)

	if data, err := os.ReadFile(path); err == nil {
		e.logger.Debug("Clean cache hit", "url", pageURL)
		return string(data), nil
	}

	e.logger.Info("Cleaning page", "url", pageURL)

	result, err := e.request(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.logger.Info("Error cleaning page", "url", pageURL, "error", err)
		return ClearReadFailed, nil
	}

	if result.Status != "success" {
		e.logger.Info("Clear Read API rejected page", "url", pageURL, "status", result.Status)
		return ClearReadRejected, nil
	}

	content := entityReplacer.Replace(result.Item.Description)

	if err := fileutil.WriteAtomic(path, []byte(content), 0644); err != nil {
		e.logger.Warn("Failed to write clean cache record", "url", pageURL, "error", err)
	}

	return content, nil
}

func (e *RemoteCleanupExtractor) request(ctx context.Context, pageURL string) (*clearReadResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	endpoint := e.api + "?url=" + url.QueryEscape(pageURL) + "&format=json"

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if e.agent != "" {
		req.Header.Set("User-Agent", e.agent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Clear Read API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, cache.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result clearReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
