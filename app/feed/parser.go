package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
)

const maxFeedSize = 10 << 20

// Parser loads the source feed and lists its entries in document order.
type Parser struct {
	client       *http.Client
	userAgent    string
	timeout      time.Duration
	gofeedParser *gofeed.Parser
	logger       *slog.Logger
}

func NewParser(client *http.Client, userAgent string, timeout time.Duration, logger *slog.Logger) *Parser {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		client:       client,
		userAgent:    userAgent,
		timeout:      timeout,
		gofeedParser: gofeed.NewParser(),
		logger:       logger,
	}
}

// Run fetches feedURL (http(s) or file://) and parses it. Any failure here is
// fatal for the run.
func (p *Parser) Run(ctx context.Context, feedURL string) ([]Entry, error) {
	data, err := p.load(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	entries, err := p.Parse(data)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Source feed parsed", "url", feedURL, "entries", len(entries))

	return entries, nil
}

func (p *Parser) Parse(data []byte) ([]Entry, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS:
		return p.parseRSS(data)
	default:
		return p.parseUniversal(data)
	}
}

// parseRSS uses the RSS parser directly since the universal one drops <comments>.
func (p *Parser) parseRSS(data []byte) ([]Entry, error) {
	rssParser := &rss.Parser{}
	feed, err := rssParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		entries = append(entries, Entry{
			Title:         strings.TrimSpace(item.Title),
			ArticleURL:    link,
			DiscussionURL: cmp.Or(strings.TrimSpace(item.Comments), link),
		})
	}

	return entries, nil
}

func (p *Parser) parseUniversal(data []byte) ([]Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		entries = append(entries, Entry{
			Title:         strings.TrimSpace(item.Title),
			ArticleURL:    link,
			DiscussionURL: link,
		})
	}

	return entries, nil
}

func (p *Parser) load(ctx context.Context, feedURL string) ([]byte, error) {
	if path, ok := strings.CutPrefix(feedURL, "file://"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read feed file: %w", err)
		}
		return data, nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch feed: HTTP error: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	return data, nil
}
