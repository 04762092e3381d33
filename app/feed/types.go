package feed

import (
	"context"
	"time"
)

// Feed processing types

// Entry is one item of the source feed, as published.
type Entry struct {
	Title         string
	ArticleURL    string
	DiscussionURL string
}

// Item is an accepted entry. Items are created once by Store.Merge and never
// updated afterwards.
type Item struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	URL         string    `yaml:"url"`
	CommentsURL string    `yaml:"comments_url"`
	Content     string    `yaml:"content"` // empty when extraction failed
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// ContentExtractor turns an article URL into display HTML. An empty result
// means no content; the error is reserved for context cancellation.
type ContentExtractor interface {
	Get(ctx context.Context, url string) (string, error)
}

// PageSource is the subset of the page cache the extractors need.
type PageSource interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

const (
	NonHTMLContent      = "[Non-HTML content]"
	ClearReadRejected   = "[Clear Read API was not able to process the page]"
	ClearReadFailed     = "[Error processing with Clear Read API]"
	FailedFetchFallback = "[Failed to fetch page]"
)
