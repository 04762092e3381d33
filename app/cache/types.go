package cache

import (
	"context"
	"net/http"
	"regexp"
	"time"
)

type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeHTTPError      Outcome = "http_error"
	OutcomeTransportError Outcome = "transport_error"
)

// FetchRecord describes one network attempt made by the page cache.
type FetchRecord struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Outcome    Outcome
	Error      string
	Bytes      int
	Duration   time.Duration
	FetchedAt  time.Time
}

type FetchRecorder interface {
	RecordFetch(ctx context.Context, record FetchRecord) error
}

type Options struct {
	UserAgent       string
	ConnectTimeout  time.Duration
	TransferTimeout time.Duration

	// URLs matching ExcludePattern are display-only links and are never fetched.
	ExcludePattern *regexp.Regexp

	InsecureTLS bool
	Recorder    FetchRecorder // optional
	HTTPClient  *http.Client  // optional, replaces the client built from the timeouts
}
