package cfg

import (
	"regexp"
	"time"
)

const (
	ProcessorReadability = "readability"
	ProcessorClearRead   = "clear_read"
)

type Cfg struct {
	// Pipeline
	FeedURL   string
	SelfURL   string
	Output    string
	Processor string
	IDPrefix  string

	// Storage
	CacheDir  string
	ItemStore string
	Journal   string // empty when the journal is disabled

	// Fetching
	ClearReadAPI        string
	ExcludePattern      *regexp.Regexp
	ConnectTimeout      time.Duration
	TransferTimeout     time.Duration
	PrefetchTimeout     time.Duration
	PrefetchConcurrency int
	InsecureTLS         bool

	// Serve mode
	Serve        bool
	Port         string
	Schedule     string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
