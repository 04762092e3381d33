package cfg

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/lysyi3m/hn-comb/app/cache"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Pipeline
	Output    string `short:"o" long:"output" env:"OUTPUT" default:"-" description:"Atom output file, '-' for standard output"`
	Processor string `short:"p" long:"processor" env:"EXTRACTOR" default:"readability" choice:"readability" choice:"clear_read" description:"Content extractor"`
	IDPrefix  string `long:"id-prefix" env:"ID_PREFIX" default:"tag:hn-comb,2011:hackernews-" description:"Prefix for Atom entry ids"`

	// Storage
	CacheDir  string `long:"cache-directory" env:"CACHE_DIR" default:"/tmp/hn-comb" description:"Directory for cached pages and the item store"`
	ItemStore string `long:"item-store" env:"ITEM_STORE" description:"Item store file (default: <cache-directory>/item_cache.yml)"`
	Journal   string `long:"journal" env:"JOURNAL" description:"Fetch journal database (default: <cache-directory>/journal.db)"`
	NoJournal bool   `long:"no-journal" env:"NO_JOURNAL" description:"Disable the fetch journal"`

	// Fetching
	ClearReadAPI        string        `long:"clear-read-api" env:"CLEAR_READ_API" default:"http://api.thequeue.org/v1/clear" description:"Clear Read API endpoint"`
	ExcludePattern      string        `long:"exclude-pattern" env:"EXCLUDE_PATTERN" description:"Regular expression of URLs never fetched (default: Hacker News discussion pages)"`
	ConnectTimeout      time.Duration `long:"connect-timeout" env:"CONNECT_TIMEOUT" default:"10s" description:"Connect timeout for page fetches"`
	TransferTimeout     time.Duration `long:"transfer-timeout" env:"TRANSFER_TIMEOUT" default:"30s" description:"Transfer timeout for page fetches"`
	PrefetchTimeout     time.Duration `long:"prefetch-timeout" env:"PREFETCH_TIMEOUT" default:"120s" description:"Overall deadline for warming the page cache"`
	PrefetchConcurrency int           `long:"prefetch-concurrency" env:"PREFETCH_CONCURRENCY" default:"0" description:"Maximum concurrent prefetches (0 = unlimited)"`
	InsecureTLS         bool          `long:"insecure-tls" env:"INSECURE_TLS" description:"Skip TLS certificate verification for page fetches"`

	// Serve mode
	Serve        bool   `long:"serve" env:"SERVE" description:"Run as a long-lived HTTP service"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	Schedule     string `long:"schedule" env:"SCHEDULE" default:"@every 15m" description:"Cron schedule for feed regeneration in serve mode"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"HN Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for log timestamps (e.g., UTC, America/New_York)"`
	Verbose   bool   `short:"v" long:"verbose" description:"Enable debug logging"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Args struct {
		FeedURL string `positional-arg-name:"FEED-URL" description:"Source RSS feed URL (http(s):// or file://)"`
		SelfURL string `positional-arg-name:"SELF-URL" description:"Public URL of the generated feed"`
	} `positional-args:"yes" required:"yes"`
}

// Load reads .env, the environment and the command line. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := LoadArgs(os.Args[1:])
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

// LoadArgs parses args without touching .env or process-wide settings.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.Usage = "[OPTIONS] FEED-URL SELF-URL"

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	exclude := cache.DefaultExcludePattern
	if raw.ExcludePattern != "" {
		re, err := regexp.Compile(raw.ExcludePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
		exclude = re
	}

	if raw.PrefetchConcurrency < 0 {
		return nil, fmt.Errorf("prefetch concurrency must not be negative")
	}

	cfg := &Cfg{
		FeedURL:             raw.Args.FeedURL,
		SelfURL:             raw.Args.SelfURL,
		Output:              raw.Output,
		Processor:           raw.Processor,
		IDPrefix:            raw.IDPrefix,
		CacheDir:            raw.CacheDir,
		ItemStore:           cmp.Or(raw.ItemStore, filepath.Join(raw.CacheDir, "item_cache.yml")),
		ClearReadAPI:        raw.ClearReadAPI,
		ExcludePattern:      exclude,
		ConnectTimeout:      raw.ConnectTimeout,
		TransferTimeout:     raw.TransferTimeout,
		PrefetchTimeout:     raw.PrefetchTimeout,
		PrefetchConcurrency: raw.PrefetchConcurrency,
		InsecureTLS:         raw.InsecureTLS,
		Serve:               raw.Serve,
		Port:                raw.Port,
		Schedule:            raw.Schedule,
		APIAccessKey:        raw.APIAccessKey,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug || raw.Verbose,
		Version:             GetVersion(),
	}

	if !raw.NoJournal {
		cfg.Journal = cmp.Or(raw.Journal, filepath.Join(raw.CacheDir, "journal.db"))
	}

	// The HTTP server serves the feed from disk.
	if cfg.Serve && cfg.Output == "-" {
		cfg.Output = filepath.Join(cfg.CacheDir, "hn.atom")
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
