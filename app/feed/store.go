package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/hn-comb/app/cache"
	"github.com/lysyi3m/hn-comb/app/fileutil"
)

const ItemMaxAge = 24 * time.Hour

var itemIDPattern = regexp.MustCompile(`id=(\d+)`)

// Store is the persisted list of accepted items, in acceptance order.
// It assumes a single writer.
type Store struct {
	path    string
	items   []Item
	index   map[string]struct{}
	changed bool
	logger  *slog.Logger
	now     func() time.Time
}

func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		index:  make(map[string]struct{}),
		logger: logger,
		now:    time.Now,
	}
}

// Load reads the store and drops items older than ItemMaxAge. A missing file
// is an empty store; a malformed one is an error.
func (s *Store) Load() error {
	s.items = nil
	s.index = make(map[string]struct{})
	s.changed = false

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read item store: %w", err)
	}

	var items []Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to parse item store %s: %w", s.path, err)
	}

	cutoff := s.now().Add(-ItemMaxAge)
	for _, item := range items {
		if item.UpdatedAt.Before(cutoff) {
			continue
		}
		s.items = append(s.items, item)
		s.index[item.CommentsURL] = struct{}{}
	}

	if dropped := len(items) - len(s.items); dropped > 0 {
		s.logger.Info("Expired items removed from store", "count", dropped)
	}

	s.logger.Debug("Item store loaded", "path", s.path, "items", len(s.items))

	return nil
}

// Merge appends entries not seen before, extracting their content. Known items
// are left untouched. Only cancellation aborts a merge.
func (s *Store) Merge(ctx context.Context, entries []Entry, extractor ContentExtractor) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		discussionURL := strings.TrimSpace(entry.DiscussionURL)
		if discussionURL == "" {
			s.logger.Warn("Skipping entry without discussion link", "title", entry.Title)
			continue
		}

		if _, ok := s.index[discussionURL]; ok {
			continue
		}

		articleURL := ""
		if entry.ArticleURL != "" {
			articleURL = cache.NormalizeURL(entry.ArticleURL)
		}

		content := ""
		if articleURL != "" {
			var err error
			content, err = extractor.Get(ctx, articleURL)
			if err != nil {
				return err
			}
		}

		item := Item{
			ID:          ItemID(discussionURL),
			Title:       TitleWithDomain(entry.Title, articleURL),
			URL:         articleURL,
			CommentsURL: discussionURL,
			Content:     content,
			UpdatedAt:   s.now().UTC().Truncate(time.Second),
		}

		s.items = append(s.items, item)
		s.index[discussionURL] = struct{}{}
		s.changed = true

		s.logger.Info("Item added", "id", item.ID, "url", item.URL, "has_content", content != "")
	}

	return nil
}

func (s *Store) Save() error {
	items := s.items
	if items == nil {
		items = []Item{}
	}

	data, err := yaml.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode item store: %w", err)
	}

	if err := fileutil.WriteAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save item store: %w", err)
	}

	s.changed = false
	return nil
}

// Changed reports whether Merge added anything since the last Load or Save.
func (s *Store) Changed() bool {
	return s.changed
}

func (s *Store) Items() []Item {
	items := make([]Item, len(s.items))
	copy(items, s.items)
	return items
}

// ItemID returns the numeric id of a discussion URL, or the URL itself.
func ItemID(discussionURL string) string {
	if m := itemIDPattern.FindStringSubmatch(discussionURL); m != nil {
		return m[1]
	}
	return discussionURL
}

// DisplayDomain returns the registrable domain of rawURL, the bare host when
// there is none, or "" when the URL has no host.
func DisplayDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}

	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// TitleWithDomain appends " [domain]" unless the title already names it.
func TitleWithDomain(title, articleURL string) string {
	domain := DisplayDomain(articleURL)
	if domain == "" || strings.Contains(title, "["+domain) {
		return title
	}
	return title + " [" + domain + "]"
}
