package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/hn-comb/app/fileutil"
)

// NormalizeURL drops the fragment; everything else is kept as given.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Key returns the file-name-safe content address of a URL.
func Key(rawURL string) string {
	hash := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(hash[:])
}

// SweepDir removes files in dir with the given extension, plus leftover temp
// files, whose modification time is older than maxAge.
func SweepDir(dir, extension string, maxAge time.Duration, now time.Time, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := now.Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, extension) && !fileutil.IsTempFile(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				logger.Warn("Failed to purge cache file", "file", name, "error", err)
				continue
			}
			logger.Debug("Purged old cache file", "file", name, "modified_at", info.ModTime())
			removed++
		}
	}

	return removed, nil
}
