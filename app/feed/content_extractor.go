package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// ReadabilityExtractor extracts the main article from a cached page locally.
type ReadabilityExtractor struct {
	pages  PageSource
	logger *slog.Logger
}

func NewReadabilityExtractor(pages PageSource, logger *slog.Logger) *ReadabilityExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadabilityExtractor{pages: pages, logger: logger}
}

func (e *ReadabilityExtractor) Get(ctx context.Context, pageURL string) (string, error) {
	data, err := e.pages.Get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}

	if !bytes.Contains(bytes.ToLower(data), []byte("<html")) {
		e.logger.Debug("Skipping non-HTML page", "url", pageURL, "bytes", len(data))
		return NonHTMLContent, nil
	}

	content, err := e.Run(data, pageURL)
	if err != nil {
		e.logger.Info("Error extracting content", "url", pageURL, "error", err)
		return "", nil
	}

	return content, nil
}

// Run extracts and sanitizes the article in an HTML document.
func (e *ReadabilityExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	enc, name, _ := charset.DetermineEncoding(data, "")
	reader := transform.NewReader(bytes.NewReader(data), enc.NewDecoder())

	base, _ := url.Parse(pageURL)

	article, err := readability.FromReader(reader, base)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	content, err := Sanitize(article.Content)
	if err != nil {
		return "", err
	}

	e.logger.Debug("Content extracted successfully",
		"url", pageURL,
		"title", article.Title,
		"charset", name,
		"content_length", len(content))

	return content, nil
}
