package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lysyi3m/hn-comb/app/feed"
	"github.com/lysyi3m/hn-comb/app/fileutil"
)

// StdoutOutput selects standard output instead of a file.
const StdoutOutput = "-"

type FeedSource interface {
	Run(ctx context.Context, url string) ([]feed.Entry, error)
}

type GenerateFeedTask struct {
	Task
	FeedURL    string
	SelfURL    string
	Output     string
	source     FeedSource
	store      *feed.Store
	extractor  feed.ContentExtractor
	prefetcher *Prefetcher
	generator  *feed.Generator
	status     *RunStatus
	stdout     io.Writer
	logger     *slog.Logger
}

type GenerateFeedDeps struct {
	Source     FeedSource
	Store      *feed.Store
	Extractor  feed.ContentExtractor
	Prefetcher *Prefetcher
	Generator  *feed.Generator
	Status     *RunStatus // optional
	Stdout     io.Writer  // defaults to os.Stdout
}

func NewGenerateFeedTask(feedURL, selfURL, output string, deps GenerateFeedDeps, logger *slog.Logger) *GenerateFeedTask {
	if logger == nil {
		logger = slog.Default()
	}
	stdout := deps.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	return &GenerateFeedTask{
		Task:       NewTask(TaskTypeGenerateFeed, feedURL),
		FeedURL:    feedURL,
		SelfURL:    selfURL,
		Output:     output,
		source:     deps.Source,
		store:      deps.Store,
		extractor:  deps.Extractor,
		prefetcher: deps.Prefetcher,
		generator:  deps.Generator,
		status:     deps.Status,
		stdout:     stdout,
		logger:     logger,
	}
}

// Execute runs one pass of the pipeline: read the source feed, merge new
// entries into the store, and publish the output when anything changed.
func (t *GenerateFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	published, items, err := t.run(ctx)

	if t.status != nil {
		t.status.record(items, published, err)
	}

	if err != nil {
		return err
	}

	t.logger.Info("Task completed",
		"type", "GenerateFeed",
		"feed", t.FeedURL,
		"duration", t.GetDuration(),
		"items", items,
		"published", published)

	return nil
}

func (t *GenerateFeedTask) run(ctx context.Context) (bool, int, error) {
	entries, err := t.source.Run(ctx, t.FeedURL)
	if err != nil {
		return false, 0, fmt.Errorf("failed to read source feed: %w", err)
	}

	if err := t.store.Load(); err != nil {
		return false, 0, err
	}

	if err := t.store.Merge(ctx, entries, t.extractor); err != nil {
		return false, 0, fmt.Errorf("failed to merge entries: %w", err)
	}

	changed := t.store.Changed()
	items := t.store.Items()

	if err := t.store.Save(); err != nil {
		return false, len(items), err
	}

	if !changed && t.outputExists() {
		t.logger.Debug("No new items, output left untouched", "output", t.Output)
		return false, len(items), nil
	}

	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	if err := t.prefetcher.Run(ctx, urls); err != nil {
		return false, len(items), err
	}

	data, err := t.generator.Run(t.SelfURL, items)
	if err != nil {
		return false, len(items), err
	}

	if err := t.write(data); err != nil {
		return false, len(items), err
	}

	return true, len(items), nil
}

func (t *GenerateFeedTask) outputExists() bool {
	if t.Output == StdoutOutput {
		return false
	}
	_, err := os.Stat(t.Output)
	return err == nil
}

func (t *GenerateFeedTask) write(data []byte) error {
	if t.Output == StdoutOutput {
		if _, err := t.stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write feed to stdout: %w", err)
		}
		return nil
	}

	if err := fileutil.WriteAtomic(t.Output, data, 0644); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}

	t.logger.Info("Feed published", "output", t.Output, "bytes", len(data))

	return nil
}
