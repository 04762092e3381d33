package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/hn-comb/app/api"
	"github.com/lysyi3m/hn-comb/app/cache"
	"github.com/lysyi3m/hn-comb/app/cfg"
	"github.com/lysyi3m/hn-comb/app/database"
	"github.com/lysyi3m/hn-comb/app/feed"
	"github.com/lysyi3m/hn-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	// Logs go to stderr; stdout may carry the feed.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appCfg, logger); err != nil {
		logger.Error("HN Comb failed", "error", err)
		stop()
		os.Exit(1)
	}
}

type components struct {
	pages     *cache.PageCache
	journal   database.FetchJournal
	parser    *feed.Parser
	store     *feed.Store
	extractor feed.ContentExtractor
	prefetch  *tasks.Prefetcher
	generator *feed.Generator
	closeDB   func()
}

func run(ctx context.Context, appCfg *cfg.Cfg, logger *slog.Logger) error {
	c, err := build(appCfg, logger)
	if err != nil {
		return err
	}
	defer c.closeDB()

	if !appCfg.Serve {
		return c.newGenerateTask(appCfg, nil, logger).Execute(ctx)
	}

	return serve(ctx, appCfg, c, logger)
}

func build(appCfg *cfg.Cfg, logger *slog.Logger) (*components, error) {
	c := &components{closeDB: func() {}}

	var recorder cache.FetchRecorder
	if appCfg.Journal != "" {
		repo, closeDB, err := openJournal(appCfg.Journal, logger)
		if err != nil {
			logger.Warn("Fetch journal disabled", "path", appCfg.Journal, "error", err)
		} else {
			c.journal = repo
			c.closeDB = closeDB
			recorder = repo
		}
	}

	pages, err := cache.New(appCfg.CacheDir, cache.Options{
		UserAgent:       appCfg.UserAgent,
		ConnectTimeout:  appCfg.ConnectTimeout,
		TransferTimeout: appCfg.TransferTimeout,
		ExcludePattern:  appCfg.ExcludePattern,
		InsecureTLS:     appCfg.InsecureTLS,
		Recorder:        recorder,
	}, logger)
	if err != nil {
		c.closeDB()
		return nil, err
	}
	c.pages = pages

	switch appCfg.Processor {
	case cfg.ProcessorClearRead:
		remote, err := feed.NewRemoteCleanupExtractor(filepath.Join(appCfg.CacheDir, "clean"), feed.RemoteOptions{
			API:       appCfg.ClearReadAPI,
			UserAgent: appCfg.UserAgent,
			Timeout:   appCfg.ConnectTimeout + appCfg.TransferTimeout,
		}, logger)
		if err != nil {
			c.closeDB()
			return nil, err
		}
		c.extractor = remote
	default:
		c.extractor = feed.NewReadabilityExtractor(pages, logger)
	}

	c.parser = feed.NewParser(nil, appCfg.UserAgent, appCfg.ConnectTimeout+appCfg.TransferTimeout, logger)
	c.store = feed.NewStore(appCfg.ItemStore, logger)
	c.prefetch = tasks.NewPrefetcher(pages, appCfg.PrefetchTimeout, appCfg.PrefetchConcurrency, logger)
	c.generator = feed.NewGenerator(appCfg.IDPrefix)

	logger.Debug("Components initialized",
		"cache_dir", appCfg.CacheDir,
		"item_store", appCfg.ItemStore,
		"processor", appCfg.Processor,
		"journal", c.journal != nil)

	return c, nil
}

func openJournal(path string, logger *slog.Logger) (*database.FetchRepository, func(), error) {
	db, err := database.NewConnection(path)
	if err != nil {
		return nil, nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Debug("Fetch journal ready", "path", path, "schema_version", version, "dirty", dirty)

	return database.NewFetchRepository(db), func() { db.Close() }, nil
}

func (c *components) newGenerateTask(appCfg *cfg.Cfg, status *tasks.RunStatus, logger *slog.Logger) *tasks.GenerateFeedTask {
	return tasks.NewGenerateFeedTask(appCfg.FeedURL, appCfg.SelfURL, appCfg.Output, tasks.GenerateFeedDeps{
		Source:     c.parser,
		Store:      c.store,
		Extractor:  c.extractor,
		Prefetcher: c.prefetch,
		Generator:  c.generator,
		Status:     status,
	}, logger)
}

func serve(ctx context.Context, appCfg *cfg.Cfg, c *components, logger *slog.Logger) error {
	logger.Info("Starting HN Comb server", "version", appCfg.Version, "port", appCfg.Port)

	status := tasks.NewRunStatus()

	newRun := func() tasks.TaskInterface {
		return c.newGenerateTask(appCfg, status, logger)
	}
	newSweep := func() tasks.TaskInterface {
		return tasks.NewSweepCacheTask(appCfg.CacheDir, c.pages, c.journal, logger)
	}

	scheduler := tasks.NewScheduler(newRun, newSweep, tasks.SchedulerOptions{
		Schedule: appCfg.Schedule,
	}, logger)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	handler := api.NewHandler(appCfg.Output, status, c.journal, scheduler, logger)
	httpServer := api.NewHTTPServer(api.NewServer(handler, appCfg.APIAccessKey, appCfg.Version), appCfg.Port)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr, "feed", "/feed")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	} else {
		logger.Info("HTTP server stopped")
	}

	return serveErr
}
