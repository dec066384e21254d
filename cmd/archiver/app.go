package main

import (
	"fmt"
	"log"

	"quotearchiver/internal/archive"
	"quotearchiver/internal/browser"
	"quotearchiver/internal/collector"
	"quotearchiver/internal/config"
	"quotearchiver/internal/feed"
	"quotearchiver/internal/listing"
	"quotearchiver/internal/notifier"
	"quotearchiver/internal/recorder"
	"quotearchiver/internal/store"
)

// app holds the wired components and the resources they own.
type app struct {
	Config    *config.Config
	Collector *collector.Collector
	Telegram  *notifier.TelegramNotifier

	feed     *feed.Client
	recorder recorder.Recorder
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	open := browser.Launcher(browser.Options{
		Headless:      cfg.HeadlessBrowser(),
		ExecPath:      cfg.Browser.ExecPath,
		UserAgent:     cfg.Browser.UserAgent,
		ActionTimeout: cfg.Browser.WaitTimeout,
	})

	fc := feed.NewClient(feed.Options{
		Timeout:           cfg.Feed.Timeout,
		RequestsPerSecond: cfg.Feed.RequestsPerSecond,
		Proxy:             cfg.Proxy,
		UserAgent:         cfg.Browser.UserAgent,
	})

	st := store.New()
	sel := listing.NewSelector(open, listing.Options{
		URL:      cfg.ListingURL(),
		Panel:    cfg.Source.Panel,
		Heading:  cfg.Source.Heading,
		PageSize: cfg.Source.PageSizeOption,
		Limit:    cfg.Source.MaxInstruments,
		Timeout:  cfg.Browser.WaitTimeout,
	})
	pl := archive.NewPipeline(st, open, fc, archive.Options{
		Root:          cfg.Paths.ArchiveRoot,
		DataURL:       cfg.Source.DataURL,
		ChartSelector: cfg.Source.ChartSelector,
		RenderTimeout: cfg.Browser.WaitTimeout,
	})

	rec := openRecorder(cfg)
	col := collector.NewCollector(st, sel, pl, rec, cfg.Paths.Watchlist)
	a := &app{Config: cfg, Collector: col, feed: fc, recorder: rec}
	if cfg.Telegram.BotToken != "" {
		a.Telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		col.Notifier = a.Telegram
		log.Println("[INFO] telegram run reports enabled")
	}

	log.Printf("[INFO] watchlist=%s archive=%s", cfg.Paths.Watchlist, cfg.Paths.ArchiveRoot)
	return a, nil
}

func openRecorder(cfg *config.Config) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		return recorder.NewNoopRecorder()
	}
	return sr
}

// Close releases the feed client and the recorder.
func (a *app) Close() {
	if err := a.feed.Close(); err != nil {
		log.Printf("[WARN] close feed client: %v", err)
	}
	if err := a.recorder.Close(); err != nil {
		log.Printf("[WARN] close recorder: %v", err)
	}
}
