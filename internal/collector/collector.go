package collector

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"quotearchiver/internal/archive"
	"quotearchiver/internal/listing"
	"quotearchiver/internal/model"
	"quotearchiver/internal/notifier"
	"quotearchiver/internal/recorder"
	"quotearchiver/internal/store"
)

// Notifier delivers a run report.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Collector runs one harvest: it loads or builds the watchlist, then makes
// sure every artifact for the run date is on disk.
type Collector struct {
	Store         *store.Store
	Selector      *listing.Selector
	Pipeline      *archive.Pipeline
	Recorder      recorder.Recorder
	Notifier      Notifier
	WatchlistPath string

	current *model.RunSummary
}

// NewCollector creates a Collector and subscribes it to pipeline events.
func NewCollector(st *store.Store, sel *listing.Selector, pl *archive.Pipeline, rec recorder.Recorder, watchlistPath string) *Collector {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	c := &Collector{
		Store:         st,
		Selector:      sel,
		Pipeline:      pl,
		Recorder:      rec,
		WatchlistPath: watchlistPath,
	}
	pl.OnArtifact = c.onArtifact
	return c
}

// Collect performs one run for the calendar day of now. The returned summary
// is populated even when the run fails.
func (c *Collector) Collect(ctx context.Context, now time.Time) (*model.RunSummary, error) {
	run := &model.RunSummary{
		ID:        uuid.NewString(),
		RunDate:   now.Format(model.DateFormat),
		StartedAt: time.Now(),
	}
	c.current = run
	defer func() { c.current = nil }()

	log.Printf("[INFO] run %s started for %s", run.ID, run.RunDate)
	if err := c.Recorder.RecordRunStart(run); err != nil {
		log.Printf("[ERROR] record run start: %v", err)
	}

	err := c.collect(ctx, run, now)
	c.finish(ctx, run, err)
	return run, err
}

func (c *Collector) collect(ctx context.Context, run *model.RunSummary, now time.Time) error {
	wl, created, err := c.watchlist(ctx)
	if err != nil {
		return err
	}
	run.WatchlistCreated = created
	run.Instruments = len(wl)

	if err := c.Pipeline.Ensure(ctx, wl, now); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

// watchlist returns the persisted snapshot, selecting and saving a new one
// only when none exists.
func (c *Collector) watchlist(ctx context.Context) (model.Watchlist, bool, error) {
	wl, ok, err := store.LoadWatchlist(c.WatchlistPath)
	if err != nil {
		return nil, false, err
	}
	if ok {
		log.Printf("[INFO] using watchlist %s (%d instruments)", c.WatchlistPath, len(wl))
		return wl, false, nil
	}

	log.Printf("[INFO] no watchlist at %s, selecting from listing", c.WatchlistPath)
	wl, err = c.Selector.Select(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("select watchlist: %w", err)
	}
	if err := c.Store.EnsureDir(filepath.Dir(c.WatchlistPath)); err != nil {
		return nil, false, err
	}
	if err := c.Store.SaveWatchlist(c.WatchlistPath, wl); err != nil {
		return nil, false, fmt.Errorf("save watchlist: %w", err)
	}
	return wl, true, nil
}

func (c *Collector) onArtifact(evt *model.ArtifactEvent) {
	if c.current == nil {
		return
	}
	c.current.Count(evt)
	if err := c.Recorder.RecordArtifact(c.current.ID, evt); err != nil {
		log.Printf("[ERROR] record artifact: %v", err)
	}
}

func (c *Collector) finish(ctx context.Context, run *model.RunSummary, err error) {
	run.FinishedAt = time.Now()
	run.Status = model.RunOK
	if err != nil {
		run.Status = model.RunFailed
		run.Err = err
		log.Printf("[ERROR] run %s failed: %v", run.ID, err)
	} else {
		log.Printf("[INFO] run %s finished: fetched=%d skipped=%d", run.ID, run.Fetched, run.Skipped)
	}

	if err := c.Recorder.RecordRunEnd(run); err != nil {
		log.Printf("[ERROR] record run end: %v", err)
	}

	if c.Notifier == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := c.Notifier.Send(sendCtx, notifier.FormatRunReport(run)); err != nil {
		log.Printf("[WARN] send run report: %v", err)
	}
}
