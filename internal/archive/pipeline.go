// Package archive keeps the per-instrument artifacts of each run date on
// disk. Every artifact is fetched at most once: an existing file is never
// fetched again, and new files are committed atomically.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"quotearchiver/internal/browser"
	"quotearchiver/internal/feed"
	"quotearchiver/internal/model"
	"quotearchiver/internal/store"
)

// DefaultChartSelector matches the rendered price chart.
const DefaultChartSelector = ".highcharts-container"

// Fetcher retrieves the supplementary data feed.
type Fetcher interface {
	Get(ctx context.Context, url string) (*feed.Response, error)
}

// Options configures a Pipeline.
type Options struct {
	Root          string
	DataURL       string
	ChartSelector string
	RenderTimeout time.Duration
}

// Pipeline ensures both artifacts exist for every watchlist entry.
type Pipeline struct {
	store *store.Store
	open  browser.Opener
	feed  Fetcher
	opts  Options

	// OnArtifact, when set, is called after each artifact is fetched or
	// skipped.
	OnArtifact func(evt *model.ArtifactEvent)
}

// NewPipeline creates a Pipeline.
func NewPipeline(st *store.Store, open browser.Opener, fetcher Fetcher, opts Options) *Pipeline {
	if opts.ChartSelector == "" {
		opts.ChartSelector = DefaultChartSelector
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 10 * time.Second
	}
	return &Pipeline{store: st, open: open, feed: fetcher, opts: opts}
}

// Ensure walks the watchlist in order and fetches whatever artifact is
// missing for runDate. The first error aborts the walk; artifacts committed
// before it stay on disk so a later call resumes where this one stopped.
func (p *Pipeline) Ensure(ctx context.Context, wl model.Watchlist, runDate time.Time) error {
	if err := wl.Validate(); err != nil {
		return err
	}
	date := runDate.Format(model.DateFormat)

	sess := &session{open: p.open}
	defer sess.close()

	for _, inst := range wl {
		log.Printf("[INFO] %s", inst.Name)

		dir := InstrumentDir(p.opts.Root, date, inst.Name)
		if err := p.store.EnsureDir(dir); err != nil {
			return err
		}
		if err := p.ensureGraphic(ctx, sess, date, inst); err != nil {
			return fmt.Errorf("%s graphic: %w", inst.Name, err)
		}
		if err := p.ensureData(ctx, date, inst); err != nil {
			return fmt.Errorf("%s data: %w", inst.Name, err)
		}
	}
	return nil
}

func (p *Pipeline) ensureGraphic(ctx context.Context, sess *session, date string, inst model.Instrument) error {
	path := ArtifactPath(p.opts.Root, date, inst.Name, model.ArtifactGraphic)
	if done, err := p.skip(path, date, inst, model.ArtifactGraphic); done || err != nil {
		return err
	}
	log.Println("[INFO]   graphic")

	page, err := sess.page(ctx)
	if err != nil {
		return err
	}
	if err := page.Navigate(ctx, inst.Href); err != nil {
		return err
	}
	chart, err := page.WaitFor(ctx, browser.Condition{Selector: p.opts.ChartSelector}, p.opts.RenderTimeout)
	if err != nil {
		if errors.Is(err, model.ErrTimeout) {
			return fmt.Errorf("%w: %w", model.ErrRenderTimeout, err)
		}
		return err
	}
	markup, err := chart.InnerHTML(ctx)
	if err != nil {
		return err
	}

	return p.commit(path, date, inst, model.ArtifactGraphic, []byte(markup))
}

func (p *Pipeline) ensureData(ctx context.Context, date string, inst model.Instrument) error {
	path := ArtifactPath(p.opts.Root, date, inst.Name, model.ArtifactData)
	if done, err := p.skip(path, date, inst, model.ArtifactData); done || err != nil {
		return err
	}
	log.Println("[INFO]   data")

	id, err := ExtractID(inst.Href)
	if err != nil {
		return err
	}
	resp, err := p.feed.Get(ctx, DataURL(p.opts.DataURL, id))
	if err != nil {
		return err
	}

	return p.commit(path, date, inst, model.ArtifactData, []byte(resp.Body))
}

// skip reports whether the artifact already exists. Existence is the only
// check: an empty or damaged file still counts as fetched.
func (p *Pipeline) skip(path, date string, inst model.Instrument, kind model.ArtifactKind) (bool, error) {
	ok, err := p.store.Exists(path)
	if err != nil || !ok {
		return false, err
	}
	log.Printf("[INFO]   %s [skipped]", kind)
	p.notify(&model.ArtifactEvent{
		RunDate:    date,
		Instrument: inst.Name,
		Kind:       kind,
		Action:     model.ActionSkipped,
		Path:       path,
	})
	return true, nil
}

func (p *Pipeline) commit(path, date string, inst model.Instrument, kind model.ArtifactKind, data []byte) error {
	if err := p.store.WriteAtomic(path, data); err != nil {
		return err
	}
	p.notify(&model.ArtifactEvent{
		RunDate:    date,
		Instrument: inst.Name,
		Kind:       kind,
		Action:     model.ActionFetched,
		Path:       path,
		Bytes:      len(data),
	})
	return nil
}

func (p *Pipeline) notify(evt *model.ArtifactEvent) {
	if p.OnArtifact != nil {
		p.OnArtifact(evt)
	}
}

// session acquires the browser on first use and releases it once.
type session struct {
	open browser.Opener
	pg   browser.Page
}

func (s *session) page(ctx context.Context) (browser.Page, error) {
	if s.pg != nil {
		return s.pg, nil
	}
	pg, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	s.pg = pg
	return pg, nil
}

func (s *session) close() {
	if s.pg == nil {
		return
	}
	if err := s.pg.Close(); err != nil {
		log.Printf("[WARN] close browser: %v", err)
	}
	s.pg = nil
}
