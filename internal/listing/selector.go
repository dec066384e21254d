// Package listing builds the watchlist from the source's quote table: it
// reads every instrument with its traded volume and keeps the top ones.
package listing

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"quotearchiver/internal/browser"
	"quotearchiver/internal/model"
)

// DefaultLimit is the number of instruments kept in the watchlist.
const DefaultLimit = 15

// Expected header labels. A mismatch means the source layout changed.
const (
	SymbolLabel = "Símbolo"
	VolumeLabel = "Monto\nOperado"
)

const (
	symbolIndex = 0
	volumeIndex = 11

	panelSelector    = "#paneles"
	headingSelector  = "#header-cotizaciones"
	pageSizeSelector = `select[name="cotizaciones_length"]`
	tableSelector    = "#cotizaciones"
	rowSelector      = "tr"
	cellSelector     = "td"
	linkSelector     = "a"

	thousandsSeparator = "."
)

// Options describes where the listing lives and how to reveal all of it.
type Options struct {
	URL      string
	Panel    string
	Heading  string
	PageSize string
	Limit    int
	Timeout  time.Duration

	// SettleInterval spaces the row-count reads that detect the end of a
	// table redraw.
	SettleInterval time.Duration
}

// Selector extracts and ranks the instrument listing.
type Selector struct {
	open browser.Opener
	opts Options
}

// NewSelector creates a Selector. Zero Limit, Timeout and SettleInterval
// take defaults.
func NewSelector(open browser.Opener, opts Options) *Selector {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.SettleInterval <= 0 {
		opts.SettleInterval = 500 * time.Millisecond
	}
	return &Selector{open: open, opts: opts}
}

// Select opens a browser session, reads the full listing and returns the
// Limit highest-volume instruments. The session is closed before returning.
func (s *Selector) Select(ctx context.Context) (model.Watchlist, error) {
	log.Println("[INFO] downloading instrument listing")

	page, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Printf("[WARN] close browser: %v", err)
		}
	}()

	rows, err := s.extract(ctx, page)
	if err != nil {
		return nil, err
	}

	wl := Rank(rows, s.opts.Limit)
	log.Printf("[INFO] selected %d of %d listed instruments", len(wl), len(rows))
	return wl, nil
}

func (s *Selector) extract(ctx context.Context, page browser.Page) ([]model.ListingRow, error) {
	if err := page.Navigate(ctx, s.opts.URL); err != nil {
		return nil, err
	}
	if err := page.SelectOption(ctx, panelSelector, s.opts.Panel); err != nil {
		return nil, fmt.Errorf("select panel: %w", err)
	}
	heading := browser.Condition{Selector: headingSelector, Text: s.opts.Heading}
	if _, err := page.WaitFor(ctx, heading, s.opts.Timeout); err != nil {
		return nil, fmt.Errorf("wait for panel: %w", err)
	}

	if _, err := page.WaitFor(ctx, browser.Condition{Selector: pageSizeSelector}, s.opts.Timeout); err != nil {
		return nil, fmt.Errorf("wait for page size control: %w", err)
	}
	if err := page.SelectOption(ctx, pageSizeSelector, s.opts.PageSize); err != nil {
		return nil, fmt.Errorf("expand listing: %w", err)
	}
	table, err := page.WaitFor(ctx, browser.Condition{Selector: tableSelector}, s.opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("wait for listing table: %w", err)
	}

	rows, err := s.settle(ctx, table)
	if err != nil {
		return nil, err
	}
	return ParseTable(ctx, rows)
}

// settle rereads the table rows until two reads SettleInterval apart agree
// on the row count, so the redraw caused by the page-size change is over.
func (s *Selector) settle(ctx context.Context, table browser.Element) ([]browser.Element, error) {
	deadline := time.Now().Add(s.opts.Timeout)
	rows, err := table.Children(ctx, rowSelector)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.opts.SettleInterval):
		}
		next, err := table.Children(ctx, rowSelector)
		if err != nil {
			return nil, err
		}
		if len(next) == len(rows) {
			return next, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("listing still redrawing after %v: %w", s.opts.Timeout, model.ErrTimeout)
		}
		rows = next
	}
}

// ParseTable validates the header row and parses every data row. The last
// row is a summary and is skipped.
func ParseTable(ctx context.Context, rows []browser.Element) ([]model.ListingRow, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("listing has no header row: %w", model.ErrSchemaMismatch)
	}
	if err := checkHeader(ctx, rows[0]); err != nil {
		return nil, err
	}

	out := make([]model.ListingRow, 0, max(len(rows)-2, 0))
	if len(rows) <= 2 {
		return out, nil
	}
	for i, row := range rows[1 : len(rows)-1] {
		r, err := parseRow(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("listing row %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func checkHeader(ctx context.Context, row browser.Element) error {
	cells, err := row.Children(ctx, cellSelector)
	if err != nil {
		return err
	}
	if len(cells) <= volumeIndex {
		return fmt.Errorf("header has %d columns, want at least %d: %w", len(cells), volumeIndex+1, model.ErrSchemaMismatch)
	}

	for _, col := range []struct {
		index int
		label string
	}{
		{symbolIndex, SymbolLabel},
		{volumeIndex, VolumeLabel},
	} {
		got, err := cells[col.index].Text(ctx)
		if err != nil {
			return err
		}
		if got != col.label {
			return fmt.Errorf("header column %d is %q, want %q: %w", col.index, got, col.label, model.ErrSchemaMismatch)
		}
	}
	return nil
}

func parseRow(ctx context.Context, row browser.Element) (model.ListingRow, error) {
	var r model.ListingRow

	cells, err := row.Children(ctx, cellSelector)
	if err != nil {
		return r, err
	}
	if len(cells) <= volumeIndex {
		return r, fmt.Errorf("row has %d cells: %w", len(cells), model.ErrElementNotFound)
	}

	symbol, err := cells[symbolIndex].Text(ctx)
	if err != nil {
		return r, err
	}
	r.Name, _, _ = strings.Cut(symbol, "\n")
	if r.Name == "" {
		return r, fmt.Errorf("symbol %q: %w", symbol, model.ErrEmptySymbol)
	}

	volume, err := cells[volumeIndex].Text(ctx)
	if err != nil {
		return r, err
	}
	r.Volume, err = ParseVolume(volume)
	if err != nil {
		return r, fmt.Errorf("%s: %w", r.Name, err)
	}

	links, err := cells[symbolIndex].Children(ctx, linkSelector)
	if err != nil {
		return r, err
	}
	if len(links) == 0 {
		return r, fmt.Errorf("%s: %w", r.Name, model.ErrLinkNotFound)
	}
	r.Href, err = links[0].Attribute(ctx, "href")
	if err != nil {
		return r, err
	}
	if r.Href == "" {
		return r, fmt.Errorf("%s: empty href: %w", r.Name, model.ErrLinkNotFound)
	}
	return r, nil
}

// ParseVolume parses a traded-volume figure written with "." as the
// thousands separator, e.g. "1.234.567".
func ParseVolume(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.ReplaceAll(s, thousandsSeparator, ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", model.ErrInvalidVolume, s)
	}
	return v, nil
}

// Rank orders rows by ascending volume, keeping the original order among
// equal volumes, and returns the last k as instruments. Fewer than k rows
// are all returned.
func Rank(rows []model.ListingRow, k int) model.Watchlist {
	sorted := make([]model.ListingRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Volume < sorted[j].Volume
	})

	if k < 0 {
		k = 0
	}
	if len(sorted) > k {
		sorted = sorted[len(sorted)-k:]
	}

	wl := make(model.Watchlist, len(sorted))
	for i, r := range sorted {
		wl[i] = r.Instrument
	}
	return wl
}
