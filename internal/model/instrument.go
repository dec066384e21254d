package model

import "fmt"

// Instrument is a tradable security tracked by the archiver.
type Instrument struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// Watchlist is the persisted top-K instrument selection. It is computed once
// and reused until its snapshot file is removed.
type Watchlist []Instrument

// Validate rejects entries without a name, since the name keys the
// instrument's archive directory.
func (wl Watchlist) Validate() error {
	for i, inst := range wl {
		if inst.Name == "" {
			return fmt.Errorf("entry %d (%s): empty name: %w", i, inst.Href, ErrInvalidEntry)
		}
	}
	return nil
}

// ListingRow is one row read from the source listing. Volume is only used for
// ranking and never persisted.
type ListingRow struct {
	Instrument
	Volume int64
}
