package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"quotearchiver/internal/model"
)

// LoadWatchlist reads the watchlist snapshot. The boolean is false when no
// snapshot exists yet. A snapshot with an unnamed entry is an error.
func LoadWatchlist(path string) (model.Watchlist, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read watchlist: %w", err)
	}
	var wl model.Watchlist
	if err := json.Unmarshal(data, &wl); err != nil {
		return nil, false, fmt.Errorf("parse watchlist: %w", err)
	}
	if err := wl.Validate(); err != nil {
		return nil, false, fmt.Errorf("watchlist %s: %w", path, err)
	}
	if wl == nil {
		wl = model.Watchlist{}
	}
	return wl, true, nil
}

// SaveWatchlist commits the watchlist snapshot through the atomic store.
func (s *Store) SaveWatchlist(path string, wl model.Watchlist) error {
	if wl == nil {
		wl = model.Watchlist{}
	}
	data, err := json.MarshalIndent(wl, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal watchlist: %w", err)
	}
	return s.WriteAtomic(path, data)
}
