package model

import "errors"

// Harvest failures. Every one of them aborts the run.
var (
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrElementNotFound = errors.New("element not found")
	ErrLinkNotFound    = errors.New("link not found")
	ErrTimeout         = errors.New("timeout")
	ErrRenderTimeout   = errors.New("render timeout")
	ErrIDNotFound      = errors.New("id not found")
	ErrEmptySymbol     = errors.New("empty symbol")
	ErrInvalidVolume   = errors.New("invalid volume")
	ErrFetch           = errors.New("fetch failed")
	ErrInvalidEntry    = errors.New("invalid watchlist entry")
)
