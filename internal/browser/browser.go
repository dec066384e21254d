// Package browser is the page-extraction capability used to read the source
// site: navigation, form controls, bounded waits and DOM reads.
package browser

import (
	"context"
	"time"
)

// Element is a handle to a node of the current page.
type Element interface {
	// Text returns the rendered text of the element, trimmed.
	Text(ctx context.Context) (string, error)
	// Attribute returns the named attribute, or "" when it is absent. Links
	// are returned resolved against the page URL.
	Attribute(ctx context.Context, name string) (string, error)
	InnerHTML(ctx context.Context) (string, error)
	// Children returns the descendants matching selector. No match is not an
	// error.
	Children(ctx context.Context, selector string) ([]Element, error)
}

// Condition describes what WaitFor waits for. An empty Text means the
// element only has to be present.
type Condition struct {
	Selector string
	Text     string
}

// Page is one navigation session.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// SelectOption picks the option whose visible text equals text.
	SelectOption(ctx context.Context, selector, text string) error
	// WaitFor blocks until cond holds or timeout elapses, in which case the
	// error wraps model.ErrTimeout.
	WaitFor(ctx context.Context, cond Condition, timeout time.Duration) (Element, error)
	// Find returns the first element matching selector without waiting. The
	// error wraps model.ErrElementNotFound when nothing matches.
	Find(ctx context.Context, selector string) (Element, error)
	Close() error
}

// Opener acquires a new Page. The caller owns it and must Close it.
type Opener func(ctx context.Context) (Page, error)
