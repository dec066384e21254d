// Package testutil provides in-memory fakes of the page-extraction capability.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quotearchiver/internal/browser"
	"quotearchiver/internal/model"
)

// FakeElement is a static DOM node.
type FakeElement struct {
	TextValue string
	Attrs     map[string]string
	HTML      string
	Kids      map[string][]*FakeElement

	// TextReads counts Text calls, to assert what was or was not read.
	TextReads int
	// OnChildren, when set, runs before each Children call so a fixture can
	// change the subtree between reads.
	OnChildren func(e *FakeElement)
}

// Text implements browser.Element.
func (e *FakeElement) Text(_ context.Context) (string, error) {
	e.TextReads++
	return e.TextValue, nil
}

// Attribute implements browser.Element.
func (e *FakeElement) Attribute(_ context.Context, name string) (string, error) {
	return e.Attrs[name], nil
}

// InnerHTML implements browser.Element.
func (e *FakeElement) InnerHTML(_ context.Context) (string, error) {
	return e.HTML, nil
}

// Children implements browser.Element.
func (e *FakeElement) Children(_ context.Context, selector string) ([]browser.Element, error) {
	if e.OnChildren != nil {
		e.OnChildren(e)
	}
	kids := e.Kids[selector]
	out := make([]browser.Element, len(kids))
	for i, k := range kids {
		out[i] = k
	}
	return out, nil
}

// Cell returns a table cell holding plain text.
func Cell(text string) *FakeElement {
	return &FakeElement{TextValue: text}
}

// LinkCell returns a table cell whose text is wrapped in a link.
func LinkCell(text, href string) *FakeElement {
	link := &FakeElement{TextValue: text, Attrs: map[string]string{"href": href}}
	return &FakeElement{TextValue: text, Kids: map[string][]*FakeElement{"a": {link}}}
}

// Row returns a table row made of cells.
func Row(cells ...*FakeElement) *FakeElement {
	return &FakeElement{Kids: map[string][]*FakeElement{"td": cells}}
}

// FakeDocument is the content served for one URL.
type FakeDocument struct {
	Elements map[string]*FakeElement
	// Options lists the visible option texts of each select control.
	Options map[string][]string
}

// FakeBrowser hands out pages over a fixed set of documents and records
// every interaction.
type FakeBrowser struct {
	Docs    map[string]*FakeDocument
	OpenErr error
	// OnSelect lets a fixture react to a form selection.
	OnSelect func(doc *FakeDocument, selector, text string)

	Opens       int
	Closes      int
	Navigations []string
	Selections  []string
	Waits       []browser.Condition
}

// NewFakeBrowser creates a FakeBrowser serving docs.
func NewFakeBrowser(docs map[string]*FakeDocument) *FakeBrowser {
	return &FakeBrowser{Docs: docs}
}

// Open is a browser.Opener.
func (b *FakeBrowser) Open(_ context.Context) (browser.Page, error) {
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	b.Opens++
	return &fakePage{b: b}, nil
}

// Leaked returns the number of pages opened but never closed.
func (b *FakeBrowser) Leaked() int {
	return b.Opens - b.Closes
}

type fakePage struct {
	b      *FakeBrowser
	doc    *FakeDocument
	closed bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.b.Navigations = append(p.b.Navigations, url)
	doc, ok := p.b.Docs[url]
	if !ok {
		return fmt.Errorf("navigate %s: no fixture", url)
	}
	p.doc = doc
	return nil
}

func (p *fakePage) SelectOption(_ context.Context, selector, text string) error {
	p.b.Selections = append(p.b.Selections, selector+"="+text)
	if p.doc == nil {
		return fmt.Errorf("select %s: %w", selector, model.ErrElementNotFound)
	}
	opts, ok := p.doc.Options[selector]
	if !ok {
		return fmt.Errorf("select control %s: %w", selector, model.ErrElementNotFound)
	}
	for _, o := range opts {
		if o == text {
			if p.b.OnSelect != nil {
				p.b.OnSelect(p.doc, selector, text)
			}
			return nil
		}
	}
	return fmt.Errorf("option %q in %s: %w", text, selector, model.ErrElementNotFound)
}

func (p *fakePage) WaitFor(_ context.Context, cond browser.Condition, timeout time.Duration) (browser.Element, error) {
	p.b.Waits = append(p.b.Waits, cond)
	if p.doc != nil {
		if el, ok := p.doc.Elements[cond.Selector]; ok {
			if cond.Text == "" || strings.Contains(el.TextValue, cond.Text) {
				return el, nil
			}
		}
	}
	return nil, fmt.Errorf("wait for %s after %v: %w", cond.Selector, timeout, model.ErrTimeout)
}

func (p *fakePage) Find(_ context.Context, selector string) (browser.Element, error) {
	if p.doc != nil {
		if el, ok := p.doc.Elements[selector]; ok {
			return el, nil
		}
	}
	return nil, fmt.Errorf("find %s: %w", selector, model.ErrElementNotFound)
}

func (p *fakePage) Close() error {
	if !p.closed {
		p.closed = true
		p.b.Closes++
	}
	return nil
}
