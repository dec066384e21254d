package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"quotearchiver/internal/model"
)

// Options configures the headless browser.
type Options struct {
	Headless        bool
	ExecPath        string
	UserAgent       string
	NavigateTimeout time.Duration
	ActionTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = 30 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 10 * time.Second
	}
	return o
}

// Session is a Page backed by a single Chrome tab driven through chromedp.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
}

// NewSession launches a browser and opens a tab.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	log.Printf("[INFO] browser session started (headless=%v)", opts.Headless)

	return &Session{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc, opts: opts}, nil
}

// Launcher returns an Opener that starts a fresh Session per call.
func Launcher(opts Options) Opener {
	return func(ctx context.Context) (Page, error) {
		return NewSession(ctx, opts)
	}
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.opts.NavigateTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

const selectOptionJS = `(function(sel, text) {
	const el = document.querySelector(sel);
	if (!el || !el.options) return "control";
	const opt = Array.from(el.options).find(o => o.text.trim() === text);
	if (!opt) return "option";
	el.value = opt.value;
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return "";
})(%s, %s)`

func (s *Session) SelectOption(ctx context.Context, selector, text string) error {
	sel, _ := json.Marshal(selector)
	txt, _ := json.Marshal(text)

	var missing string
	js := fmt.Sprintf(selectOptionJS, sel, txt)
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(js, &missing)); err != nil {
		return fmt.Errorf("select %q in %s: %w", text, selector, err)
	}
	switch missing {
	case "control":
		return fmt.Errorf("select control %s: %w", selector, model.ErrElementNotFound)
	case "option":
		return fmt.Errorf("option %q in %s: %w", text, selector, model.ErrElementNotFound)
	}
	return nil
}

const textPresentJS = `(sel, text) => {
	const el = document.querySelector(sel);
	return !!el && el.innerText.includes(text);
}`

func (s *Session) WaitFor(ctx context.Context, cond Condition, timeout time.Duration) (Element, error) {
	var err error
	if cond.Text == "" {
		err = s.run(ctx, timeout, chromedp.WaitReady(cond.Selector, chromedp.ByQuery))
	} else {
		var ok bool
		// The outer bound is a backstop; the poll reports its own timeout.
		err = s.run(ctx, timeout+s.opts.ActionTimeout, chromedp.PollFunction(textPresentJS, &ok,
			chromedp.WithPollingArgs(cond.Selector, cond.Text),
			chromedp.WithPollingTimeout(timeout),
		))
	}
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, chromedp.ErrPollingTimeout)) {
			return nil, fmt.Errorf("wait for %s after %v: %w", describe(cond), timeout, model.ErrTimeout)
		}
		return nil, fmt.Errorf("wait for %s: %w", describe(cond), err)
	}
	return s.Find(ctx, cond.Selector)
}

func describe(cond Condition) string {
	if cond.Text == "" {
		return cond.Selector
	}
	return fmt.Sprintf("%s containing %q", cond.Selector, cond.Text)
}

func (s *Session) Find(ctx context.Context, selector string) (Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.opts.ActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("find %s: %w", selector, model.ErrElementNotFound)
	}
	return &element{s: s, node: nodes[0]}, nil
}

// Close ends the tab and shuts the browser down.
func (s *Session) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancelTab()
	s.cancelAlloc()
	log.Println("[INFO] browser session closed")
	return err
}

// element is a DOM node of the session's current document.
type element struct {
	s    *Session
	node *cdp.Node
}

func (e *element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	// innerText keeps line breaks from <br>, which header labels rely on.
	err := e.s.run(ctx, e.s.opts.ActionTimeout,
		chromedp.JavascriptAttribute(e.ids(), "innerText", &text, chromedp.ByNodeID))
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return trimText(text), nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	raw := e.node.AttributeValue(name)
	if raw == "" || (name != "href" && name != "src") {
		return raw, nil
	}
	// Read as a property so relative links come back absolute.
	var resolved string
	err := e.s.run(ctx, e.s.opts.ActionTimeout,
		chromedp.JavascriptAttribute(e.ids(), name, &resolved, chromedp.ByNodeID))
	if err != nil {
		return "", fmt.Errorf("read attribute %s: %w", name, err)
	}
	return resolved, nil
}

func (e *element) InnerHTML(ctx context.Context) (string, error) {
	var html string
	if err := e.s.run(ctx, e.s.opts.ActionTimeout, chromedp.InnerHTML(e.ids(), &html, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("read inner html: %w", err)
	}
	return html, nil
}

func (e *element) Children(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := e.s.run(ctx, e.s.opts.ActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("find children %s: %w", selector, err)
	}
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = &element{s: e.s, node: n}
	}
	return out, nil
}
