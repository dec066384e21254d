// Package feed fetches the supplementary per-instrument data feed over HTTP.
// Requests are single-shot: a failure is reported, never retried.
package feed

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"
)

const defaultTimeout = 5 * time.Second

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	// RequestsPerSecond paces consecutive requests; zero means unlimited.
	RequestsPerSecond float64
	Proxy             string
	UserAgent         string
}

// Response is a successful feed response.
type Response struct {
	Status int
	Body   string
}

// Client issues bounded GET requests.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClient creates a feed client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	hc := resty.New().
		SetRetryCount(0).
		SetHeader("Accept", "application/json, text/plain, */*")
	if opts.UserAgent != "" {
		hc.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Proxy != "" {
		hc.SetProxy(opts.Proxy)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		http:    hc,
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.Timeout,
	}
}

// Get fetches url. Any status outside 2xx is returned as a *FetchError.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, NewTransportError(url, err, false)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(reqCtx).
		Get(url)
	if err != nil {
		var ne net.Error
		timedOut := ctx.Err() == nil &&
			(reqCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()))
		return nil, NewTransportError(url, err, timedOut)
	}
	if !resp.IsSuccess() {
		log.Printf("[WARN] feed %s returned %d", url, resp.StatusCode())
		return nil, NewStatusError(url, resp.StatusCode())
	}

	return &Response{Status: resp.StatusCode(), Body: resp.String()}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}
