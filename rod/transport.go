// Package rod implements a harvest.Transport that renders pages in headless
// Chrome before returning their HTML.
package rod

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultFetchTimeout bounds a single page render.
const DefaultFetchTimeout = 30 * time.Second

// Ensure Transport implements harvest.Transport at compile time.
var _ harvest.Transport = (*Transport)(nil)

// Transport fetches pages through a managed headless browser and returns the
// rendered DOM as an HTML response. Transport is safe for concurrent use.
type Transport struct {
	manager      *BrowserManager
	fetchTimeout time.Duration
	maxPages     int64
	closed       atomic.Bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithFetchTimeout sets the timeout for rendering a single page.
func WithFetchTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.fetchTimeout = d
	}
}

// WithRecycleAfter sets how many pages the browser renders before it is
// replaced with a fresh instance.
func WithRecycleAfter(n int64) Option {
	return func(t *Transport) {
		t.maxPages = n
	}
}

// NewTransport launches a headless browser and returns a Transport that uses
// it. Close must be called when the Transport is no longer needed.
func NewTransport(opts ...Option) (*Transport, error) {
	t := &Transport{
		fetchTimeout: DefaultFetchTimeout,
		maxPages:     DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(t)
	}

	manager, err := NewBrowserManager(WithMaxPages(t.maxPages))
	if err != nil {
		return nil, harvest.Errorf(harvest.ENETWORK, "starting browser: %v", err)
	}
	t.manager = manager
	return t, nil
}

// Fetch navigates to url, waits for the load event and returns the rendered
// HTML. The response always reports status 200 since the browser does not
// expose the navigation status.
func (t *Transport) Fetch(ctx context.Context, url string) (*harvest.Response, error) {
	if t.closed.Load() {
		return nil, harvest.Errorf(harvest.EINVALID, "transport is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.fetchTimeout)
	defer cancel()

	browser, release := t.manager.Acquire()
	defer release()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, harvest.Errorf(harvest.ENETWORK, "opening page: %v", err)
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return nil, wrapErr(ctx, url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, wrapErr(ctx, url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, wrapErr(ctx, url, err)
	}

	final := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		final = info.URL
	}

	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &harvest.Response{
		URL:        final,
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(html)),
	}, nil
}

// Close releases browser resources. Close is safe to call multiple times.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.manager.Close()
}

// LauncherPID returns the process ID of the browser launcher.
func (t *Transport) LauncherPID() int {
	return t.manager.LauncherPID()
}

// wrapErr keeps context errors matchable and reports everything else as a
// network failure.
func wrapErr(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return harvest.Errorf(harvest.ENETWORK, "rendering %s: %v", url, err)
}
