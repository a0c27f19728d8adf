// Package http provides net/http implementations of the harvest transport
// capabilities for static sites that don't require JavaScript rendering.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/fwojciec/harvest"
	"golang.org/x/net/publicsuffix"
)

// DefaultFetchTimeout is the default timeout for requests.
// Kept consistent with rod.DefaultFetchTimeout.
const DefaultFetchTimeout = 30 * time.Second

// DefaultUserAgent identifies harvest to the sites it visits.
const DefaultUserAgent = "harvest/1.0 (+https://github.com/fwojciec/harvest)"

// Ensure Transport implements the harvest interfaces at compile time.
var (
	_ harvest.Transport  = (*Transport)(nil)
	_ harvest.SizeProber = (*Transport)(nil)
)

// Transport issues HTTP requests. Cookies set by a site are kept for the
// lifetime of the Transport and scoped by public suffix.
type Transport struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Transport.
type Option func(*Transport)

// WithTimeout sets the timeout for a whole request, body included.
// Defaults to DefaultFetchTimeout if not specified.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.timeout = d
	}
}

// WithClient uses client instead of a client built by NewTransport.
// The timeout option is ignored when a client is supplied.
func WithClient(client *http.Client) Option {
	return func(t *Transport) {
		t.client = client
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(t *Transport) {
		t.userAgent = ua
	}
}

// NewTransport creates a new HTTP Transport.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		timeout:   DefaultFetchTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		// cookiejar.New only fails on a nil PublicSuffixList.
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		t.client = &http.Client{
			Timeout: t.timeout,
			Jar:     jar,
		}
	}

	return t
}

// Fetch issues a GET request and returns the response with an open body.
// Statuses outside 2xx are reported as ENETWORK errors.
func (t *Transport) Fetch(ctx context.Context, url string) (*harvest.Response, error) {
	resp, err := t.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		resp.Body.Close()
		return nil, harvest.Errorf(harvest.ENETWORK, "HTTP %d for %s", resp.StatusCode, url)
	}

	return &harvest.Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// Size issues a HEAD request and returns the advertised Content-Length,
// or -1 when the server does not send one.
func (t *Transport) Size(ctx context.Context, url string) (int64, error) {
	resp, err := t.do(ctx, http.MethodHead, url)
	if err != nil {
		return -1, err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return -1, harvest.Errorf(harvest.ENETWORK, "HTTP %d for %s", resp.StatusCode, url)
	}
	return resp.ContentLength, nil
}

func (t *Transport) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "invalid request URL %q: %v", url, err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, url, ctx.Err())
		}
		return nil, harvest.Errorf(harvest.ENETWORK, "%s %s: %v", method, url, err)
	}
	return resp, nil
}

// Close releases idle connections.
func (t *Transport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
