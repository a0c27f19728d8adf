package harvest

import (
	"context"
	"io"
	"net/http"
)

// Response is a successful fetch. The caller must close Body.
type Response struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ContentType returns the Content-Type header value.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Transport issues requests for URLs.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Fetch requests the URL and returns the response with an open body.
	// Connection failures, timeouts and non-2xx statuses are reported as
	// errors with code ENETWORK.
	Fetch(ctx context.Context, url string) (*Response, error)

	// Close releases transport resources.
	Close() error
}

// SizeProber reports the size of a remote resource without downloading it.
type SizeProber interface {
	// Size returns the advertised content length, or -1 if unknown.
	Size(ctx context.Context, url string) (int64, error)
}
