package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingTransport implements harvest.Transport.
var _ harvest.Transport = (*LoggingTransport)(nil)

// LoggingTransport wraps a Transport with debug logging.
type LoggingTransport struct {
	next   harvest.Transport
	logger *slog.Logger
}

// NewLoggingTransport creates a new LoggingTransport.
func NewLoggingTransport(next harvest.Transport, logger *slog.Logger) *LoggingTransport {
	return &LoggingTransport{next: next, logger: logger}
}

// Fetch logs the URL being fetched and delegates to the wrapped transport.
// The duration covers the request up to the response headers.
func (t *LoggingTransport) Fetch(ctx context.Context, url string) (resp *harvest.Response, err error) {
	defer func(begin time.Time) {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.logger.Debug("fetch",
			"url", url,
			"status", status,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return t.next.Fetch(ctx, url)
}

// Close delegates to the wrapped transport.
func (t *LoggingTransport) Close() error {
	return t.next.Close()
}
