package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingWriter implements harvest.ResourceWriter.
var _ harvest.ResourceWriter = (*LoggingWriter)(nil)

// LoggingWriter wraps a ResourceWriter with logging.
type LoggingWriter struct {
	next   harvest.ResourceWriter
	logger *slog.Logger
}

// NewLoggingWriter creates a new LoggingWriter.
func NewLoggingWriter(next harvest.ResourceWriter, logger *slog.Logger) *LoggingWriter {
	return &LoggingWriter{next: next, logger: logger}
}

// Write delegates to the wrapped writer and logs the outcome. Replacing an
// existing file is logged at warn level.
func (w *LoggingWriter) Write(ctx context.Context, req harvest.WriteRequest) (out *harvest.WriteOutcome, err error) {
	defer func(begin time.Time) {
		if err != nil {
			w.logger.Error("write",
				"url", req.URL,
				"policy", req.Policy.String(),
				"duration", time.Since(begin),
				"err", err,
			)
			return
		}
		level := slog.LevelInfo
		if out.Overwrote {
			level = slog.LevelWarn
		}
		w.logger.Log(ctx, level, "write",
			"url", req.URL,
			"path", out.Path,
			"bytes", out.Bytes,
			"skipped", out.Skipped,
			"overwrote", out.Overwrote,
			"duration", time.Since(begin),
		)
	}(time.Now())
	return w.next.Write(ctx, req)
}
