package slog

import (
	"log/slog"

	"github.com/fwojciec/harvest"
)

// NewCrawlLogger returns a progress function that logs crawl events.
// Page failures are logged at warn level, page visits at debug level and
// wave and cap events at info level.
func NewCrawlLogger(logger *slog.Logger) harvest.CrawlProgressFunc {
	return func(event harvest.CrawlEvent) {
		switch event.Type {
		case harvest.WaveStarted, harvest.WaveFinished:
			logger.Info(event.Type.String(),
				"depth", event.Depth,
				"pages", event.Pages,
				"seen", event.Seen,
			)
		case harvest.PageVisited:
			logger.Debug(event.Type.String(),
				"depth", event.Depth,
				"url", event.URL,
				"links", event.Links,
				"resources", event.Resources,
			)
		case harvest.PageFailed:
			logger.Warn(event.Type.String(),
				"depth", event.Depth,
				"url", event.URL,
				"err", event.Error,
			)
		case harvest.CapReached:
			logger.Info(event.Type.String(),
				"depth", event.Depth,
				"seen", event.Seen,
			)
		}
	}
}
