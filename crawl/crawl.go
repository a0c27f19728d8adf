// Package crawl provides the depth-bounded breadth-first crawl that collects
// resource URLs from seed pages.
package crawl

import (
	"context"
	"sync"

	"github.com/fwojciec/harvest"
	"golang.org/x/sync/errgroup"
)

// Crawler runs crawls. A Crawler holds no per-crawl state and may run
// several crawls at once.
type Crawler struct {
	Transport harvest.Transport
	Parser    harvest.DocumentParser

	// Filter decides which links are followed. When nil, a harvest.Policy
	// is built from the crawl's FilterConfig.
	Filter harvest.URLFilter

	// Sitemaps expands seeds when CrawlConfig.Sitemaps is set.
	Sitemaps harvest.SitemapService
}

// Crawl visits the seeds and the pages reachable from them, one wave per
// depth level, and returns the resource URLs found along the way.
//
// The crawl stops after cfg.Depth waves, when a wave discovers no new pages,
// or after the wave in which the site cap was reached. Page failures are
// reported through progress and never abort the crawl. If ctx is canceled,
// no further pages are dispatched and the partial result is returned along
// with the context error.
func (c *Crawler) Crawl(ctx context.Context, seeds []string, cfg harvest.CrawlConfig, progress harvest.CrawlProgressFunc) (*harvest.CrawlResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, harvest.Errorf(harvest.EINVALID, "at least one seed URL required")
	}

	normalized := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		u, ok := harvest.Normalize(seed)
		if !ok {
			return nil, harvest.Errorf(harvest.EINVALID, "invalid seed URL %q", seed)
		}
		normalized = append(normalized, u)
	}

	filter := c.Filter
	if filter == nil {
		filter = harvest.NewPolicy(cfg.Filter)
	}
	attribute := cfg.Attribute
	if attribute == "" {
		attribute = harvest.DefaultAttribute
	}
	emit := serialize(progress)

	if cfg.Sitemaps && c.Sitemaps != nil {
		normalized = c.expandSeeds(ctx, normalized, filter, emit)
	}

	frontier := NewFrontier(
		WithSiteCap(cfg.SiteCap),
		WithDistinctResources(cfg.Distinct),
	)
	frontier.Seed(normalized)

	w := &pageWorker{
		transport: c.Transport,
		parser:    c.Parser,
		filter:    filter,
		selector:  cfg.Selector,
		attribute: attribute,
		frontier:  frontier,
		emit:      emit,
	}

	result := &harvest.CrawlResult{}
	var err error
	for depth := 1; depth <= cfg.Depth; depth++ {
		wave := frontier.Wave()
		emit(harvest.CrawlEvent{
			Type:  harvest.WaveStarted,
			Depth: depth,
			Pages: len(wave),
			Seen:  frontier.Stats().Seen,
		})

		runWave(ctx, w, wave, depth, cfg)
		result.Waves = depth

		stats := frontier.Stats()
		emit(harvest.CrawlEvent{
			Type:  harvest.WaveFinished,
			Depth: depth,
			Pages: len(wave),
			Seen:  stats.Seen,
		})

		if err = ctx.Err(); err != nil {
			break
		}
		if stats.Capped {
			emit(harvest.CrawlEvent{
				Type:  harvest.CapReached,
				Depth: depth,
				Seen:  stats.Seen,
			})
			break
		}
		if depth == cfg.Depth || !frontier.Advance() {
			break
		}
	}

	stats := frontier.Stats()
	result.Resources = frontier.Resources()
	result.Visited = stats.Visited
	result.Failed = int(w.failed.Load())
	result.Seen = stats.Seen
	result.Capped = stats.Capped
	result.MinPerPage = stats.MinPerPage
	result.MaxPerPage = stats.MaxPerPage
	return result, err
}

// runWave processes one wave with a fixed pool of cfg.Workers goroutines
// pulling from a shared queue, and returns once every dispatched URL has
// been handled.
//
// Under CapStopDispatch dispatch stops once the cap is reached during the
// wave. A cap already reached when the wave starts (seeds alone fill it)
// does not hold back the wave's own URLs.
func runWave(ctx context.Context, w *pageWorker, wave []string, depth int, cfg harvest.CrawlConfig) {
	stopOnCap := cfg.CapPolicy == harvest.CapStopDispatch && !w.frontier.Capped()
	queue := make(chan string)

	var g errgroup.Group
	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			for url := range queue {
				if ctx.Err() != nil || (stopOnCap && w.frontier.Capped()) {
					continue
				}
				w.process(ctx, url, depth)
			}
			return nil
		})
	}

dispatch:
	for _, url := range wave {
		if stopOnCap && w.frontier.Capped() {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- url:
		}
	}
	close(queue)

	_ = g.Wait()
}

// expandSeeds appends the sitemap URLs of each seed's site that pass the
// filter. Sitemap failures are reported and otherwise ignored.
func (c *Crawler) expandSeeds(ctx context.Context, seeds []string, filter harvest.URLFilter, emit harvest.CrawlProgressFunc) []string {
	expanded := append([]string(nil), seeds...)
	for _, seed := range seeds {
		urls, err := c.Sitemaps.DiscoverURLs(ctx, seed)
		if err != nil {
			emit(harvest.CrawlEvent{
				Type:  harvest.PageFailed,
				URL:   seed,
				Error: err,
			})
			continue
		}
		for _, raw := range urls {
			u, ok := harvest.Normalize(raw)
			if !ok || !harvest.Allowed(filter, u) {
				continue
			}
			expanded = append(expanded, u)
		}
	}
	return expanded
}

// serialize wraps progress so that concurrent workers never call it at the
// same time. A nil progress becomes a no-op.
func serialize(progress harvest.CrawlProgressFunc) harvest.CrawlProgressFunc {
	if progress == nil {
		return func(harvest.CrawlEvent) {}
	}
	var mu sync.Mutex
	return func(event harvest.CrawlEvent) {
		mu.Lock()
		defer mu.Unlock()
		progress(event)
	}
}
