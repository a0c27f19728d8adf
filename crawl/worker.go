package crawl

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fwojciec/harvest"
)

// anchorSelector matches the elements whose targets become next-wave pages.
const anchorSelector = "a[href]"

// pageWorker fetches and parses single pages on behalf of a crawl. The same
// worker value is shared by every goroutine of the pool.
type pageWorker struct {
	transport harvest.Transport
	parser    harvest.DocumentParser
	filter    harvest.URLFilter
	selector  string
	attribute string
	frontier  *Frontier
	emit      harvest.CrawlProgressFunc

	failed atomic.Int64
}

// pageResult is what one page contributed to the crawl.
type pageResult struct {
	links     int
	resources int
}

// process visits url. Failures are reported and counted, never returned.
func (w *pageWorker) process(ctx context.Context, url string, depth int) {
	var (
		res pageResult
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = harvest.Errorf(harvest.EINTERNAL, "panic while processing %s: %v", url, r)
		}
		w.report(url, depth, res, err)
	}()

	res, err = w.visit(ctx, url)
}

func (w *pageWorker) visit(ctx context.Context, url string) (pageResult, error) {
	var res pageResult

	resp, err := w.transport.Fetch(ctx, url)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, harvest.Errorf(harvest.ENETWORK, "HTTP %d fetching %s", resp.StatusCode, url)
	}

	doc, err := w.parser.Parse(resp.Body)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", url, err)
	}

	// Relative references resolve against the page's final location.
	base := url
	if resp.URL != "" {
		if u, ok := harvest.Normalize(resp.URL); ok {
			base = u
		}
	}

	for _, el := range doc.Select(anchorSelector) {
		href, ok := el.Attr("href")
		if !ok {
			continue
		}
		link, ok := harvest.Resolve(base, href)
		if !ok || !harvest.Allowed(w.filter, link) {
			continue
		}
		if w.frontier.Admit(link) {
			res.links++
		}
	}

	var found int
	if w.selector != "" {
		for _, el := range doc.Select(w.selector) {
			value, ok := el.Attr(w.attribute)
			if !ok {
				continue
			}
			resource, ok := harvest.Resolve(base, value)
			if !ok {
				continue
			}
			found++
			if w.frontier.AddResource(resource) {
				res.resources++
			}
		}
	}

	w.frontier.CompletePage(url, found)
	return res, nil
}

func (w *pageWorker) report(url string, depth int, res pageResult, err error) {
	if err != nil {
		w.failed.Add(1)
		w.emit(harvest.CrawlEvent{
			Type:  harvest.PageFailed,
			Depth: depth,
			URL:   url,
			Seen:  w.frontier.Stats().Seen,
			Error: err,
		})
		return
	}
	w.emit(harvest.CrawlEvent{
		Type:      harvest.PageVisited,
		Depth:     depth,
		URL:       url,
		Links:     res.links,
		Resources: res.resources,
		Seen:      w.frontier.Stats().Seen,
	})
}
