package harvest

import (
	"math"
	"strings"
)

// Unbounded disables the site cap.
const Unbounded = -1

// NoPages is the MinPerPage reported by a crawl that visited no pages.
// It stands in for +infinity so that any real page count lowers it.
const NoPages = math.MaxInt

// DefaultAttribute is the element attribute read for resource URLs.
const DefaultAttribute = "src"

// CapPolicy controls what happens to the rest of a wave once the site cap
// has been reached. In-flight fetches always run to completion.
type CapPolicy int

const (
	// CapFinishWave dispatches every URL of the current wave, then stops.
	CapFinishWave CapPolicy = iota
	// CapStopDispatch stops handing out URLs of the current wave as soon as
	// the cap is reached.
	CapStopDispatch
)

// String returns the policy name accepted by ParseCapPolicy.
func (p CapPolicy) String() string {
	switch p {
	case CapFinishWave:
		return "finish-wave"
	case CapStopDispatch:
		return "stop-dispatch"
	}
	return "unknown"
}

// ParseCapPolicy parses "finish-wave" or "stop-dispatch". An empty string
// yields CapFinishWave.
func ParseCapPolicy(s string) (CapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "finish-wave", "finish_wave", "":
		return CapFinishWave, nil
	case "stop-dispatch", "stop_dispatch", "stop":
		return CapStopDispatch, nil
	}
	return 0, Errorf(EINVALID, "unknown cap policy %q", s)
}

// FilterConfig holds the allow and deny lists of a Policy.
type FilterConfig struct {
	AllowDomains []string
	DenyDomains  []string
	Schemes      []string
	Extensions   []string
}

// CrawlConfig bounds and shapes a crawl.
type CrawlConfig struct {
	// Depth is the number of waves to run. The seeds form wave 1.
	Depth int

	// Workers is the number of pages fetched concurrently within a wave.
	Workers int

	// SiteCap limits how many URLs are ever admitted. Unbounded disables it.
	SiteCap int

	// CapPolicy controls how the wave that hits SiteCap ends.
	CapPolicy CapPolicy

	// Selector is the CSS selector matching resource elements.
	// An empty selector collects no resources.
	Selector string

	// Attribute is read from selected elements for the resource URL.
	// Defaults to DefaultAttribute.
	Attribute string

	// Distinct drops repeated resource URLs, keeping the first.
	Distinct bool

	// Sitemaps adds sitemap URLs of each seed's site to the first wave.
	Sitemaps bool

	Filter FilterConfig
}

// Validate returns an error if the configuration cannot drive a crawl.
func (c *CrawlConfig) Validate() error {
	if c.Depth < 1 {
		return Errorf(EINVALID, "crawl depth must be at least 1, got %d", c.Depth)
	}
	if c.Workers < 1 {
		return Errorf(EINVALID, "worker count must be at least 1, got %d", c.Workers)
	}
	if c.SiteCap != Unbounded && c.SiteCap < 1 {
		return Errorf(EINVALID, "site cap must be -1 or at least 1, got %d", c.SiteCap)
	}
	return nil
}

// CrawlResult is the outcome of a crawl.
type CrawlResult struct {
	// Resources holds resource URLs in order of discovery.
	Resources []string

	// Visited counts pages fetched and parsed successfully.
	Visited int

	// Failed counts pages whose fetch or parse failed.
	Failed int

	// Seen counts every URL ever admitted, seeds included.
	Seen int

	// Waves counts the waves that ran.
	Waves int

	// Capped is true if the site cap ended the crawl.
	Capped bool

	// MinPerPage and MaxPerPage bound the resources found on a single page.
	// With no visited pages they are NoPages and 0.
	MinPerPage int
	MaxPerPage int
}

// CrawlEventType identifies a crawl event.
type CrawlEventType int

const (
	WaveStarted CrawlEventType = iota
	PageVisited
	PageFailed
	CapReached
	WaveFinished
)

// String returns the event type name used in logs.
func (t CrawlEventType) String() string {
	switch t {
	case WaveStarted:
		return "wave_started"
	case PageVisited:
		return "page_visited"
	case PageFailed:
		return "page_failed"
	case CapReached:
		return "cap_reached"
	case WaveFinished:
		return "wave_finished"
	}
	return "unknown"
}

// CrawlEvent reports crawl progress.
type CrawlEvent struct {
	Type  CrawlEventType
	Depth int
	URL   string

	// Pages is the wave size for wave events.
	Pages int

	// Links and Resources count what a visited page contributed.
	Links     int
	Resources int

	// Seen is the number of admitted URLs when the event fired.
	Seen int

	Error error
}

// CrawlProgressFunc receives crawl events. Calls are serialized.
type CrawlProgressFunc func(event CrawlEvent)
