package crawl

import (
	"sync"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/bloom"
)

const (
	// frontierExpectedURLs is the expected number of URLs for Bloom filter
	// sizing. Smaller site caps shrink the filter; larger ones do not grow it.
	frontierExpectedURLs = 10000
	// frontierFalsePositiveRate is the acceptable false positive rate of the
	// Bloom pre-check. False positives fall through to the exact set.
	frontierFalsePositiveRate = 0.01
)

// Frontier is the traversal state of a single crawl: the set of every URL
// ever admitted, the pages visited, the wave being processed, the wave being
// assembled and the resources found so far.
//
// Every URL in the visited set and in both waves is also in the seen set,
// and the seen set holds each URL once. The number of admitted URLs never
// exceeds the site cap.
//
// Frontier is safe for concurrent use by multiple goroutines.
type Frontier struct {
	mu sync.Mutex

	filter  *bloom.Filter
	seen    map[string]struct{}
	visited map[string]struct{}
	current []string
	next    []string

	resources   []string
	resourceSet map[string]struct{}
	distinct    bool

	limit      int
	minPerPage int
	maxPerPage int
}

// FrontierOption configures a Frontier.
type FrontierOption func(*Frontier)

// WithSiteCap limits the number of URLs the frontier admits.
// harvest.Unbounded disables the limit.
func WithSiteCap(n int) FrontierOption {
	return func(f *Frontier) {
		f.limit = n
	}
}

// WithDistinctResources drops resource URLs that were already recorded.
func WithDistinctResources(distinct bool) FrontierOption {
	return func(f *Frontier) {
		f.distinct = distinct
	}
}

// NewFrontier creates an empty Frontier.
func NewFrontier(opts ...FrontierOption) *Frontier {
	f := &Frontier{
		seen:        make(map[string]struct{}),
		visited:     make(map[string]struct{}),
		resourceSet: make(map[string]struct{}),
		limit:       harvest.Unbounded,
		minPerPage:  harvest.NoPages,
	}
	for _, opt := range opts {
		opt(f)
	}

	expected := uint(frontierExpectedURLs)
	if f.limit != harvest.Unbounded {
		expected = min(uint(f.limit), expected)
	}
	f.filter = bloom.NewFilter(expected, frontierFalsePositiveRate)
	return f
}

// Seed admits URLs into the current wave, in order, until the site cap is
// reached. Returns the number admitted.
func (f *Frontier) Seed(urls []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int
	for _, u := range urls {
		if f.admitLocked(u) {
			f.current = append(f.current, u)
			n++
		}
	}
	return n
}

// Admit adds a URL to the next wave.
// Returns false if the URL was already seen or the site cap is reached.
func (f *Frontier) Admit(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.admitLocked(url) {
		return false
	}
	f.next = append(f.next, url)
	return true
}

// admitLocked records url in the seen set. Must be called with mu held.
func (f *Frontier) admitLocked(url string) bool {
	if f.cappedLocked() || f.seenLocked(url) {
		return false
	}
	f.filter.Add(url)
	f.seen[url] = struct{}{}
	return true
}

// AddResource appends a resource URL.
// Returns false if distinct resources were requested and url is a repeat.
func (f *Frontier) AddResource(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.distinct {
		if _, ok := f.resourceSet[url]; ok {
			return false
		}
		f.resourceSet[url] = struct{}{}
	}
	f.resources = append(f.resources, url)
	return true
}

// CompletePage marks a seen URL as visited and records how many resources
// the page yielded.
func (f *Frontier) CompletePage(url string, found int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[url]; !ok {
		return
	}
	f.visited[url] = struct{}{}
	f.minPerPage = min(f.minPerPage, found)
	f.maxPerPage = max(f.maxPerPage, found)
}

// Advance promotes the next wave to the current wave and clears the next
// wave. Returns false if the new current wave is empty.
func (f *Frontier) Advance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = f.next
	f.next = nil
	return len(f.current) > 0
}

// Wave returns a copy of the current wave in admission order.
func (f *Frontier) Wave() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.current...)
}

// Capped returns true once the number of admitted URLs reached the site cap.
func (f *Frontier) Capped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cappedLocked()
}

func (f *Frontier) cappedLocked() bool {
	return f.limit != harvest.Unbounded && len(f.seen) >= f.limit
}

// Seen returns true if the URL was ever admitted.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenLocked(url)
}

func (f *Frontier) seenLocked(url string) bool {
	if !f.filter.MayContain(url) {
		return false
	}
	_, ok := f.seen[url]
	return ok
}

// Visited returns true if the URL was fetched and parsed.
func (f *Frontier) Visited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

// Resources returns a copy of the resource list in discovery order.
func (f *Frontier) Resources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resources...)
}

// Stats is a snapshot of frontier counters.
type Stats struct {
	Seen       int
	Visited    int
	Current    int
	Next       int
	Resources  int
	MinPerPage int
	MaxPerPage int
	Capped     bool
}

// Stats returns a consistent snapshot of the frontier counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Seen:       len(f.seen),
		Visited:    len(f.visited),
		Current:    len(f.current),
		Next:       len(f.next),
		Resources:  len(f.resources),
		MinPerPage: f.minPerPage,
		MaxPerPage: f.maxPerPage,
		Capped:     f.cappedLocked(),
	}
}
