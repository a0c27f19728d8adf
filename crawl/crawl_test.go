package crawl_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/crawl"
	"github.com/fwojciec/harvest/goquery"
	"github.com/fwojciec/harvest/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// site maps page URLs to their HTML. URLs missing from the map fail to fetch.
type site map[string]string

func (s site) fetch(_ context.Context, url string) (*harvest.Response, error) {
	html, ok := s[url]
	if !ok {
		return nil, harvest.Errorf(harvest.ENETWORK, "HTTP 404 fetching %s", url)
	}
	return htmlResponse(url, html), nil
}

func htmlResponse(url, html string) *harvest.Response {
	return &harvest.Response{
		URL:        url,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(html)),
	}
}

func newTestCrawler(s site) *crawl.Crawler {
	return &crawl.Crawler{
		Transport: &mock.Transport{FetchFn: s.fetch},
		Parser:    goquery.NewParser(),
	}
}

func testConfig(depth int) harvest.CrawlConfig {
	return harvest.CrawlConfig{
		Depth:    depth,
		Workers:  4,
		SiteCap:  harvest.Unbounded,
		Selector: "img",
	}
}

// recorder collects crawl events. Crawl serializes progress calls.
type recorder struct {
	events []harvest.CrawlEvent
}

func (r *recorder) progress(e harvest.CrawlEvent) {
	r.events = append(r.events, e)
}

func (r *recorder) ofType(typ harvest.CrawlEventType) []harvest.CrawlEvent {
	var out []harvest.CrawlEvent
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestCrawler_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("empty seed page yields one visit and zero extremes", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{
			"https://example.com/": `<html><body><p>nothing here</p></body></html>`,
		})

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, testConfig(1), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Visited)
		assert.Empty(t, result.Resources)
		assert.Equal(t, 0, result.MinPerPage)
		assert.Equal(t, 0, result.MaxPerPage)
		assert.Equal(t, 1, result.Waves)
	})

	t.Run("self link ends the crawl before the depth budget", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{
			"https://example.com/": `<a href="/">home</a><a href="#top">top</a>`,
		})

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, testConfig(3), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Waves)
		assert.Equal(t, 1, result.Seen)
		assert.Equal(t, 1, result.Visited)
	})

	t.Run("site cap of one admits only the seed", func(t *testing.T) {
		t.Parallel()

		var links strings.Builder
		for i := 1; i <= 5; i++ {
			fmt.Fprintf(&links, `<a href="/page%d">%d</a>`, i, i)
		}
		c := newTestCrawler(site{"https://example.com/": links.String()})
		cfg := testConfig(3)
		cfg.SiteCap = 1
		rec := &recorder{}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, cfg, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Seen)
		assert.Equal(t, 1, result.Visited)
		assert.True(t, result.Capped)
		assert.Len(t, rec.ofType(harvest.CapReached), 1)
	})

	t.Run("collects resources resolved against each page", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{
			"https://example.com/docs/": `
				<img src="a.png"><img src="/static/b.jpg"><img alt="no source">
				<a href="guide/">guide</a>`,
			"https://example.com/docs/guide/": `<img src="../img/c.gif?v=2#frag">`,
		})
		cfg := testConfig(2)
		cfg.Workers = 1

		result, err := c.Crawl(context.Background(), []string{"https://example.com/docs/"}, cfg, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{
			"https://example.com/docs/a.png",
			"https://example.com/static/b.jpg",
			"https://example.com/docs/img/c.gif?v=2",
		}, result.Resources)
		assert.Equal(t, 2, result.Visited)
		assert.Equal(t, 1, result.MinPerPage)
		assert.Equal(t, 2, result.MaxPerPage)
	})

	t.Run("reads the configured attribute", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{
			"https://example.com/": `<img src="placeholder.gif" data-src="real.png"><video><source src="clip.mp4"></video>`,
		})
		cfg := testConfig(1)
		cfg.Attribute = "data-src"

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, cfg, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/real.png"}, result.Resources)
	})

	t.Run("keeps duplicate resources unless distinct", func(t *testing.T) {
		t.Parallel()

		s := site{
			"https://example.com/": `<img src="logo.png"><a href="/about">about</a>`,
			"https://example.com/about": `<img src="/logo.png">`,
		}

		result, err := newTestCrawler(s).Crawl(context.Background(), []string{"https://example.com/"}, testConfig(2), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/logo.png", "https://example.com/logo.png"}, result.Resources)

		cfg := testConfig(2)
		cfg.Distinct = true
		result, err = newTestCrawler(s).Crawl(context.Background(), []string{"https://example.com/"}, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/logo.png"}, result.Resources)
	})

	t.Run("stops at the depth budget", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{
			"https://example.com/a": `<a href="/b">b</a>`,
			"https://example.com/b": `<a href="/c">c</a>`,
			"https://example.com/c": `<a href="/d">d</a>`,
		})

		result, err := c.Crawl(context.Background(), []string{"https://example.com/a"}, testConfig(2), nil)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Waves)
		assert.Equal(t, 2, result.Visited)
		assert.Equal(t, 3, result.Seen, "links found in the last wave are still admitted")
	})

	t.Run("filters links before admission", func(t *testing.T) {
		t.Parallel()

		var fetched []string
		s := site{
			"https://example.com/": `
				<a href="https://other.com/page">external</a>
				<a href="mailto:someone@example.com">mail</a>
				<a href="/file.zip">archive</a>
				<a href="/next.html">next</a>`,
			"https://example.com/next.html": ``,
		}
		c := &crawl.Crawler{
			Transport: &mock.Transport{
				FetchFn: func(ctx context.Context, url string) (*harvest.Response, error) {
					fetched = append(fetched, url)
					return s.fetch(ctx, url)
				},
			},
			Parser: goquery.NewParser(),
		}
		cfg := testConfig(2)
		cfg.Workers = 1
		cfg.Filter = harvest.FilterConfig{
			AllowDomains: []string{"example.com"},
			Extensions:   []string{"", "html"},
		}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, cfg, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/", "https://example.com/next.html"}, fetched)
		assert.Equal(t, 2, result.Seen)
	})

	t.Run("uses an explicit filter over the config lists", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{
			"https://example.com/": `<a href="/a">a</a><a href="/b">b</a>`,
		})
		c.Filter = &mock.URLFilter{
			AllowDomainFn: func(string) bool { return false },
		}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, testConfig(2), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Seen)
	})

	t.Run("resolves links against the final response URL", func(t *testing.T) {
		t.Parallel()

		c := &crawl.Crawler{
			Transport: &mock.Transport{
				FetchFn: func(_ context.Context, url string) (*harvest.Response, error) {
					if url == "https://example.com/old" {
						return htmlResponse("https://example.com/new/", `<img src="pic.png">`), nil
					}
					return htmlResponse(url, ``), nil
				},
			},
			Parser: goquery.NewParser(),
		}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/old"}, testConfig(1), nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/new/pic.png"}, result.Resources)
	})

	t.Run("isolates page failures", func(t *testing.T) {
		t.Parallel()

		c := &crawl.Crawler{
			Transport: &mock.Transport{
				FetchFn: func(_ context.Context, url string) (*harvest.Response, error) {
					switch url {
					case "https://example.com/":
						return htmlResponse(url, `<a href="/ok">ok</a><a href="/missing">x</a><a href="/error">y</a>`), nil
					case "https://example.com/ok":
						return htmlResponse(url, `<img src="a.png">`), nil
					case "https://example.com/error":
						resp := htmlResponse(url, `<img src="never.png">`)
						resp.StatusCode = http.StatusInternalServerError
						return resp, nil
					}
					return nil, harvest.Errorf(harvest.ENETWORK, "connection refused")
				},
			},
			Parser: goquery.NewParser(),
		}
		rec := &recorder{}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, testConfig(2), rec.progress)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Visited)
		assert.Equal(t, 2, result.Failed)
		assert.Equal(t, []string{"https://example.com/a.png"}, result.Resources)

		failures := rec.ofType(harvest.PageFailed)
		require.Len(t, failures, 2)
		for _, e := range failures {
			assert.Equal(t, harvest.ENETWORK, harvest.ErrorCode(e.Error))
			assert.Equal(t, 2, e.Depth)
		}
	})

	t.Run("zero visited pages reports the min sentinel", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{})

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, testConfig(2), nil)

		require.NoError(t, err)
		assert.Equal(t, 0, result.Visited)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, harvest.NoPages, result.MinPerPage)
		assert.Equal(t, 0, result.MaxPerPage)
	})

	t.Run("recovers from a panicking parser", func(t *testing.T) {
		t.Parallel()

		c := &crawl.Crawler{
			Transport: &mock.Transport{
				FetchFn: site{"https://example.com/": ``}.fetch,
			},
			Parser: &mock.DocumentParser{
				ParseFn: func(io.Reader) (harvest.Document, error) {
					panic("boom")
				},
			},
		}
		rec := &recorder{}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, testConfig(1), rec.progress)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		failures := rec.ofType(harvest.PageFailed)
		require.Len(t, failures, 1)
		assert.Equal(t, harvest.EINTERNAL, harvest.ErrorCode(failures[0].Error))
	})

	t.Run("normalizes seeds", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{"https://example.com/a/c": `<img src="x.png">`})

		result, err := c.Crawl(context.Background(), []string{"HTTPS://Example.COM/a/b/../c#frag"}, testConfig(1), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Visited)
		assert.Equal(t, []string{"https://example.com/a/x.png"}, result.Resources)
	})

	t.Run("returns partial result when canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := newTestCrawler(site{"https://example.com/": ``})

		result, err := c.Crawl(ctx, []string{"https://example.com/"}, testConfig(2), nil)

		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, result)
		assert.Equal(t, 0, result.Visited)
		assert.Equal(t, 1, result.Seen)
	})
}

func TestCrawler_Crawl_validation(t *testing.T) {
	t.Parallel()

	c := newTestCrawler(site{})

	tests := []struct {
		name  string
		seeds []string
		cfg   func(*harvest.CrawlConfig)
	}{
		{"no seeds", nil, func(*harvest.CrawlConfig) {}},
		{"relative seed", []string{"/docs"}, func(*harvest.CrawlConfig) {}},
		{"zero depth", []string{"https://example.com/"}, func(c *harvest.CrawlConfig) { c.Depth = 0 }},
		{"zero workers", []string{"https://example.com/"}, func(c *harvest.CrawlConfig) { c.Workers = 0 }},
		{"zero site cap", []string{"https://example.com/"}, func(c *harvest.CrawlConfig) { c.SiteCap = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(1)
			tt.cfg(&cfg)

			_, err := c.Crawl(context.Background(), tt.seeds, cfg, nil)

			require.Error(t, err)
			assert.Equal(t, harvest.EINVALID, harvest.ErrorCode(err))
		})
	}
}

func TestCrawler_Crawl_Concurrency(t *testing.T) {
	t.Parallel()

	t.Run("never exceeds the worker count", func(t *testing.T) {
		t.Parallel()

		const numPages = 20
		const workers = 3

		var maxConcurrent atomic.Int32
		var currentConcurrent atomic.Int32

		var links strings.Builder
		for i := 1; i <= numPages; i++ {
			fmt.Fprintf(&links, `<a href="/page%d">%d</a>`, i, i)
		}
		c := &crawl.Crawler{
			Transport: &mock.Transport{
				FetchFn: func(_ context.Context, url string) (*harvest.Response, error) {
					current := currentConcurrent.Add(1)
					for {
						max := maxConcurrent.Load()
						if current <= max || maxConcurrent.CompareAndSwap(max, current) {
							break
						}
					}
					time.Sleep(20 * time.Millisecond)
					currentConcurrent.Add(-1)

					if url == "https://example.com/" {
						return htmlResponse(url, links.String()), nil
					}
					return htmlResponse(url, `<img src="x.png">`), nil
				},
			},
			Parser: goquery.NewParser(),
		}
		cfg := testConfig(2)
		cfg.Workers = workers

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, cfg, nil)

		require.NoError(t, err)
		assert.Equal(t, numPages+1, result.Visited)
		assert.Len(t, result.Resources, numPages)
		assert.LessOrEqual(t, maxConcurrent.Load(), int32(workers))
		assert.GreaterOrEqual(t, maxConcurrent.Load(), int32(2),
			"expected parallel fetches with %d workers", workers)
	})

	t.Run("finishes each wave before starting the next", func(t *testing.T) {
		t.Parallel()

		s := site{
			"https://example.com/":  `<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>`,
			"https://example.com/a": `<a href="/a1">a1</a>`,
			"https://example.com/b": `<a href="/b1">b1</a>`,
			"https://example.com/c": `<a href="/c1">c1</a>`,
			"https://example.com/a1": ``,
			"https://example.com/b1": ``,
			"https://example.com/c1": ``,
		}
		rec := &recorder{}

		result, err := newTestCrawler(s).Crawl(context.Background(), []string{"https://example.com/"}, testConfig(3), rec.progress)

		require.NoError(t, err)
		assert.Equal(t, 7, result.Visited)
		assert.Equal(t, 3, result.Waves)

		depth := 0
		for _, e := range rec.events {
			switch e.Type {
			case harvest.WaveStarted:
				assert.Equal(t, depth+1, e.Depth)
				depth = e.Depth
			case harvest.PageVisited, harvest.PageFailed:
				assert.Equal(t, depth, e.Depth, "page event for %s outside its wave", e.URL)
			case harvest.WaveFinished:
				assert.Equal(t, depth, e.Depth)
			}
		}
	})
}

func TestCrawler_Crawl_CapPolicy(t *testing.T) {
	t.Parallel()

	// The first seed's links fill the cap. With one worker the second seed is
	// handed out only after the first page completes.
	s := site{
		"https://example.com/one": `<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>`,
		"https://example.com/two": `<img src="two.png">`,
	}
	seeds := []string{"https://example.com/one", "https://example.com/two"}

	t.Run("finish wave dispatches the rest of the wave", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(3)
		cfg.Workers = 1
		cfg.SiteCap = 3
		cfg.CapPolicy = harvest.CapFinishWave

		result, err := newTestCrawler(s).Crawl(context.Background(), seeds, cfg, nil)

		require.NoError(t, err)
		assert.True(t, result.Capped)
		assert.Equal(t, 3, result.Seen)
		assert.Equal(t, 2, result.Visited)
		assert.Equal(t, 1, result.Waves)
		assert.Equal(t, []string{"https://example.com/two.png"}, result.Resources)
	})

	t.Run("stop dispatch drops the rest of the wave", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(3)
		cfg.Workers = 1
		cfg.SiteCap = 3
		cfg.CapPolicy = harvest.CapStopDispatch

		result, err := newTestCrawler(s).Crawl(context.Background(), seeds, cfg, nil)

		require.NoError(t, err)
		assert.True(t, result.Capped)
		assert.Equal(t, 3, result.Seen)
		assert.Equal(t, 1, result.Visited)
		assert.Empty(t, result.Resources)
	})

	t.Run("stop dispatch still visits seeds that filled the cap", func(t *testing.T) {
		t.Parallel()

		s := site{
			"https://example.com/": `<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a>` +
				`<a href="/4">4</a><a href="/5">5</a><img src="seed.png">`,
		}
		cfg := testConfig(3)
		cfg.SiteCap = 1
		cfg.CapPolicy = harvest.CapStopDispatch

		result, err := newTestCrawler(s).Crawl(context.Background(), []string{"https://example.com/"}, cfg, nil)

		require.NoError(t, err)
		assert.True(t, result.Capped)
		assert.Equal(t, 1, result.Seen)
		assert.Equal(t, 1, result.Visited)
		assert.Equal(t, 1, result.Waves)
		assert.Equal(t, []string{"https://example.com/seed.png"}, result.Resources)
	})
}

func TestCrawler_Crawl_Sitemaps(t *testing.T) {
	t.Parallel()

	t.Run("adds filtered sitemap URLs to the first wave", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{
			"https://example.com/":      ``,
			"https://example.com/extra": `<img src="e.png">`,
		})
		c.Sitemaps = &mock.SitemapService{
			DiscoverURLsFn: func(_ context.Context, baseURL string) ([]string, error) {
				assert.Equal(t, "https://example.com/", baseURL)
				return []string{
					"https://example.com/extra",
					"https://example.com/",
					"https://other.com/page",
				}, nil
			},
		}
		cfg := testConfig(1)
		cfg.Sitemaps = true
		cfg.Filter.AllowDomains = []string{"example.com"}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, cfg, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Seen)
		assert.Equal(t, 2, result.Visited)
		assert.Equal(t, []string{"https://example.com/e.png"}, result.Resources)
	})

	t.Run("reports sitemap failure and keeps crawling", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{"https://example.com/": ``})
		c.Sitemaps = &mock.SitemapService{
			DiscoverURLsFn: func(context.Context, string) ([]string, error) {
				return nil, harvest.Errorf(harvest.ENETWORK, "sitemap unavailable")
			},
		}
		cfg := testConfig(1)
		cfg.Sitemaps = true
		rec := &recorder{}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, cfg, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Visited)
		assert.Len(t, rec.ofType(harvest.PageFailed), 1)
	})

	t.Run("ignores sitemaps unless enabled", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(site{"https://example.com/": ``})
		c.Sitemaps = &mock.SitemapService{}

		result, err := c.Crawl(context.Background(), []string{"https://example.com/"}, testConfig(1), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Seen)
	})
}
