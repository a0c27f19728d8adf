package http

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/harvest"
)

// maxSitemaps bounds how many sitemap documents one discovery reads,
// counting nested index entries.
const maxSitemaps = 64

// Ensure SitemapService implements harvest.SitemapService.
var _ harvest.SitemapService = (*SitemapService)(nil)

// SitemapService discovers page URLs from website sitemaps via HTTP.
type SitemapService struct {
	client *http.Client
}

// NewSitemapService creates a new SitemapService with the given HTTP client.
// If client is nil, http.DefaultClient is used.
func NewSitemapService(client *http.Client) *SitemapService {
	if client == nil {
		client = http.DefaultClient
	}
	return &SitemapService{client: client}
}

// DiscoverURLs returns the page URLs listed in the sitemaps of baseURL's
// site, in sitemap order without repeats. Sitemaps are located through
// robots.txt, falling back to /sitemap.xml. Gzipped sitemaps are supported.
//
// When baseURL has a non-root path (e.g., https://example.com/docs/),
// only URLs below that path are returned.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, harvest.Errorf(harvest.EINVALID, "invalid base URL %q", baseURL)
	}
	prefix := strings.TrimSuffix(base.Path, "/")
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}

	sitemaps, err := s.locate(ctx, root)
	if err != nil {
		return nil, err
	}

	w := &sitemapWalk{service: s, visited: make(map[string]bool), seen: make(map[string]bool)}
	for _, sitemapURL := range sitemaps {
		if err := w.read(ctx, sitemapURL); err != nil {
			return nil, err
		}
	}

	urls := make([]string, 0, len(w.urls))
	for _, u := range w.urls {
		if underPath(u, prefix) {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// locate returns the sitemaps declared in robots.txt, or /sitemap.xml if it
// exists. A site with neither yields no sitemaps.
func (s *SitemapService) locate(ctx context.Context, root *url.URL) ([]string, error) {
	robots := root.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	if declared, err := s.robotsSitemaps(ctx, robots); err == nil && len(declared) > 0 {
		return declared, nil
	}

	fallback := root.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()
	exists, err := s.exists(ctx, fallback)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	if !exists {
		return nil, nil
	}
	return []string{fallback}, nil
}

// robotsSitemaps extracts Sitemap: directives from robots.txt.
func (s *SitemapService) robotsSitemaps(ctx context.Context, robotsURL string) ([]string, error) {
	body, err := s.get(ctx, robotsURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var sitemaps []string
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "sitemap") {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			sitemaps = append(sitemaps, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading robots.txt: %w", err)
	}
	return sitemaps, nil
}

// sitemapWalk accumulates URLs across nested sitemap documents.
type sitemapWalk struct {
	service *SitemapService
	visited map[string]bool
	seen    map[string]bool
	urls    []string
}

// read fetches one sitemap document and descends into sitemap indexes.
func (w *sitemapWalk) read(ctx context.Context, sitemapURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.visited[sitemapURL] || len(w.visited) >= maxSitemaps {
		return nil
	}
	w.visited[sitemapURL] = true

	body, err := w.service.get(ctx, sitemapURL)
	if err != nil {
		return err
	}
	defer body.Close()

	var r io.Reader = body
	if strings.HasSuffix(strings.ToLower(sitemapURL), ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return harvest.Errorf(harvest.EINVALID, "sitemap %s: %v", sitemapURL, err)
		}
		defer gz.Close()
		r = gz
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return harvest.Errorf(harvest.EINVALID, "parsing sitemap %s: %v", sitemapURL, err)
	}
	root := doc.Root()
	if root == nil {
		return harvest.Errorf(harvest.EINVALID, "empty sitemap %s", sitemapURL)
	}

	if root.Tag == "sitemapindex" {
		for _, loc := range locs(root, "sitemap") {
			if err := w.read(ctx, loc); err != nil {
				return err
			}
		}
		return nil
	}

	for _, loc := range locs(root, "url") {
		if !w.seen[loc] {
			w.seen[loc] = true
			w.urls = append(w.urls, loc)
		}
	}
	return nil
}

// locs returns the trimmed <loc> text of each child element named tag.
func locs(root *etree.Element, tag string) []string {
	var out []string
	for _, el := range root.SelectElements(tag) {
		loc := el.SelectElement("loc")
		if loc == nil {
			continue
		}
		if u := strings.TrimSpace(loc.Text()); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// underPath reports whether rawURL's path is prefix or below it, respecting
// segment boundaries: /docs matches /docs/intro but not /documentation.
func underPath(rawURL, prefix string) bool {
	if prefix == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}

// get fetches a URL and returns the response body.
func (s *SitemapService) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "invalid sitemap URL %q: %v", target, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, harvest.Errorf(harvest.ENETWORK, "GET %s: %v", target, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, harvest.Errorf(harvest.ENETWORK, "HTTP %d for %s", resp.StatusCode, target)
	}
	return resp.Body, nil
}

// exists reports whether a HEAD request for target returns 200 OK.
func (s *SitemapService) exists(ctx context.Context, target string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}
