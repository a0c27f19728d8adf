package harvest

import "context"

// SitemapService discovers URLs from website sitemaps.
type SitemapService interface {
	// DiscoverURLs finds all URLs from a site's sitemap.
	// It first checks robots.txt for sitemap directives, then falls back
	// to /sitemap.xml. Sitemap indexes are resolved recursively.
	// A site without a sitemap yields an empty slice.
	DiscoverURLs(ctx context.Context, baseURL string) ([]string, error)
}
