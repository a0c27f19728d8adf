package harvest

import (
	"net/url"
	"strings"
)

// URLFilter decides which discovered links a crawl follows.
// Rejection is routine filtering, not an error.
type URLFilter interface {
	// AllowDomain reports whether pages on host may be crawled.
	// The host is lowercase and carries no port.
	AllowDomain(host string) bool

	// AllowScheme reports whether the lowercase scheme may be crawled.
	AllowScheme(scheme string) bool

	// AllowExtension reports whether a path with the given file extension
	// may be crawled. The extension has no leading dot and is "" for
	// directory-style and extension-less paths.
	AllowExtension(ext string) bool
}

// Allowed applies the domain, scheme and extension predicates of f to rawURL,
// in that order, stopping at the first rejection.
func Allowed(f URLFilter, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return f.AllowDomain(strings.ToLower(u.Hostname())) &&
		f.AllowScheme(strings.ToLower(u.Scheme)) &&
		f.AllowExtension(strings.ToLower(Ext(rawURL)))
}

// AllowAll is a URLFilter that accepts every URL.
var AllowAll URLFilter = allowAll{}

type allowAll struct{}

func (allowAll) AllowDomain(string) bool    { return true }
func (allowAll) AllowScheme(string) bool    { return true }
func (allowAll) AllowExtension(string) bool { return true }

// DefaultSchemes are the schemes a Policy allows when none are configured.
var DefaultSchemes = []string{"http", "https"}

// Compile-time interface verification.
var _ URLFilter = (*Policy)(nil)

// Policy is a URLFilter driven by allow and deny lists.
//
// Domain entries match a host exactly, or match a host and all of its
// subdomains when written as "*.example.com". An empty allow list allows any
// host that is not denied. An empty scheme list means DefaultSchemes. An
// empty extension list allows every extension; the entry "" stands for
// directory-style and extension-less paths.
type Policy struct {
	allow      hostPatterns
	deny       hostPatterns
	schemes    map[string]struct{}
	extensions map[string]struct{}
}

// NewPolicy builds a Policy from the filter lists of cfg.
func NewPolicy(cfg FilterConfig) *Policy {
	schemes := cfg.Schemes
	if len(schemes) == 0 {
		schemes = DefaultSchemes
	}
	p := &Policy{
		allow:   newHostPatterns(cfg.AllowDomains),
		deny:    newHostPatterns(cfg.DenyDomains),
		schemes: make(map[string]struct{}, len(schemes)),
	}
	for _, s := range schemes {
		p.schemes[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	if len(cfg.Extensions) > 0 {
		p.extensions = make(map[string]struct{}, len(cfg.Extensions))
		for _, ext := range cfg.Extensions {
			ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
			p.extensions[ext] = struct{}{}
		}
	}
	return p
}

// AllowDomain implements URLFilter.
func (p *Policy) AllowDomain(host string) bool {
	if p.deny.match(host) {
		return false
	}
	return p.allow.empty() || p.allow.match(host)
}

// AllowScheme implements URLFilter.
func (p *Policy) AllowScheme(scheme string) bool {
	_, ok := p.schemes[scheme]
	return ok
}

// AllowExtension implements URLFilter.
func (p *Policy) AllowExtension(ext string) bool {
	if p.extensions == nil {
		return true
	}
	_, ok := p.extensions[ext]
	return ok
}

// hostPatterns holds exact hosts and "*." suffix wildcards.
type hostPatterns struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostPatterns(patterns []string) hostPatterns {
	hp := hostPatterns{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, "*."):
			hp.suffixes = append(hp.suffixes, strings.TrimPrefix(value, "*."))
		default:
			hp.exact[value] = struct{}{}
		}
	}
	return hp
}

func (hp hostPatterns) empty() bool {
	return len(hp.exact) == 0 && len(hp.suffixes) == 0
}

func (hp hostPatterns) match(host string) bool {
	if _, ok := hp.exact[host]; ok {
		return true
	}
	for _, suffix := range hp.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
