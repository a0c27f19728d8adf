package harvest

import (
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/idna"
)

// Resolve resolves ref against the absolute URL base and returns the
// normalized absolute result. The bool result is false when ref is empty,
// when either input cannot be parsed, or when ".." segments climb above the
// root of the path.
//
// Normalization lowercases the scheme and host, converts the host to its
// ASCII form, collapses "." and ".." segments and repeated slashes, and
// strips the fragment. The query string is kept as written.
func Resolve(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil || b.Scheme == "" || b.Host == "" {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}

	// mailto:, javascript: and friends have no hierarchy to combine.
	if r.Scheme != "" && r.Opaque != "" {
		r.Scheme = strings.ToLower(r.Scheme)
		r.Fragment = ""
		r.RawFragment = ""
		return r.String(), true
	}

	var target url.URL
	var escaped string
	switch {
	case r.Scheme != "":
		if r.Host == "" {
			return "", false
		}
		target = url.URL{Scheme: r.Scheme, User: r.User, Host: r.Host, RawQuery: r.RawQuery}
		escaped = r.EscapedPath()
	case r.Host != "":
		target = url.URL{Scheme: b.Scheme, User: r.User, Host: r.Host, RawQuery: r.RawQuery}
		escaped = r.EscapedPath()
	default:
		target = url.URL{Scheme: b.Scheme, User: b.User, Host: b.Host, RawQuery: r.RawQuery}
		refPath := r.EscapedPath()
		switch {
		case refPath == "":
			escaped = b.EscapedPath()
			if r.RawQuery == "" {
				target.RawQuery = b.RawQuery
			}
		case strings.HasPrefix(refPath, "/"):
			escaped = refPath
		default:
			escaped = directory(b.EscapedPath()) + refPath
		}
	}

	cleaned, ok := cleanPath(escaped)
	if !ok {
		return "", false
	}
	host, ok := normalizeHost(target.Host)
	if !ok {
		return "", false
	}
	unescaped, err := url.PathUnescape(cleaned)
	if err != nil {
		return "", false
	}

	target.Scheme = strings.ToLower(target.Scheme)
	target.Host = host
	target.Path = unescaped
	target.RawPath = cleaned
	return target.String(), true
}

// Normalize returns the normalized form of an absolute URL.
func Normalize(rawURL string) (string, bool) {
	return Resolve(rawURL, rawURL)
}

// Ext returns the file extension of the URL's last path segment without the
// leading dot. Directory-style paths and extension-less names return "".
func Ext(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(path.Ext(LastSegment(u.Path)), ".")
}

// LastSegment returns the final element of a URL path, or "" when the path
// names a directory.
func LastSegment(p string) string {
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base(p)
}

// directory returns the escaped path up to and including its last slash.
func directory(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "/"
	}
	return p[:i+1]
}

// dotDecoder decodes percent-encoded periods, which are unreserved.
var dotDecoder = strings.NewReplacer("%2e", ".", "%2E", ".")

// cleanPath collapses dot segments left to right and drops empty segments.
// It reports false if ".." would climb above the root.
func cleanPath(p string) (string, bool) {
	segments := strings.Split(dotDecoder.Replace(p), "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", false
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}

	cleaned := "/" + strings.Join(out, "/")
	switch segments[len(segments)-1] {
	case "", ".", "..":
		if len(out) > 0 {
			cleaned += "/"
		}
	}
	return cleaned, true
}

// hostProfile is the IDNA lookup profile without the STD3 character rules,
// so hosts such as my_host.example.com stay valid.
var hostProfile = idna.New(idna.MapForLookup(), idna.StrictDomainName(false))

// normalizeHost lowercases the host and converts internationalized names to
// their ASCII form. IP literals and ports pass through unchanged.
func normalizeHost(host string) (string, bool) {
	hostname, port := host, ""
	if h, p, err := net.SplitHostPort(host); err == nil {
		hostname, port = h, p
	}
	hostname = strings.ToLower(hostname)
	if hostname == "" {
		return "", false
	}
	if net.ParseIP(strings.Trim(hostname, "[]")) == nil {
		ascii, err := hostProfile.ToASCII(hostname)
		if err != nil {
			return "", false
		}
		hostname = ascii
	}
	if port != "" {
		return net.JoinHostPort(hostname, port), true
	}
	return hostname, true
}
