package mock

import "github.com/fwojciec/harvest"

var _ harvest.URLFilter = (*URLFilter)(nil)

// URLFilter is a mock implementation of harvest.URLFilter.
// Nil predicate functions allow everything.
type URLFilter struct {
	AllowDomainFn    func(host string) bool
	AllowSchemeFn    func(scheme string) bool
	AllowExtensionFn func(ext string) bool
}

func (f *URLFilter) AllowDomain(host string) bool {
	if f.AllowDomainFn == nil {
		return true
	}
	return f.AllowDomainFn(host)
}

func (f *URLFilter) AllowScheme(scheme string) bool {
	if f.AllowSchemeFn == nil {
		return true
	}
	return f.AllowSchemeFn(scheme)
}

func (f *URLFilter) AllowExtension(ext string) bool {
	if f.AllowExtensionFn == nil {
		return true
	}
	return f.AllowExtensionFn(ext)
}
