// Package bloom provides a probabilistic URL membership pre-check.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter answers "definitely not seen" without touching the exact URL set.
// It is not safe for concurrent use; callers hold their own lock.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected URLs
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add records a URL.
func (f *Filter) Add(url string) {
	f.f.AddString(url)
}

// MayContain returns false if the URL was never added.
// A true result may be a false positive.
func (f *Filter) MayContain(url string) bool {
	return f.f.TestString(url)
}

// EstimatedCount returns the approximate number of URLs added.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}

// Cap returns the size of the filter in bits.
func (f *Filter) Cap() uint {
	return f.f.Cap()
}
