package crawl

// BloomCap exposes the size in bits of the frontier's Bloom pre-check.
func (f *Frontier) BloomCap() uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.Cap()
}
