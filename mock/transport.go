package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var (
	_ harvest.Transport  = (*Transport)(nil)
	_ harvest.SizeProber = (*SizeProber)(nil)
)

// Transport is a mock implementation of harvest.Transport.
type Transport struct {
	FetchFn func(ctx context.Context, url string) (*harvest.Response, error)
	CloseFn func() error
}

func (t *Transport) Fetch(ctx context.Context, url string) (*harvest.Response, error) {
	return t.FetchFn(ctx, url)
}

func (t *Transport) Close() error {
	return t.CloseFn()
}

// SizeProber is a mock implementation of harvest.SizeProber.
type SizeProber struct {
	SizeFn func(ctx context.Context, url string) (int64, error)
}

func (p *SizeProber) Size(ctx context.Context, url string) (int64, error) {
	return p.SizeFn(ctx, url)
}
