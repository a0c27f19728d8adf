package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var _ harvest.ResourceWriter = (*ResourceWriter)(nil)

// ResourceWriter is a mock implementation of harvest.ResourceWriter.
type ResourceWriter struct {
	WriteFn func(ctx context.Context, req harvest.WriteRequest) (*harvest.WriteOutcome, error)
}

func (w *ResourceWriter) Write(ctx context.Context, req harvest.WriteRequest) (*harvest.WriteOutcome, error) {
	return w.WriteFn(ctx, req)
}
