package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var _ harvest.DownloadService = (*DownloadService)(nil)

// DownloadService is a mock implementation of harvest.DownloadService.
type DownloadService struct {
	CreateDownloadFn func(ctx context.Context, d *harvest.Download) error
	FindDownloadsFn  func(ctx context.Context, filter harvest.DownloadFilter) ([]*harvest.Download, error)
}

func (s *DownloadService) CreateDownload(ctx context.Context, d *harvest.Download) error {
	return s.CreateDownloadFn(ctx, d)
}

func (s *DownloadService) FindDownloads(ctx context.Context, filter harvest.DownloadFilter) ([]*harvest.Download, error) {
	return s.FindDownloadsFn(ctx, filter)
}
