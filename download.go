package harvest

import (
	"context"
	"time"
)

// Download records a completed resource write.
type Download struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	Bytes     int64     `json:"bytes"`
	Hash      string    `json:"hash"`
	Policy    string    `json:"policy"`
	Skipped   bool      `json:"skipped"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate returns an error if the download contains invalid fields.
func (d *Download) Validate() error {
	if d.URL == "" {
		return Errorf(EINVALID, "download URL required")
	}
	if d.Path == "" {
		return Errorf(EINVALID, "download path required")
	}
	return nil
}

// DownloadService keeps the history of saved resources.
type DownloadService interface {
	// CreateDownload records a download, assigning its ID and timestamp.
	CreateDownload(ctx context.Context, d *Download) error

	// FindDownloads returns downloads matching the filter, newest first.
	FindDownloads(ctx context.Context, filter DownloadFilter) ([]*Download, error)
}

// DownloadFilter represents a filter for FindDownloads.
type DownloadFilter struct {
	RunID *string `json:"runId"`
	URL   *string `json:"url"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
