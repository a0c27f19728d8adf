package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ harvest.DownloadService = (*DownloadService)(nil)

// DownloadService implements harvest.DownloadService using SQLite.
type DownloadService struct {
	db *DB
}

// NewDownloadService creates a new DownloadService.
func NewDownloadService(db *DB) *DownloadService {
	return &DownloadService{db: db}
}

// CreateDownload records a download with a generated ID and timestamp.
func (s *DownloadService) CreateDownload(ctx context.Context, d *harvest.Download) error {
	if err := d.Validate(); err != nil {
		return err
	}

	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (id, run_id, url, path, bytes, hash, policy, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.RunID, d.URL, d.Path, d.Bytes, d.Hash, d.Policy, d.Skipped, formatTime(d.CreatedAt))

	return err
}

// FindDownloads retrieves downloads matching the filter, newest first.
func (s *DownloadService) FindDownloads(ctx context.Context, filter harvest.DownloadFilter) ([]*harvest.Download, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, run_id, url, path, bytes, hash, policy, skipped, created_at FROM downloads WHERE 1=1")

	if filter.RunID != nil {
		query.WriteString(" AND run_id = ?")
		args = append(args, *filter.RunID)
	}
	if filter.URL != nil {
		query.WriteString(" AND url = ?")
		args = append(args, *filter.URL)
	}

	query.WriteString(" ORDER BY created_at DESC, rowid DESC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var downloads []*harvest.Download
	for rows.Next() {
		var d harvest.Download
		var createdAt string

		if err := rows.Scan(&d.ID, &d.RunID, &d.URL, &d.Path, &d.Bytes, &d.Hash,
			&d.Policy, &d.Skipped, &createdAt); err != nil {
			return nil, err
		}

		if d.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
			return nil, err
		}

		downloads = append(downloads, &d)
	}

	return downloads, rows.Err()
}
