package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fwojciec/harvest"
)

// shortIDLen is how much of a run ID the history listing shows.
const shortIDLen = 8

// Run executes the history command.
func (c *HistoryCmd) Run(deps *Dependencies) error {
	filter := harvest.DownloadFilter{Limit: c.Limit}
	if c.RunID != "" {
		filter.RunID = &c.RunID
	}
	if c.URL != "" {
		filter.URL = &c.URL
	}

	downloads, err := deps.Downloads.FindDownloads(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	if len(downloads) == 0 {
		fmt.Fprintln(deps.Stdout, "No downloads recorded. Use 'harvest crawl' or 'harvest get' to download resources.")
		return nil
	}

	for _, d := range downloads {
		size := humanize.IBytes(uint64(d.Bytes))
		if d.Skipped {
			size = "skipped"
		}
		fmt.Fprintf(deps.Stdout, "%s  %s  %s  %s  %s\n",
			shortID(d.RunID), humanize.Time(d.CreatedAt), size, d.Path, d.URL)
	}

	return nil
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}
