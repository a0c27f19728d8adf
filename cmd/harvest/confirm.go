package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/fwojciec/harvest"
	"golang.org/x/sync/errgroup"
)

// summaryEdge is how many URLs are listed from each end of a long list.
const summaryEdge = 2

// downloadSize is the advertised size of a set of resources.
type downloadSize struct {
	Bytes   int64
	Unknown int
}

// probeSizes sums the advertised sizes of urls with up to workers probes in
// flight. Resources whose size cannot be determined are counted as unknown.
func probeSizes(deps *Dependencies, urls []string, workers int) downloadSize {
	if deps.Sizes == nil {
		return downloadSize{Unknown: len(urls)}
	}

	var total, unknown atomic.Int64
	var g errgroup.Group
	g.SetLimit(workers)
	for _, u := range urls {
		g.Go(func() error {
			n, err := deps.Sizes.Size(deps.Ctx, u)
			if err != nil || n < 0 {
				unknown.Add(1)
				return nil
			}
			total.Add(n)
			return nil
		})
	}
	_ = g.Wait()
	return downloadSize{Bytes: total.Load(), Unknown: int(unknown.Load())}
}

// printSummary describes what a download would fetch.
func printSummary(w io.Writer, result *harvest.CrawlResult, size downloadSize) {
	fmt.Fprintf(w, "Found %s files to download with a total download size of %s after visiting %s pages.\n",
		humanize.Comma(int64(len(result.Resources))),
		humanize.IBytes(uint64(size.Bytes)),
		humanize.Comma(int64(result.Visited)))
	if size.Unknown > 0 {
		fmt.Fprintf(w, "The size of %s files is unknown.\n", humanize.Comma(int64(size.Unknown)))
	}

	for _, u := range abbreviate(result.Resources) {
		fmt.Fprintf(w, "\t%s\n", u)
	}

	if result.Visited > 0 {
		fmt.Fprintf(w, "The minimum number of elements matching the selector on the visited pages is %s and the maximum is %s.\n",
			humanize.Comma(int64(result.MinPerPage)), humanize.Comma(int64(result.MaxPerPage)))
	}
}

// abbreviate keeps the first and last two of more than five URLs.
func abbreviate(urls []string) []string {
	if len(urls) <= 2*summaryEdge+1 {
		return urls
	}
	out := append([]string(nil), urls[:summaryEdge]...)
	out = append(out, "...")
	return append(out, urls[len(urls)-summaryEdge:]...)
}

// confirm asks until it reads yes, no, y or n. End of input counts as no.
func confirm(r io.Reader, w io.Writer) (bool, error) {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "Proceed to download (yes, no, y, n)? ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return false, scanner.Err()
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		fmt.Fprintln(w, `Respond with "yes" or "no"`)
	}
}
