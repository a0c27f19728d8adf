package main

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/goquery"
	harvestslog "github.com/fwojciec/harvest/slog"
	"github.com/fwojciec/harvest/yaml"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	cfg, policy, err := c.config(deps.Profile)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}

	logEvent := harvestslog.NewCrawlLogger(deps.Logger)
	progress := func(event harvest.CrawlEvent) {
		logEvent(event)
		switch event.Type {
		case harvest.WaveFinished:
			fmt.Fprintf(deps.Stderr, "  depth %d: %s pages, %s URLs seen\n",
				event.Depth, humanize.Comma(int64(event.Pages)), humanize.Comma(int64(event.Seen)))
		case harvest.CapReached:
			fmt.Fprintf(deps.Stderr, "  site cap reached after %s URLs\n", humanize.Comma(int64(event.Seen)))
		}
	}

	result, err := deps.Crawler.Crawl(deps.Ctx, c.URLs, cfg, progress)
	if err != nil {
		if result != nil {
			fmt.Fprintf(deps.Stderr, "crawl interrupted after %d pages\n", result.Visited)
		} else {
			fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		}
		return err
	}

	if len(result.Resources) == 0 {
		fmt.Fprintf(deps.Stdout, "No resources found after visiting %s pages.\n", humanize.Comma(int64(result.Visited)))
		return nil
	}

	if c.DryRun {
		for _, u := range result.Resources {
			fmt.Fprintln(deps.Stdout, u)
		}
		return nil
	}

	if !c.Yes {
		size := probeSizes(deps, result.Resources, cfg.Workers)
		printSummary(deps.Stdout, result, size)
		ok, err := confirm(deps.Stdin, deps.Stdout)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(deps.Stdout, "Aborted.")
			return nil
		}
	}

	return c.download(deps, result.Resources, policy, cfg.Workers)
}

// config layers the flags over the profile over the defaults.
func (c *CrawlCmd) config(profile *yaml.Profile) (harvest.CrawlConfig, harvest.CollisionPolicy, error) {
	cfg := harvest.CrawlConfig{
		Depth:    DefaultDepth,
		Workers:  DefaultWorkers,
		SiteCap:  DefaultSiteCap,
		Selector: DefaultSelector,
	}
	policy := harvest.EditName
	if profile != nil {
		profile.Apply(&cfg)
		policy = profile.CollisionPolicy(policy)
	}

	if c.Depth != 0 {
		cfg.Depth = c.Depth
	}
	if c.Workers != 0 {
		cfg.Workers = c.Workers
	}
	if c.SiteCap != 0 {
		cfg.SiteCap = c.SiteCap
	}
	if c.CapPolicy != "" {
		p, err := harvest.ParseCapPolicy(c.CapPolicy)
		if err != nil {
			return cfg, policy, err
		}
		cfg.CapPolicy = p
	}
	if c.Selector != "" {
		cfg.Selector = c.Selector
	}
	if c.Attribute != "" {
		cfg.Attribute = c.Attribute
	}
	cfg.Distinct = cfg.Distinct || c.Distinct
	cfg.Sitemaps = cfg.Sitemaps || c.Sitemap

	if len(c.Allow) > 0 {
		cfg.Filter.AllowDomains = c.Allow
	}
	if len(c.Deny) > 0 {
		cfg.Filter.DenyDomains = c.Deny
	}
	if len(c.Scheme) > 0 {
		cfg.Filter.Schemes = c.Scheme
	}
	if len(c.Ext) > 0 {
		cfg.Filter.Extensions = c.Ext
	}

	if c.Policy != "" {
		p, err := harvest.ParseCollisionPolicy(c.Policy)
		if err != nil {
			return cfg, policy, err
		}
		policy = p
	}

	if err := cfg.Validate(); err != nil {
		return cfg, policy, err
	}
	if err := goquery.ValidateSelector(cfg.Selector); err != nil {
		return cfg, policy, err
	}
	return cfg, policy, nil
}

// download writes every resource with up to workers writes in flight and
// records each success under a fresh run ID. Failed writes are reported and
// skipped.
func (c *CrawlCmd) download(deps *Dependencies, resources []string, policy harvest.CollisionPolicy, workers int) error {
	runID := uuid.NewString()

	var (
		saved, skipped, failed atomic.Int64
		bytes                  atomic.Int64
		mu                     sync.Mutex
	)

	var g errgroup.Group
	g.SetLimit(workers)
	for _, u := range resources {
		g.Go(func() error {
			if deps.Ctx.Err() != nil {
				return nil
			}
			out, err := deps.Writer.Write(deps.Ctx, harvest.WriteRequest{
				URL:    u,
				Dir:    c.Dir,
				Policy: policy,
			})
			if err != nil {
				failed.Add(1)
				mu.Lock()
				fmt.Fprintf(deps.Stderr, "  skip %s: %v\n", u, err)
				mu.Unlock()
				return nil
			}
			if out.Skipped {
				skipped.Add(1)
			} else {
				saved.Add(1)
				bytes.Add(out.Bytes)
			}
			recordDownload(deps, runID, u, policy, out)
			return nil
		})
	}
	_ = g.Wait()

	fmt.Fprintf(deps.Stdout, "Saved %s resources (%s) to %s, %d skipped, %d failed\n",
		humanize.Comma(saved.Load()), humanize.IBytes(uint64(bytes.Load())), c.Dir, skipped.Load(), failed.Load())
	fmt.Fprintf(deps.Stdout, "Run %s\n", runID)
	return deps.Ctx.Err()
}

// recordDownload adds a write to the history. History failures are logged
// and never fail the download.
func recordDownload(deps *Dependencies, runID, url string, policy harvest.CollisionPolicy, out *harvest.WriteOutcome) {
	d := &harvest.Download{
		RunID:   runID,
		URL:     url,
		Path:    out.Path,
		Bytes:   out.Bytes,
		Hash:    out.Hash,
		Policy:  policy.String(),
		Skipped: out.Skipped,
	}
	if err := deps.Downloads.CreateDownload(deps.Ctx, d); err != nil {
		deps.Logger.Warn("record download", "url", url, "err", err)
	}
}
