package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/crawl"
	"github.com/fwojciec/harvest/yaml"
)

// Default crawl settings, used when neither flags nor the profile set them.
const (
	DefaultDepth    = 3
	DefaultWorkers  = 10
	DefaultSelector = "img"
	DefaultSiteCap  = harvest.Unbounded
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx       context.Context
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *slog.Logger
	Profile   *yaml.Profile
	Crawler   *crawl.Crawler
	Writer    harvest.ResourceWriter
	Sizes     harvest.SizeProber
	Downloads harvest.DownloadService
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool   `short:"v" help:"Log every fetch and write to stderr"`
	Profile string `help:"Crawl profile YAML file (default: $XDG_CONFIG_HOME/harvest/profile.yaml)" type:"path"`

	Crawl   CrawlCmd   `cmd:"" help:"Crawl pages and download the resources they reference"`
	Get     GetCmd     `cmd:"" help:"Download a single resource"`
	History HistoryCmd `cmd:"" help:"List recorded downloads"`
}

// CrawlCmd is the "crawl" subcommand. Zero-valued settings fall back to the
// profile, then to the package defaults.
type CrawlCmd struct {
	URLs []string `arg:"" name:"url" help:"Seed page URLs"`
	Dir  string   `short:"o" default:"." help:"Directory to save resources to" type:"path"`

	Depth     int    `short:"d" help:"Number of waves to crawl, seeds included (default 3)"`
	Workers   int    `short:"w" help:"Pages fetched concurrently (default 10)"`
	SiteCap   int    `name:"site-cap" help:"Maximum URLs to admit, -1 for no limit (default -1)"`
	CapPolicy string `name:"cap-policy" help:"What the capped wave does: finish-wave or stop-dispatch"`
	Selector  string `short:"s" help:"CSS selector for resource elements (default img)"`
	Attribute string `short:"a" help:"Attribute holding the resource URL (default src)"`
	Distinct  bool   `help:"Drop repeated resource URLs"`
	Sitemap   bool   `help:"Add sitemap URLs of each seed's site to the first wave"`
	Render    bool   `short:"r" help:"Render pages in headless Chrome before parsing"`

	Timeout time.Duration `short:"t" default:"30s" help:"Fetch timeout per page"`

	Allow  []string `help:"Allowed domains, *.suffix wildcards accepted (repeatable)"`
	Deny   []string `help:"Denied domains (repeatable)"`
	Scheme []string `help:"Allowed URL schemes (default http, https)"`
	Ext    []string `help:"Allowed page extensions, empty for extension-less paths (repeatable)"`

	Policy string `short:"p" help:"Collision policy: edit-name, skip, strict or write-over"`
	Yes    bool   `short:"y" help:"Download without asking for confirmation"`
	DryRun bool   `name:"dry-run" help:"Print the resource URLs instead of downloading"`
}

// GetCmd is the "get" subcommand.
type GetCmd struct {
	URL    string `arg:"" help:"Resource URL"`
	Dir    string `arg:"" optional:"" default:"." help:"Directory to save to" type:"path"`
	Name   string `short:"n" help:"File name without extension (default: taken from the URL)"`
	Policy string `short:"p" help:"Collision policy: edit-name, skip, strict or write-over"`
}

// HistoryCmd is the "history" subcommand.
type HistoryCmd struct {
	RunID string `name:"run" help:"Only show downloads of this crawl run"`
	URL   string `help:"Only show downloads of this URL"`
	Limit int    `short:"n" default:"20" help:"Maximum number of records"`
}
