package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/alecthomas/kong"
	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/crawl"
	"github.com/fwojciec/harvest/fs"
	"github.com/fwojciec/harvest/goquery"
	harvesthttp "github.com/fwojciec/harvest/http"
	"github.com/fwojciec/harvest/rod"
	harvestslog "github.com/fwojciec/harvest/slog"
	"github.com/fwojciec/harvest/sqlite"
	"github.com/fwojciec/harvest/yaml"
)

// AppName names the config and data directories.
const AppName = "harvest"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// Profile path used when --profile is not given. Set before calling Run().
	ProfilePath string

	// SQLite database used by the history service.
	DB *sqlite.DB

	// Services for end-to-end testing. When set, Run uses them instead of
	// building network-backed implementations.
	Transport harvest.Transport
	Downloads harvest.DownloadService
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath:      defaultDBPath(),
		ProfilePath: filepath.Join(xdg.ConfigHome, AppName, "profile.yaml"),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name(AppName),
		kong.Description("Crawl web pages and download the resources they reference"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'harvest --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	deps.Logger = newLogger(stderr, cli.Verbose)

	profile, err := m.loadProfile(cli.Profile)
	if err != nil {
		return err
	}
	deps.Profile = profile

	// Open database
	downloads := m.Downloads
	if downloads == nil {
		if dir := filepath.Dir(m.DBPath); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		m.DB = sqlite.NewDB(m.DBPath)
		if err := m.DB.Open(); err != nil {
			fmt.Fprintf(stderr, "Hint: Set HARVEST_DB to use a different database path\n")
			return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
		}
		defer m.Close()
		downloads = sqlite.NewDownloadService(m.DB)
	}
	deps.Downloads = downloads

	command := strings.Fields(kongCtx.Command())[0]
	if command == "history" {
		return kongCtx.Run(deps)
	}

	// Resources are always fetched over plain HTTP, even when pages are rendered.
	transport := m.Transport
	if transport == nil {
		t := harvesthttp.NewTransport(harvesthttp.WithTimeout(0))
		deps.Sizes = t
		transport = t
	} else if p, ok := transport.(harvest.SizeProber); ok {
		deps.Sizes = p
	}
	defer transport.Close()
	deps.Writer = harvestslog.NewLoggingWriter(fs.NewWriter(transport), deps.Logger)

	if command == "crawl" {
		pages := transport
		if m.Transport == nil {
			pages = harvesthttp.NewTransport(harvesthttp.WithTimeout(cli.Crawl.Timeout))
			if cli.Crawl.Render || profile.Render {
				rt, err := rod.NewTransport(rod.WithFetchTimeout(cli.Crawl.Timeout))
				if err != nil {
					fmt.Fprintln(stderr, "Hint: Chrome or Chromium must be installed for --render")
					return fmt.Errorf("failed to start browser: %w", err)
				}
				pages = rt
			}
			defer pages.Close()
		}
		deps.Crawler = &crawl.Crawler{
			Transport: harvestslog.NewLoggingTransport(pages, deps.Logger),
			Parser:    goquery.NewParser(),
			Sitemaps:  harvestslog.NewLoggingSitemapService(harvesthttp.NewSitemapService(nil), deps.Logger),
		}
	}

	return kongCtx.Run(deps)
}

// loadProfile reads the profile at path, or at the default location when
// path is empty. A missing default profile yields an empty profile.
func (m *Main) loadProfile(path string) (*yaml.Profile, error) {
	explicit := path != ""
	if !explicit {
		path = m.ProfilePath
	}
	if path == "" {
		return &yaml.Profile{}, nil
	}

	profile, err := yaml.LoadProfile(path)
	if errors.Is(err, yaml.ErrProfileNotFound) && !explicit {
		return &yaml.Profile{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load profile %q: %w", path, err)
	}
	return profile, nil
}

// newLogger logs to w at warn level, or debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func defaultDBPath() string {
	if path := os.Getenv("HARVEST_DB"); path != "" {
		return path
	}
	return filepath.Join(xdg.DataHome, AppName, "history.db")
}
