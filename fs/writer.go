// Package fs saves remote resources to the local filesystem.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/harvest"
)

const (
	// DefaultMaxRenames bounds the EditName search for a free file name.
	DefaultMaxRenames = 1024

	// DefaultChunkSize is the size of the buffer resources are streamed
	// through.
	DefaultChunkSize = 32 * 1024

	// indexName names resources whose URL path ends in a directory.
	indexName = "index"
)

// Ensure Writer implements harvest.ResourceWriter at compile time.
var _ harvest.ResourceWriter = (*Writer)(nil)

// Writer streams resources fetched through a Transport into files.
//
// Target paths are claimed with O_CREATE|O_EXCL, so concurrent writes into
// the same directory never pick the same file name. WriteOver replaces the
// target by renaming a completed temporary file over it.
type Writer struct {
	transport  harvest.Transport
	maxRenames int
	chunkSize  int
}

// Option configures a Writer.
type Option func(*Writer)

// WithMaxRenames sets how many " (n)" suffixes EditName tries.
func WithMaxRenames(n int) Option {
	return func(w *Writer) {
		w.maxRenames = n
	}
}

// WithChunkSize sets the streaming buffer size.
func WithChunkSize(n int) Option {
	return func(w *Writer) {
		w.chunkSize = n
	}
}

// NewWriter creates a Writer that fetches resources through transport.
func NewWriter(transport harvest.Transport, opts ...Option) *Writer {
	w := &Writer{
		transport:  transport,
		maxRenames: DefaultMaxRenames,
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.chunkSize <= 0 {
		w.chunkSize = DefaultChunkSize
	}
	return w
}

// Write saves the resource at req.URL into req.Dir.
//
// The file extension comes from the URL's last path segment, or failing
// that from the response Content-Type. The response is only requested
// before the collision check when the URL carries no extension, so Skip
// and Strict usually settle without touching the network.
func (w *Writer) Write(ctx context.Context, req harvest.WriteRequest) (*harvest.WriteOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stem, ext := nameParts(req)

	var resp *harvest.Response
	defer func() {
		if resp != nil {
			resp.Body.Close()
		}
	}()

	if ext == "" {
		var err error
		if resp, err = w.fetch(ctx, req.URL); err != nil {
			return nil, err
		}
		if ext = contentTypeExt(resp.ContentType()); ext == "" {
			return nil, harvest.Errorf(harvest.EMISSINGEXT, "cannot determine file extension for %s", req.URL)
		}
	}

	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	if req.Policy == harvest.WriteOver {
		return w.replace(ctx, req, stem, ext, resp)
	}

	f, target, err := w.claim(req, stem, ext)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return &harvest.WriteOutcome{Path: target, Skipped: true}, nil
	}

	if resp == nil {
		if resp, err = w.fetch(ctx, req.URL); err != nil {
			f.Close()
			os.Remove(target)
			return nil, err
		}
	}

	n, hash, err := w.stream(f, resp.Body)
	if err != nil {
		os.Remove(target)
		return nil, err
	}
	return &harvest.WriteOutcome{Path: target, Bytes: n, Hash: hash}, nil
}

// claim creates the target file exclusively according to the policy. A nil
// file with a nil error means Skip found the target taken.
func (w *Writer) claim(req harvest.WriteRequest, stem, ext string) (*os.File, string, error) {
	target := filepath.Join(req.Dir, fileName(stem, ext, 0))
	f, err := createExclusive(target)
	if err == nil {
		return f, target, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, "", fmt.Errorf("create %s: %w", target, err)
	}

	switch req.Policy {
	case harvest.Skip:
		return nil, target, nil
	case harvest.Strict:
		return nil, "", harvest.Errorf(harvest.ECOLLISION, "file %s already exists", target)
	}

	for i := 1; i <= w.maxRenames; i++ {
		candidate := filepath.Join(req.Dir, fileName(stem, ext, i))
		f, err := createExclusive(candidate)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", candidate, err)
		}
	}
	return nil, "", harvest.Errorf(harvest.EEXHAUSTED, "no free name for %s after %d attempts", target, w.maxRenames)
}

// replace streams into a temporary file next to the target and renames it
// into place, so a failed download leaves any existing file intact.
func (w *Writer) replace(ctx context.Context, req harvest.WriteRequest, stem, ext string, resp *harvest.Response) (*harvest.WriteOutcome, error) {
	target := filepath.Join(req.Dir, fileName(stem, ext, 0))

	if resp == nil {
		var err error
		if resp, err = w.fetch(ctx, req.URL); err != nil {
			return nil, err
		}
		defer resp.Body.Close()
	}

	_, statErr := os.Lstat(target)
	existed := statErr == nil

	tmp, err := os.CreateTemp(req.Dir, "."+stem+"-*.part")
	if err != nil {
		return nil, fmt.Errorf("create temporary file: %w", err)
	}
	n, hash, err := w.stream(tmp, resp.Body)
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("replace %s: %w", target, err)
	}

	return &harvest.WriteOutcome{Path: target, Bytes: n, Hash: hash, Overwrote: existed}, nil
}

// stream copies body into f in fixed-size chunks and closes f. The returned
// hash is the hex xxHash64 of the bytes written.
func (w *Writer) stream(f *os.File, body io.Reader) (n int64, hash string, err error) {
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", f.Name(), cerr)
		}
	}()

	digest := xxhash.New()
	buf := make([]byte, w.chunkSize)
	n, err = io.CopyBuffer(io.MultiWriter(f, digest), onlyReader{body}, buf)
	if err != nil {
		return n, "", fmt.Errorf("streaming to %s: %w", f.Name(), err)
	}
	return n, fmt.Sprintf("%016x", digest.Sum64()), nil
}

func (w *Writer) fetch(ctx context.Context, url string) (*harvest.Response, error) {
	resp, err := w.transport.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if harvest.ErrorCode(err) == harvest.EINTERNAL {
			return nil, harvest.Errorf(harvest.ENETWORK, "fetch %s: %v", url, err)
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, harvest.Errorf(harvest.ENETWORK, "HTTP %d for %s", resp.StatusCode, url)
	}
	return resp, nil
}

// onlyReader hides WriterTo so io.CopyBuffer uses the fixed-size buffer.
type onlyReader struct {
	io.Reader
}

func createExclusive(name string) (*os.File, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// nameParts returns the file name stem and extension for req. The
// extension is "" when the URL does not carry one.
func nameParts(req harvest.WriteRequest) (stem, ext string) {
	ext = harvest.Ext(req.URL)
	if req.Name != "" {
		return req.Name, ext
	}

	segment := indexName
	if s := lastSegment(req.URL); s != "" {
		segment = s
	}
	if ext != "" {
		segment = strings.TrimSuffix(segment, "."+ext)
	}
	if segment == "" || segment == "." || segment == ".." {
		segment = indexName
	}
	return segment, ext
}

// lastSegment returns the unescaped final path segment of rawURL.
func lastSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(harvest.LastSegment(u.Path), `\`, "_")
}

// fileName joins stem and ext, inserting " (n)" before the extension for
// n > 0.
func fileName(stem, ext string, n int) string {
	if n > 0 {
		stem = fmt.Sprintf("%s (%d)", stem, n)
	}
	return stem + "." + ext
}

// contentTypeExt returns the subtype of a Content-Type value, dropping
// parameters and any structured syntax suffix: "image/svg+xml; q=1" is
// "svg".
func contentTypeExt(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok {
		return ""
	}
	subtype, _, _ = strings.Cut(subtype, "+")
	if subtype == "" || subtype == "*" || strings.ContainsAny(subtype, `/\`) {
		return ""
	}
	return subtype
}
