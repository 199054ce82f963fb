package pdf

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// maxRemoteSize caps a downloaded source PDF.
const maxRemoteSize = 64 << 20

// Source resolves a question or solution reference to PDF bytes.
type Source interface {
	Open(ctx context.Context, ref string) ([]byte, error)
}

// SourceOptions configures the default source.
type SourceOptions struct {
	// Root is the directory relative references resolve against.
	Root string
	// Timeout bounds each remote fetch attempt.
	Timeout time.Duration
	// RetryMax is the number of retries for remote fetches.
	RetryMax int
	// RequestsPerSecond throttles remote fetches per host; <= 0 disables it.
	RequestsPerSecond float64
	// Burst is the number of requests allowed at once per host.
	Burst int
}

// refSource reads local files under a root and fetches http(s) references.
type refSource struct {
	root    string
	client  *retryablehttp.Client
	limiter *hostLimiter
}

// NewSource creates the default Source.
func NewSource(opts SourceOptions) Source {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}
	client.Logger = slog.Default()
	return &refSource{
		root:    opts.Root,
		client:  client,
		limiter: newHostLimiter(opts.RequestsPerSecond, opts.Burst),
	}
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (s *refSource) Open(ctx context.Context, ref string) ([]byte, error) {
	if isRemote(ref) {
		return s.fetch(ctx, ref)
	}
	return s.readFile(ref)
}

func (s *refSource) readFile(ref string) ([]byte, error) {
	path := filepath.FromSlash(ref)
	if !filepath.IsAbs(path) {
		if !filepath.IsLocal(path) {
			return nil, errors.Errorf("reference %q escapes the source root", ref)
		}
		path = filepath.Join(s.root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}

func (s *refSource) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid url %s", url)
	}
	if err := s.limiter.Wait(ctx, req.URL.Host); err != nil {
		return nil, errors.Wrapf(err, "rate limited fetching %s", url)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", url)
	}
	if len(data) > maxRemoteSize {
		return nil, errors.Errorf("%s exceeds %d bytes", url, maxRemoteSize)
	}
	return data, nil
}
