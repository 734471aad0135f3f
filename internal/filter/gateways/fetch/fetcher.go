package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/haukened/rr-filter/internal/filter/common/log"
)

// Error message constants for consistent error handling
const (
	errBuildRequest = "build request: %w"
	errRequest      = "request: %w"
	errStatus       = "unexpected status %s"
	errOpenFile     = "open: %w"
	errRead         = "read: %w"
)

// ErrUnsupportedScheme is returned for source URLs that are neither HTTP(S) nor file.
var ErrUnsupportedScheme = errors.New("unsupported source scheme")

// DefaultUserAgent is sent with every HTTP request.
const DefaultUserAgent = "rr-filter/1.0"

// Observer receives one event per fetched source.
type Observer interface {
	ObserveFetch(source string, lines int, err error)
}

// Result is the outcome of one source. A failed source has Err set and no Lines.
type Result struct {
	Source string
	Lines  []string
	Err    error
}

// Options configures a Fetcher.
type Options struct {
	// Workers bounds concurrent retrievals. Defaults to 10.
	Workers int
	// Timeout bounds one HTTP request including the body. Defaults to 20s.
	Timeout   time.Duration
	UserAgent string
	Logger    log.Logger
	Observer  Observer
	// options to inject for testing purposes
	Client *http.Client
}

// Fetcher downloads filter lists.
type Fetcher struct {
	workers   int
	client    *http.Client
	userAgent string
	logger    log.Logger
	observer  Observer
}

// NewFetcher creates a Fetcher with the specified options.
func NewFetcher(opts Options) *Fetcher {
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: opts.Timeout}).DialContext,
				TLSHandshakeTimeout: opts.Timeout,
				MaxIdleConnsPerHost: opts.Workers,
			},
		}
	}
	return &Fetcher{
		workers:   opts.Workers,
		client:    opts.Client,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
		observer:  opts.Observer,
	}
}

// FetchAll retrieves every source on a bounded pool and returns the results
// in source order. Per-source failures are reported in Result.Err and never
// abort the other retrievals.
func (f *Fetcher) FetchAll(ctx context.Context, sources []string) []Result {
	results := make([]Result, len(sources))
	sem := make(chan struct{}, f.workers)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{Source: src, Err: ctx.Err()}
				f.observe(results[i])
				return
			}
			defer func() { <-sem }()

			lines, err := f.Fetch(ctx, src)
			if err != nil {
				lines = nil
				f.logger.Warn(map[string]any{"source": src, "error": err.Error()}, "fetch_failed")
			} else {
				f.logger.Info(map[string]any{"source": src, "lines": len(lines)}, "fetched")
			}
			results[i] = Result{Source: src, Lines: lines, Err: err}
			f.observe(results[i])
		}(i, src)
	}
	wg.Wait()
	return results
}

func (f *Fetcher) observe(r Result) {
	if f.observer != nil {
		f.observer.ObserveFetch(r.Source, len(r.Lines), r.Err)
	}
}

// Fetch retrieves one source: an http(s) URL, a file:// URL or a plain path.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]string, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || isDrive(u.Scheme) {
		return readFile(source)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.get(ctx, source)
	case "file":
		return readFile(u.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *Fetcher) get(ctx context.Context, source string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf(errBuildRequest, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errRequest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(errStatus, resp.Status)
	}
	lines, err := readLines(resp.Body)
	if err != nil {
		return nil, fmt.Errorf(errRead, err)
	}
	return lines, nil
}

func readFile(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf(errOpenFile, err)
	}
	defer fh.Close()
	lines, err := readLines(fh)
	if err != nil {
		return nil, fmt.Errorf(errRead, err)
	}
	return lines, nil
}

// isDrive reports whether a parsed scheme is really a Windows drive letter.
func isDrive(scheme string) bool {
	return len(scheme) == 1
}

// Lines returns the line slices of every result, failed sources included as nil.
func Lines(results []Result) [][]string {
	out := make([][]string, len(results))
	for i, r := range results {
		out[i] = r.Lines
	}
	return out
}

// CountLines returns the number of non-blank lines across all results.
func CountLines(results []Result) int {
	n := 0
	for _, r := range results {
		for _, l := range r.Lines {
			if strings.TrimSpace(l) != "" {
				n++
			}
		}
	}
	return n
}

// Failed returns the sources that could not be retrieved.
func Failed(results []Result) []string {
	var out []string
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.Source)
		}
	}
	return out
}
