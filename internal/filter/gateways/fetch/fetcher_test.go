package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events map[string]int
	failed []string
}

func (o *recordingObserver) ObserveFetch(source string, lines int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.events == nil {
		o.events = make(map[string]int)
	}
	o.events[source] = lines
	if err != nil {
		o.failed = append(o.failed, source)
	}
}

func newListServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/one.txt", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.UserAgent())
		fmt.Fprint(w, "! list one\n||a.test^\n||b.test^\n")
	})
	mux.HandleFunc("/two.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "||c.test^")
	})
	mux.HandleFunc("/missing.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_FetchAll(t *testing.T) {
	srv := newListServer(t)
	dir := t.TempDir()
	local := filepath.Join(dir, "local.txt")
	require.NoError(t, os.WriteFile(local, []byte("||d.test^\n"), 0o644))

	obs := &recordingObserver{}
	f := NewFetcher(Options{Workers: 2, Observer: obs})
	sources := []string{
		srv.URL + "/one.txt",
		srv.URL + "/missing.txt",
		local,
		"file://" + local,
		srv.URL + "/two.txt",
		"ftp://example.com/list.txt",
	}
	results := f.FetchAll(context.Background(), sources)
	require.Len(t, results, len(sources))

	for i, r := range results {
		assert.Equal(t, sources[i], r.Source)
	}
	assert.Equal(t, []string{"! list one", "||a.test^", "||b.test^"}, results[0].Lines)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Lines)
	assert.Equal(t, []string{"||d.test^"}, results[2].Lines)
	assert.Equal(t, []string{"||d.test^"}, results[3].Lines)
	assert.Equal(t, []string{"||c.test^"}, results[4].Lines)
	assert.ErrorIs(t, results[5].Err, ErrUnsupportedScheme)

	assert.Equal(t, []string{srv.URL + "/missing.txt", "ftp://example.com/list.txt"}, Failed(results))
	assert.Len(t, Lines(results), len(sources))
	assert.Nil(t, Lines(results)[1])

	assert.Len(t, obs.events, len(sources))
	assert.Equal(t, 3, obs.events[srv.URL+"/one.txt"])
	assert.ElementsMatch(t, Failed(results), obs.failed)
}

func TestCountLines(t *testing.T) {
	results := []Result{
		{Source: "a", Lines: []string{"||a.test^", "", "  ", "! c"}},
		{Source: "b", Err: os.ErrNotExist},
		{Source: "c", Lines: []string{"\t"}},
	}
	assert.Equal(t, 2, CountLines(results))
	assert.Zero(t, CountLines(results[1:]))
	assert.Zero(t, CountLines(nil))
}

func TestFetcher_MissingFile(t *testing.T) {
	f := NewFetcher(Options{})
	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetcher_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		fmt.Fprint(w, "||x.test^")
	}))
	t.Cleanup(srv.Close)

	sources := make([]string, 12)
	for i := range sources {
		sources[i] = fmt.Sprintf("%s/%d.txt", srv.URL, i)
	}
	results := NewFetcher(Options{Workers: 3}).FetchAll(context.Background(), sources)
	assert.Empty(t, Failed(results))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f := NewFetcher(Options{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetcher_CancelledContext(t *testing.T) {
	srv := newListServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewFetcher(Options{Workers: 1}).FetchAll(ctx, []string{srv.URL + "/one.txt", srv.URL + "/two.txt"})
	for _, r := range results {
		assert.Error(t, r.Err)
		assert.Nil(t, r.Lines)
	}
}
