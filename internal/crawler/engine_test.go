package crawler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/transport"
)

// memStore is an in-memory pipeline.Store.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	pages    map[string]*model.PageRecord
	keywords map[int64][]string
	failURL  string
}

func newMemStore() *memStore {
	return &memStore{
		pages:    make(map[string]*model.PageRecord),
		keywords: make(map[int64][]string),
	}
}

// InsertPageIfAbsent implements pipeline.Store.
func (s *memStore) InsertPageIfAbsent(_ context.Context, page *model.PageRecord) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failURL != "" && page.URL == s.failURL {
		return 0, false, errors.New("disk full")
	}
	if existing, ok := s.pages[page.URL]; ok {
		return existing.ID, false, nil
	}
	s.nextID++
	stored := *page
	stored.ID = s.nextID
	s.pages[page.URL] = &stored
	return stored.ID, true, nil
}

// InsertKeywords implements pipeline.Store.
func (s *memStore) InsertKeywords(_ context.Context, pageID int64, keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords[pageID] = append(s.keywords[pageID], keywords...)
	return nil
}

func (s *memStore) page(url string) (*model.PageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[url]
	return p, ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// site serves HTML pages keyed by path.
func site(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T) *transport.Client {
	t.Helper()

	client, err := transport.NewClient(transport.WithTimeout(5 * time.Second))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

// discardLogger keeps test output quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestEngineRun tests complete traversals against local servers.
func TestEngineRun(t *testing.T) {
	t.Parallel()

	t.Run("crawls seed and linked page", func(t *testing.T) {
		t.Parallel()

		server := site(t, map[string]string{
			"/":  `<html><head><title>Home</title></head><body><a href="/b">b</a></body></html>`,
			"/b": `<html><head><meta name="description" content="Hello"></head><body>Le chat et la souris.</body></html>`,
		})
		store := newMemStore()
		engine := NewEngine(newClient(t), store, WithWorkers(4), WithLogger(discardLogger()))

		summary, err := engine.Run(context.Background(), []string{server.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.PagesStored != 2 {
			t.Errorf("expected 2 pages stored, got %d", summary.PagesStored)
		}
		if summary.Cancelled {
			t.Error("expected completed run")
		}

		b, ok := store.page(server.URL + "/b")
		if !ok {
			t.Fatalf("expected %s/b to be stored", server.URL)
		}
		if b.Title != model.TitleUnavailable {
			t.Errorf("expected title fallback, got %q", b.Title)
		}
		if b.Description != "Hello" {
			t.Errorf("expected description Hello, got %q", b.Description)
		}
		if b.IconURL != model.IconUnavailable {
			t.Errorf("expected icon fallback, got %q", b.IconURL)
		}
		store.mu.Lock()
		kws := store.keywords[b.ID]
		store.mu.Unlock()
		if len(kws) != 2 {
			t.Errorf("expected keywords chat and souris, got %v", kws)
		}
	})

	t.Run("failing page does not stop the crawl", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/":
				_, _ = w.Write([]byte(`<a href="/ok">ok</a><a href="/broken">broken</a>`)) //nolint:errcheck
			case "/ok":
				_, _ = w.Write([]byte(`<title>OK</title>`)) //nolint:errcheck
			default:
				http.Error(w, "boom", http.StatusInternalServerError)
			}
		}))
		defer server.Close()

		store := newMemStore()
		engine := NewEngine(newClient(t), store, WithLogger(discardLogger()))

		summary, err := engine.Run(context.Background(), []string{server.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.PagesStored != 2 {
			t.Errorf("expected 2 pages stored, got %d", summary.PagesStored)
		}
		if summary.FetchFailures != 1 {
			t.Errorf("expected 1 fetch failure, got %d", summary.FetchFailures)
		}
		if len(summary.Failures) != 1 || summary.Failures[0].URL != server.URL+"/broken" {
			t.Errorf("unexpected failure samples %+v", summary.Failures)
		}
		if _, ok := store.page(server.URL + "/broken"); ok {
			t.Error("expected broken page not to be stored")
		}
	})

	t.Run("terminates on cyclic graphs", func(t *testing.T) {
		t.Parallel()

		server := site(t, map[string]string{
			"/":  `<a href="/a">a</a><a href="/b">b</a><a href="/">self</a>`,
			"/a": `<a href="/b">b</a><a href="/">home</a>`,
			"/b": `<a href="/a">a</a><a href="/a#frag">a again</a>`,
		})
		store := newMemStore()
		engine := NewEngine(newClient(t), store, WithWorkers(16), WithLogger(discardLogger()))

		summary, err := engine.Run(context.Background(), []string{server.URL, server.URL + "/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.PagesStored != 3 {
			t.Errorf("expected 3 pages stored, got %d", summary.PagesStored)
		}
		if len(summary.Seeds) != 1 {
			t.Errorf("expected duplicate seeds to collapse, got %v", summary.Seeds)
		}
	})

	t.Run("respects max depth", func(t *testing.T) {
		t.Parallel()

		server := site(t, map[string]string{
			"/":  `<a href="/1">1</a>`,
			"/1": `<a href="/2">2</a>`,
			"/2": `<a href="/3">3</a>`,
			"/3": `end`,
		})
		store := newMemStore()
		engine := NewEngine(newClient(t), store, WithMaxDepth(1), WithLogger(discardLogger()))

		if _, err := engine.Run(context.Background(), []string{server.URL}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.count() != 2 {
			t.Errorf("expected 2 pages within depth 1, got %d", store.count())
		}
	})

	t.Run("respects max pages", func(t *testing.T) {
		t.Parallel()

		server := site(t, map[string]string{
			"/":  `<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a>`,
			"/1": `one`,
			"/2": `two`,
			"/3": `three`,
		})
		store := newMemStore()
		engine := NewEngine(newClient(t), store, WithWorkers(1), WithMaxPages(2), WithLogger(discardLogger()))

		summary, err := engine.Run(context.Background(), []string{server.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.count() != 2 {
			t.Errorf("expected 2 pages, got %d", store.count())
		}
		if summary.Skipped != 2 {
			t.Errorf("expected 2 skipped, got %d", summary.Skipped)
		}
	})

	t.Run("storage failure skips discovery", func(t *testing.T) {
		t.Parallel()

		server := site(t, map[string]string{
			"/":  `<a href="/b">b</a>`,
			"/b": `b`,
		})
		store := newMemStore()
		store.failURL = server.URL + "/"
		engine := NewEngine(newClient(t), store, WithLogger(discardLogger()))

		summary, err := engine.Run(context.Background(), []string{server.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.StorageFailures != 1 {
			t.Errorf("expected 1 storage failure, got %d", summary.StorageFailures)
		}
		if store.count() != 0 {
			t.Errorf("expected no pages, got %d", store.count())
		}
	})

	t.Run("link filter restricts discovery", func(t *testing.T) {
		t.Parallel()

		server := site(t, map[string]string{
			"/":        `<a href="/admin/x">admin</a><a href="/ok">ok</a>`,
			"/ok":      `ok`,
			"/admin/x": `admin`,
		})
		filter, err := NewLinkFilter(FilterRules{IgnorePatterns: []string{"/admin/*"}}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		store := newMemStore()
		engine := NewEngine(newClient(t), store, WithLinkFilter(filter), WithMaxDepth(1), WithLogger(discardLogger()))

		if _, err := engine.Run(context.Background(), []string{server.URL}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.page(server.URL + "/admin/x"); ok {
			t.Error("expected ignored page not to be crawled")
		}
		if _, ok := store.page(server.URL + "/ok"); !ok {
			t.Error("expected allowed page to be crawled")
		}
	})

	t.Run("no seeds", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(newClient(t), newMemStore(), WithLogger(discardLogger()))
		if _, err := engine.Run(context.Background(), []string{"", "  "}); !errors.Is(err, ErrNoSeeds) {
			t.Errorf("expected ErrNoSeeds, got %v", err)
		}
	})
}

// TestEngineCancellation tests that cancelling the context stops the workers.
func TestEngineCancellation(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := NewEngine(newClient(t), newMemStore(), WithFetchTimeout(time.Minute), WithLogger(discardLogger()))

	type result struct {
		summary *model.CrawlSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := engine.Run(ctx, []string{server.URL + "/a", server.URL + "/b"})
		done <- result{summary, err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never started")
	}
	cancel()

	select {
	case res := <-done:
		if !errors.Is(res.err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", res.err)
		}
		if res.summary == nil || !res.summary.Cancelled {
			t.Error("expected summary marked as cancelled")
		}
		if res.summary != nil && res.summary.TotalFailures() != 0 {
			t.Errorf("expected interrupted fetches not to count as failures, got %+v", res.summary.Failures)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}

// panicFetcher panics for one URL and serves an empty page otherwise.
type panicFetcher struct {
	panicURL string
}

// Fetch implements pipeline.Fetcher.
func (f *panicFetcher) Fetch(_ context.Context, url string) (*transport.Response, error) {
	if url == f.panicURL {
		panic("unexpected state")
	}
	return &transport.Response{
		URL:        url,
		StatusCode: http.StatusOK,
		Body:       []byte(`<a href="/bad">bad</a><a href="/good">good</a>`),
	}, nil
}

// TestEnginePanicRecovery tests that a panic only fails its own URL.
func TestEnginePanicRecovery(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	engine := NewEngine(&panicFetcher{panicURL: "https://a.test/bad"}, store, WithLogger(discardLogger()))

	summary, err := engine.Run(context.Background(), []string{"https://a.test/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.InternalFailures != 1 {
		t.Errorf("expected 1 internal failure, got %d", summary.InternalFailures)
	}
	if summary.PagesStored != 2 {
		t.Errorf("expected 2 pages stored, got %d", summary.PagesStored)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Kind != model.FailureInternal {
		t.Errorf("unexpected failures %+v", summary.Failures)
	}
}
