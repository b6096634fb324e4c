package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/transport"
)

// fakeFetcher serves canned responses keyed by URL.
type fakeFetcher struct {
	pages       map[string]string
	err         error
	hadDeadline bool
}

// Fetch implements Fetcher.
func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*transport.Response, error) {
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &model.FetchError{URL: url, StatusCode: 404}
	}
	return &transport.Response{URL: url, StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}, nil
}

// memStore is an in-memory Store.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	pages       map[string]*model.PageRecord
	keywords    map[int64][]string
	pageErr     error
	keywordsErr error
}

func newMemStore() *memStore {
	return &memStore{
		pages:    make(map[string]*model.PageRecord),
		keywords: make(map[int64][]string),
	}
}

// InsertPageIfAbsent implements Store.
func (s *memStore) InsertPageIfAbsent(_ context.Context, page *model.PageRecord) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pageErr != nil {
		return 0, false, s.pageErr
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

// InsertKeywords implements Store.
func (s *memStore) InsertKeywords(_ context.Context, pageID int64, keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keywordsErr != nil {
		return s.keywordsErr
	}
	s.keywords[pageID] = append(s.keywords[pageID], keywords...)
	return nil
}

// pushed is one Push call seen by recordingEnqueuer.
type pushed struct {
	url   string
	depth int
}

// recordingEnqueuer records pushed URLs.
type recordingEnqueuer struct {
	pushes []pushed
}

// Push implements Enqueuer.
func (e *recordingEnqueuer) Push(url string, depth int) bool {
	e.pushes = append(e.pushes, pushed{url: url, depth: depth})
	return true
}

// setVisited is a VisitedChecker backed by a set.
type setVisited map[string]bool

// Contains implements VisitedChecker.
func (v setVisited) Contains(url string) bool {
	return v[url]
}

// prefixFilter allows URLs without the given prefix.
type prefixFilter string

// Allow implements LinkFilter.
func (f prefixFilter) Allow(url string) bool {
	return !strings.HasPrefix(url, string(f))
}

// TestFetchStep tests the fetch step.
func TestFetchStep(t *testing.T) {
	t.Parallel()

	t.Run("stores the response and applies the timeout", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: map[string]string{"https://a.test/": "<html></html>"}}
		step := NewFetchStep(fetcher, time.Second)

		job := NewJob("https://a.test/", 0)
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Response == nil {
			t.Fatal("expected response to be set")
		}
		if !fetcher.hadDeadline {
			t.Error("expected fetch context to carry a deadline")
		}
		if step.Name() != StepFetch {
			t.Errorf("expected name %q, got %q", StepFetch, step.Name())
		}
	})

	t.Run("wraps plain errors in FetchError", func(t *testing.T) {
		t.Parallel()

		step := NewFetchStep(&fakeFetcher{err: errors.New("boom")}, 0)

		err := step.Do(context.Background(), NewJob("https://a.test/", 0))
		var fetchErr *model.FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected FetchError, got %v", err)
		}
		if fetchErr.URL != "https://a.test/" {
			t.Errorf("expected URL to be recorded, got %q", fetchErr.URL)
		}
	})

	t.Run("keeps FetchError from fetcher", func(t *testing.T) {
		t.Parallel()

		step := NewFetchStep(&fakeFetcher{pages: map[string]string{}}, 0)

		err := step.Do(context.Background(), NewJob("https://a.test/missing", 0))
		var fetchErr *model.FetchError
		if !errors.As(err, &fetchErr) || fetchErr.StatusCode != 404 {
			t.Errorf("expected 404 FetchError, got %v", err)
		}
	})
}

// TestParseStep tests the parse step.
func TestParseStep(t *testing.T) {
	t.Parallel()

	t.Run("requires a response", func(t *testing.T) {
		t.Parallel()

		if err := NewParseStep().Do(context.Background(), NewJob("https://a.test/", 0)); !errors.Is(err, errNoResponse) {
			t.Errorf("expected errNoResponse, got %v", err)
		}
	})

	t.Run("uses final URL as base", func(t *testing.T) {
		t.Parallel()

		job := NewJob("https://a.test/old", 0)
		job.Response = &transport.Response{URL: "https://a.test/new/", Body: []byte("<p>x</p>")}

		if err := NewParseStep().Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Doc == nil {
			t.Fatal("expected document to be set")
		}
		if job.BaseURL != "https://a.test/new/" {
			t.Errorf("expected base URL of final response, got %q", job.BaseURL)
		}
	})
}

// TestExtractStep tests the extract step.
func TestExtractStep(t *testing.T) {
	t.Parallel()

	job := NewJob("https://a.test/", 0)
	job.Response = &transport.Response{
		URL: "https://a.test/",
		Body: []byte(`<html><head><title>Accueil</title>
			<meta name="description" content="Hello"></head>
			<body><p>Le chat et la souris.</p><a href="/b">b</a></body></html>`),
	}
	if err := NewParseStep().Do(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := NewExtractStep(nil).Do(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Metadata.Title != "Accueil" {
		t.Errorf("expected title Accueil, got %q", job.Metadata.Title)
	}
	if job.Metadata.Description != "Hello" {
		t.Errorf("expected description Hello, got %q", job.Metadata.Description)
	}
	if job.Metadata.IconURL != model.IconUnavailable {
		t.Errorf("expected icon fallback, got %q", job.Metadata.IconURL)
	}
	for _, want := range []string{"accueil", "chat", "souris"} {
		if !slices.Contains(job.Keywords, want) {
			t.Errorf("expected keyword %q in %v", want, job.Keywords)
		}
	}
	if !slices.Equal(job.Links, []string{"https://a.test/b"}) {
		t.Errorf("unexpected links %v", job.Links)
	}

	if err := NewExtractStep(nil).Do(context.Background(), NewJob("https://a.test/", 0)); !errors.Is(err, errNoDocument) {
		t.Errorf("expected errNoDocument, got %v", err)
	}
}

// TestPersistStep tests the persist step.
func TestPersistStep(t *testing.T) {
	t.Parallel()

	newJob := func() *Job {
		job := NewJob("https://a.test/", 0)
		job.Metadata = model.Metadata{Title: "A", Description: "d", IconURL: model.IconUnavailable}
		job.Keywords = []string{"chat", "souris"}
		return job
	}

	t.Run("stores page and keywords once", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		step := NewPersistStep(store)

		first := newJob()
		if err := step.Do(context.Background(), first); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !first.Created || first.Page.ID == 0 {
			t.Errorf("expected created page with ID, got %+v", first.Page)
		}

		second := newJob()
		if err := step.Do(context.Background(), second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.Created {
			t.Error("expected second insert to find the existing page")
		}
		if second.Page.ID != first.Page.ID {
			t.Errorf("expected same ID, got %d and %d", first.Page.ID, second.Page.ID)
		}
		if got := store.keywords[first.Page.ID]; len(got) != 2 {
			t.Errorf("expected keywords written once, got %v", got)
		}
	})

	t.Run("page failure is a storage error", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.pageErr = errors.New("disk full")

		err := NewPersistStep(store).Do(context.Background(), newJob())
		var storageErr *model.StorageError
		if !errors.As(err, &storageErr) {
			t.Fatalf("expected StorageError, got %v", err)
		}
		if storageErr.Op != "insert page" {
			t.Errorf("unexpected op %q", storageErr.Op)
		}
	})

	t.Run("keyword failure is a storage error", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.keywordsErr = errors.New("locked")

		err := NewPersistStep(store).Do(context.Background(), newJob())
		var storageErr *model.StorageError
		if !errors.As(err, &storageErr) || storageErr.Op != "insert keywords" {
			t.Errorf("expected keyword StorageError, got %v", err)
		}
	})
}

// TestDiscoverStep tests link discovery.
func TestDiscoverStep(t *testing.T) {
	t.Parallel()

	links := []string{"https://a.test/b", "https://a.test/private/x", "https://a.test/seen"}

	t.Run("pushes filtered unvisited links one level deeper", func(t *testing.T) {
		t.Parallel()

		enq := &recordingEnqueuer{}
		step := NewDiscoverStep(enq,
			WithVisited(setVisited{"https://a.test/seen": true}),
			WithLinkFilter(prefixFilter("https://a.test/private/")),
		)

		job := NewJob("https://a.test/", 2)
		job.Links = links
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []pushed{{url: "https://a.test/b", depth: 3}}
		if !slices.Equal(enq.pushes, want) {
			t.Errorf("expected %v, got %v", want, enq.pushes)
		}
		if job.Enqueued != 1 {
			t.Errorf("expected 1 enqueued, got %d", job.Enqueued)
		}
	})

	t.Run("stops at max depth", func(t *testing.T) {
		t.Parallel()

		enq := &recordingEnqueuer{}
		step := NewDiscoverStep(enq, WithMaxDepth(1))

		job := NewJob("https://a.test/b", 1)
		job.Links = links
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(enq.pushes) != 0 {
			t.Errorf("expected no pushes at max depth, got %v", enq.pushes)
		}
	})
}

// TestNewPagePipeline tests the assembled page pipeline.
func TestNewPagePipeline(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.test/": `<html><head><title>A</title></head><body>
			<a href="/b">b</a><a href="mailto:x@a.test">mail</a></body></html>`,
	}}
	store := newMemStore()
	enq := &recordingEnqueuer{}

	p := NewPagePipeline(fetcher, store, enq, PageConfig{
		FetchTimeout: time.Second,
		Keywords:     extract.NewKeywordExtractor(extract.KeywordOptions{}),
	})

	wantSteps := []string{StepFetch, StepParse, StepExtract, StepPersist, StepDiscover}
	if !slices.Equal(p.StepNames(), wantSteps) {
		t.Errorf("expected steps %v, got %v", wantSteps, p.StepNames())
	}

	job := NewJob("https://a.test/", 0)
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.pages["https://a.test/"]; !ok {
		t.Error("expected page to be stored")
	}
	if !slices.Equal(enq.pushes, []pushed{{url: "https://a.test/b", depth: 1}}) {
		t.Errorf("unexpected pushes %v", enq.pushes)
	}

	t.Run("storage failure skips discovery", func(t *testing.T) {
		t.Parallel()

		failing := newMemStore()
		failing.pageErr = errors.New("disk full")
		enq := &recordingEnqueuer{}

		p := NewPagePipeline(fetcher, failing, enq, PageConfig{})
		err := p.Execute(context.Background(), NewJob("https://a.test/", 0))

		var storageErr *model.StorageError
		if !errors.As(err, &storageErr) {
			t.Fatalf("expected StorageError, got %v", err)
		}
		if len(enq.pushes) != 0 {
			t.Errorf("expected no discovery, got %v", enq.pushes)
		}
	})
}
