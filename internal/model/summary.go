package model

import (
	"sync"
	"time"
)

// MaxFailureSamples bounds the number of failures kept in a CrawlSummary.
// The counters keep counting past this limit.
const MaxFailureSamples = 100

// Failure records why a single URL could not be processed.
type Failure struct {
	URL     string      `json:"url"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// CrawlSummary contains the statistics of one traversal run.
// It is safe for concurrent use by the crawl workers.
type CrawlSummary struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Seeds are the normalized seed URLs.
	Seeds []string `json:"seeds"`

	// Workers is the size of the worker pool.
	Workers int `json:"workers"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// PagesStored counts pages newly written to storage.
	PagesStored int `json:"pages_stored"`

	// PagesExisting counts pages that storage already held.
	PagesExisting int `json:"pages_existing"`

	// KeywordsStored counts keyword rows written.
	KeywordsStored int `json:"keywords_stored"`

	// Duplicates counts popped URLs another worker had already claimed.
	Duplicates int `json:"duplicates"`

	// Skipped counts claimed URLs not fetched because the page limit was reached.
	Skipped int `json:"skipped"`

	// FetchFailures and StorageFailures count failures by kind.
	FetchFailures    int `json:"fetch_failures"`
	StorageFailures  int `json:"storage_failures"`
	InternalFailures int `json:"internal_failures"`

	// Cancelled is true when the run was stopped before the frontier drained.
	Cancelled bool `json:"cancelled"`

	// Failures holds up to MaxFailureSamples failure samples.
	Failures []Failure `json:"failures,omitempty"`

	mu sync.Mutex
}

// NewCrawlSummary creates an empty summary for a run.
func NewCrawlSummary(runID string, seeds []string, workers int) *CrawlSummary {
	return &CrawlSummary{
		RunID:     runID,
		Seeds:     seeds,
		Workers:   workers,
		StartedAt: time.Now(),
		Failures:  make([]Failure, 0),
	}
}

// RecordStored counts a page write. created is false when the page already
// existed in storage.
func (s *CrawlSummary) RecordStored(created bool, keywords int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if created {
		s.PagesStored++
		s.KeywordsStored += keywords
		return
	}
	s.PagesExisting++
}

// RecordDuplicate counts a lost claim.
func (s *CrawlSummary) RecordDuplicate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duplicates++
}

// RecordSkipped counts a URL dropped by the page limit.
func (s *CrawlSummary) RecordSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped++
}

// RecordFailure counts a failure and keeps a sample of it.
func (s *CrawlSummary) RecordFailure(url string, err error) {
	kind := ClassifyFailure(err)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case FailureFetch:
		s.FetchFailures++
	case FailureStorage:
		s.StorageFailures++
	default:
		s.InternalFailures++
	}

	if len(s.Failures) < MaxFailureSamples {
		s.Failures = append(s.Failures, Failure{URL: url, Kind: kind, Message: err.Error()})
	}
}

// Finish stamps the end of the run.
func (s *CrawlSummary) Finish(cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinishedAt = time.Now()
	s.Cancelled = cancelled
}

// Elapsed returns the run duration. It is zero until Finish is called.
func (s *CrawlSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// TotalFailures returns the number of URLs that failed for any reason.
func (s *CrawlSummary) TotalFailures() int {
	return s.FetchFailures + s.StorageFailures + s.InternalFailures
}

// PagesProcessed returns the number of pages that reached storage.
func (s *CrawlSummary) PagesProcessed() int {
	return s.PagesStored + s.PagesExisting
}
