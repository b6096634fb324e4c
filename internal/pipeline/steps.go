package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/model"
)

// Step names used in logs and in Job.CompletedSteps.
const (
	StepFetch    = "fetch"
	StepParse    = "parse"
	StepExtract  = "extract"
	StepPersist  = "persist"
	StepDiscover = "discover"
)

// errNoResponse and errNoDocument signal a step run out of order.
var (
	errNoResponse = errors.New("no response to parse")
	errNoDocument = errors.New("no document to extract from")
)

// FetchStep retrieves the page for a job.
type FetchStep struct {
	fetcher Fetcher

	// timeout bounds a single fetch. Zero means the fetcher's own limit.
	timeout time.Duration
}

// NewFetchStep creates a fetch step.
func NewFetchStep(fetcher Fetcher, timeout time.Duration) *FetchStep {
	return &FetchStep{fetcher: fetcher, timeout: timeout}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return StepFetch
}

// Do executes the fetch step. Any failure is returned as *model.FetchError.
func (s *FetchStep) Do(ctx context.Context, job *Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		var fetchErr *model.FetchError
		if errors.As(err, &fetchErr) {
			return err
		}
		return &model.FetchError{URL: job.URL, Err: err}
	}
	job.Response = resp
	return nil
}

// ParseStep builds the DOM of the fetched page. It never fails on bad
// markup.
type ParseStep struct{}

// NewParseStep creates a parse step.
func NewParseStep() *ParseStep {
	return &ParseStep{}
}

// Name returns the step name.
func (s *ParseStep) Name() string {
	return StepParse
}

// Do executes the parse step.
func (s *ParseStep) Do(_ context.Context, job *Job) error {
	if job.Response == nil {
		return errNoResponse
	}

	job.Doc = extract.Parse(job.Response.Body, job.Response.ContentType)
	job.BaseURL = job.URL
	if job.Response.URL != "" {
		job.BaseURL = job.Response.URL
	}
	return nil
}

// ExtractStep collects metadata, keywords and links from the DOM.
type ExtractStep struct {
	keywords *extract.KeywordExtractor
}

// NewExtractStep creates an extract step. A nil extractor selects the
// default keyword settings.
func NewExtractStep(keywords *extract.KeywordExtractor) *ExtractStep {
	if keywords == nil {
		keywords = extract.NewKeywordExtractor(extract.KeywordOptions{})
	}
	return &ExtractStep{keywords: keywords}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return StepExtract
}

// Do executes the extract step.
func (s *ExtractStep) Do(_ context.Context, job *Job) error {
	if job.Doc == nil {
		return errNoDocument
	}

	job.Metadata = extract.Metadata(job.Doc, job.BaseURL)
	job.Keywords = s.keywords.ExtractSorted(extract.Text(job.Doc))
	job.Links = extract.Links(job.Doc, job.BaseURL)
	return nil
}

// PersistStep writes the page record and, for new pages, its keywords.
type PersistStep struct {
	store Store
}

// NewPersistStep creates a persist step.
func NewPersistStep(store Store) *PersistStep {
	return &PersistStep{store: store}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return StepPersist
}

// Do executes the persist step. Failures are returned as *model.StorageError.
func (s *PersistStep) Do(ctx context.Context, job *Job) error {
	page := model.NewPageRecord(job.URL, job.Metadata)

	id, created, err := s.store.InsertPageIfAbsent(ctx, page)
	if err != nil {
		return &model.StorageError{URL: job.URL, Op: "insert page", Err: err}
	}
	page.ID = id
	job.Page = page
	job.Created = created

	// Keywords belong to the first record only.
	if !created || len(job.Keywords) == 0 {
		return nil
	}
	if err := s.store.InsertKeywords(ctx, id, job.Keywords); err != nil {
		return &model.StorageError{URL: job.URL, Op: "insert keywords", Err: err}
	}
	return nil
}

// DiscoverStep pushes the page's links to the frontier.
type DiscoverStep struct {
	enqueuer Enqueuer
	visited  VisitedChecker
	filter   LinkFilter

	// maxDepth stops discovery on pages at this depth. Zero means unlimited.
	maxDepth int
}

// DiscoverOption configures a DiscoverStep.
type DiscoverOption func(*DiscoverStep)

// WithVisited skips links that were already claimed.
func WithVisited(visited VisitedChecker) DiscoverOption {
	return func(s *DiscoverStep) {
		s.visited = visited
	}
}

// WithLinkFilter skips links the filter rejects.
func WithLinkFilter(filter LinkFilter) DiscoverOption {
	return func(s *DiscoverStep) {
		s.filter = filter
	}
}

// WithMaxDepth stops discovery on pages at depth maxDepth.
func WithMaxDepth(maxDepth int) DiscoverOption {
	return func(s *DiscoverStep) {
		s.maxDepth = maxDepth
	}
}

// NewDiscoverStep creates a discover step.
func NewDiscoverStep(enqueuer Enqueuer, opts ...DiscoverOption) *DiscoverStep {
	s := &DiscoverStep{enqueuer: enqueuer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return StepDiscover
}

// Do executes the discover step.
func (s *DiscoverStep) Do(_ context.Context, job *Job) error {
	if s.maxDepth > 0 && job.Depth >= s.maxDepth {
		return nil
	}

	for _, link := range job.Links {
		if s.filter != nil && !s.filter.Allow(link) {
			continue
		}
		// Cheap pre-check; the claim on pop is authoritative.
		if s.visited != nil && s.visited.Contains(link) {
			continue
		}
		if s.enqueuer.Push(link, job.Depth+1) {
			job.Enqueued++
		}
	}
	return nil
}

// NewPagePipeline builds the standard five-step page pipeline.
func NewPagePipeline(fetcher Fetcher, store Store, enqueuer Enqueuer, cfg PageConfig, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewFetchStep(fetcher, cfg.FetchTimeout),
		NewParseStep(),
		NewExtractStep(cfg.Keywords),
		NewPersistStep(store),
		NewDiscoverStep(enqueuer,
			WithVisited(cfg.Visited),
			WithLinkFilter(cfg.Filter),
			WithMaxDepth(cfg.MaxDepth),
		),
	)
	return p
}

// PageConfig holds the settings of the standard page pipeline.
type PageConfig struct {
	FetchTimeout time.Duration
	Keywords     *extract.KeywordExtractor
	Visited      VisitedChecker
	Filter       LinkFilter
	MaxDepth     int
}
