package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
)

const (
	// DefaultWorkers is the default size of the worker pool.
	DefaultWorkers = 8

	// DefaultFetchTimeout bounds a single page fetch.
	DefaultFetchTimeout = 10 * time.Second
)

// Engine runs a breadth-first traversal with a fixed pool of workers.
//
// Each worker pops a task from the frontier, claims its URL in the visited
// set and runs the page pipeline (fetch, parse, extract, persist, discover).
// A failure only affects the URL being processed. The traversal ends when
// the frontier is exhausted or the context is cancelled.
type Engine struct {
	fetcher pipeline.Fetcher
	store   pipeline.Store

	// workers is the number of concurrent workers.
	workers int

	// fetchTimeout bounds a single fetch.
	fetchTimeout time.Duration

	// maxDepth stops discovery on pages this many hops from a seed.
	// 0 means unlimited.
	maxDepth int

	// maxPages bounds the number of fetch attempts. 0 means unlimited.
	maxPages int

	filter   *LinkFilter
	keywords *extract.KeywordExtractor
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the worker count. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithFetchTimeout sets the timeout of a single fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.fetchTimeout = d
	}
}

// WithMaxDepth limits how many link hops from a seed are followed.
// 0 = unlimited, 1 = seeds plus the pages they link to, etc.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithMaxPages limits the number of fetch attempts. 0 = unlimited.
func WithMaxPages(maxPages int) Option {
	return func(e *Engine) {
		e.maxPages = maxPages
	}
}

// WithLinkFilter sets the filter applied to discovered links.
func WithLinkFilter(filter *LinkFilter) Option {
	return func(e *Engine) {
		e.filter = filter
	}
}

// WithKeywordExtractor sets the keyword extractor.
func WithKeywordExtractor(k *extract.KeywordExtractor) Option {
	return func(e *Engine) {
		e.keywords = k
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine that fetches with fetcher and persists to store.
func NewEngine(fetcher pipeline.Fetcher, store pipeline.Store, opts ...Option) *Engine {
	e := &Engine{
		fetcher:      fetcher,
		store:        store,
		workers:      DefaultWorkers,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.keywords == nil {
		e.keywords = extract.NewKeywordExtractor(extract.KeywordOptions{})
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Workers returns the size of the worker pool.
func (e *Engine) Workers() int {
	return e.workers
}

// run is the state shared by the workers of one Run call.
type run struct {
	frontier *Frontier
	visited  *VisitedSet
	pipeline *pipeline.Pipeline
	summary  *model.CrawlSummary

	// attempts counts claimed URLs for the page limit.
	attempts atomic.Int64

	// interrupted is set when cancellation cut a page short.
	interrupted atomic.Bool
}

// Run crawls from seeds until no new URLs remain.
//
// Seeds are normalized and deduplicated; empty seeds are dropped. Run
// returns ErrNoSeeds if nothing is left. When ctx is cancelled the workers
// stop within one pop or fetch, and Run returns the partial summary
// together with ctx.Err().
func (e *Engine) Run(ctx context.Context, seeds []string) (*model.CrawlSummary, error) {
	normalized := normalizeSeeds(seeds)
	if len(normalized) == 0 {
		return nil, ErrNoSeeds
	}

	r := &run{
		frontier: NewFrontier(),
		visited:  NewVisitedSet(),
		summary:  model.NewCrawlSummary(uuid.NewString(), normalized, e.workers),
	}

	var filter pipeline.LinkFilter
	if e.filter != nil {
		filter = e.filter
	}
	r.pipeline = pipeline.NewPagePipeline(e.fetcher, e.store, r.frontier, pipeline.PageConfig{
		FetchTimeout: e.fetchTimeout,
		Keywords:     e.keywords,
		Visited:      r.visited,
		Filter:       filter,
		MaxDepth:     e.maxDepth,
	}, pipeline.WithLogger(e.logger))

	for _, seed := range normalized {
		r.frontier.Push(seed, 0)
	}

	stop := context.AfterFunc(ctx, r.frontier.Close)
	defer stop()

	e.logger.Info("crawl started",
		"run_id", r.summary.RunID,
		"seeds", normalized,
		"workers", e.workers,
	)

	var g errgroup.Group
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			for {
				task, ok := r.frontier.Pop()
				if !ok {
					return nil
				}
				e.process(ctx, r, task)
			}
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return an error

	// Tasks are only left pending when the frontier was closed early.
	cancelled := r.frontier.Pending() > 0 || r.interrupted.Load()
	r.summary.Finish(cancelled)

	e.logger.Info("crawl finished",
		"run_id", r.summary.RunID,
		"pages_stored", r.summary.PagesStored,
		"failures", r.summary.TotalFailures(),
		"visited", r.visited.Len(),
		"cancelled", cancelled,
		"elapsed", r.summary.Elapsed(),
	)

	if cancelled {
		if err := ctx.Err(); err != nil {
			return r.summary, err
		}
		return r.summary, context.Canceled
	}
	return r.summary, nil
}

// process handles one popped task. It always marks the task done.
func (e *Engine) process(ctx context.Context, r *run, task Task) {
	defer r.frontier.MarkDone()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%w: %v", errPanic, rec)
			e.logger.Error("page panicked", "url", task.URL, "error", err)
			r.summary.RecordFailure(task.URL, err)
		}
	}()

	if !r.visited.TryClaim(task.URL) {
		r.summary.RecordDuplicate()
		return
	}

	if e.maxPages > 0 && r.attempts.Add(1) > int64(e.maxPages) {
		r.summary.RecordSkipped()
		return
	}

	job := pipeline.NewJob(task.URL, task.Depth)
	if err := r.pipeline.Execute(ctx, job); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			r.interrupted.Store(true)
			e.logger.Debug("page interrupted", "url", task.URL)
			return
		}
		r.summary.RecordFailure(task.URL, err)
		e.logger.Warn("page failed",
			"url", task.URL,
			"kind", model.ClassifyFailure(err),
			"error", err,
		)
		return
	}

	r.summary.RecordStored(job.Created, len(job.Keywords))
	e.logger.Debug("page stored",
		"url", task.URL,
		"depth", task.Depth,
		"created", job.Created,
		"keywords", len(job.Keywords),
		"discovered", job.Enqueued,
	)
}

// normalizeSeeds normalizes seeds, dropping blanks and duplicates.
func normalizeSeeds(seeds []string) []string {
	out := make([]string, 0, len(seeds))
	seen := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		if strings.TrimSpace(s) == "" {
			continue
		}
		n := model.NormalizeURL(s)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
