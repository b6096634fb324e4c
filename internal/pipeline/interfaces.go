package pipeline

import (
	"context"

	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/transport"
)

// Fetcher retrieves a page. Implementations report failures as
// *model.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*transport.Response, error)
}

// Store persists pages and their keywords.
type Store interface {
	// InsertPageIfAbsent stores page unless a record with the same URL
	// exists. It returns the record ID and whether this call created it.
	InsertPageIfAbsent(ctx context.Context, page *model.PageRecord) (id int64, created bool, err error)

	// InsertKeywords attaches keywords to the page with pageID.
	InsertKeywords(ctx context.Context, pageID int64, keywords []string) error
}

// Enqueuer accepts newly discovered URLs.
type Enqueuer interface {
	// Push schedules url at depth and reports whether it was accepted.
	Push(url string, depth int) bool
}

// VisitedChecker reports whether a URL was already claimed.
type VisitedChecker interface {
	Contains(url string) bool
}

// LinkFilter decides whether a discovered URL may be followed.
type LinkFilter interface {
	Allow(url string) bool
}
