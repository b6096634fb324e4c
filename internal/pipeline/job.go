package pipeline

import (
	"golang.org/x/net/html"

	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/transport"
)

// Job is the state of one URL moving through the pipeline.
type Job struct {
	// URL is the normalized URL claimed by the worker.
	URL string

	// Depth is the number of link hops from the seed.
	Depth int

	// Response is set by the fetch step.
	Response *transport.Response

	// Doc and BaseURL are set by the parse step. BaseURL is the final
	// URL after redirects and is used to resolve relative references.
	Doc     *html.Node
	BaseURL string

	// Metadata, Keywords and Links are set by the extract step.
	Metadata model.Metadata
	Keywords []string
	Links    []string

	// Page and Created are set by the persist step. Created is false when
	// storage already held a record for URL.
	Page    *model.PageRecord
	Created bool

	// Enqueued counts links pushed by the discover step.
	Enqueued int

	// CompletedSteps lists the steps that finished without error.
	CompletedSteps []string
}

// NewJob creates a Job for a claimed URL.
func NewJob(url string, depth int) *Job {
	return &Job{URL: url, Depth: depth}
}
