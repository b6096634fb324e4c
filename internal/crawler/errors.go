package crawler

import "errors"

var (
	// ErrNoSeeds is returned by Engine.Run when no usable seed URL is given.
	ErrNoSeeds = errors.New("no seed URL to crawl")

	// ErrInvalidPattern is returned when a link filter pattern does not compile.
	ErrInvalidPattern = errors.New("invalid link pattern")

	// errPanic wraps a panic recovered while processing a URL.
	errPanic = errors.New("panic while processing page")
)
