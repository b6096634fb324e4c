// Package model defines the core data structures used throughout sitecrawl.
//
// This package contains the following main types:
//   - PageRecord: The persisted metadata of one crawled URL
//   - Metadata: Title, description and icon extracted from a page
//   - CrawlSummary: Statistics of one traversal run
//   - FetchError, StorageError: Typed failures of a single URL
//
// URL normalization also lives here because the frontier, the visited set
// and the storage layer must all agree on the same canonical form.
//
// The crawler, pipeline, database and report packages all depend on this
// package, so it imports none of them.
package model
