// Package pipeline processes a single crawled URL as a sequence of steps.
//
// A Job carries one URL through fetch, parse, extract, persist and discover.
// Each step reads what earlier steps stored on the Job and adds its own
// results. The pipeline stops at the first failing step, so a page whose
// storage write fails never contributes links to the frontier.
//
// Collaborators are described by small interfaces (Fetcher, Store, Enqueuer,
// VisitedChecker, LinkFilter) so the crawl engine and the tests can plug in
// their own implementations.
package pipeline
