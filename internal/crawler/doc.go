// Package crawler implements the breadth-first crawl engine.
//
// # Components
//
//   - Frontier: FIFO of pending tasks with a pending counter that detects
//     when the traversal is exhausted
//   - VisitedSet: sharded set of URLs already dispatched to a fetch
//   - LinkFilter: glob rules deciding which discovered links are followed
//   - Engine: fixed pool of workers running the page pipeline
//
// # Termination
//
// A task is pending from Push until its worker calls MarkDone, so a worker
// that finds the queue empty waits as long as any other worker may still
// push links. When pending reaches zero every waiting worker is released
// and Run returns.
//
// # Usage
//
//	engine := crawler.NewEngine(client, db, crawler.WithWorkers(8))
//	summary, err := engine.Run(ctx, []string{"https://example.com"})
package crawler
