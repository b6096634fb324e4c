// Package database provides SQLite-based storage for sitecrawl.
//
// CrawlDB stores:
//   - one page record per distinct normalized URL (pages)
//   - the keyword set of each page (keywords)
//   - the summary of every crawl run (crawl_runs)
//
// The driver is modernc.org/sqlite, a CGO-free implementation, so the
// binary cross-compiles without a C toolchain. The connection pool holds a
// single connection: SQLite allows one writer at a time and the crawl
// workers share the CrawlDB. URL uniqueness is enforced by the schema, so
// concurrent inserts of the same page cannot create two rows.
package database
