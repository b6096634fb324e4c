package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultFileName is the database file created inside the database directory.
const DefaultFileName = "sitecrawl.db"

// timestampLayout is a fixed-width UTC layout so that stored timestamps
// sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// CrawlDB provides SQLite-based storage for crawled pages and crawl runs.
// It is safe for concurrent use.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers (search, history)
	// do not block a running crawl.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DefaultFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrDatabaseNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents creating new files, mode=rwc allows it.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per distinct normalized URL, written on the first successful fetch
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		logo TEXT NOT NULL
	);

	-- Keyword set of each page
	CREATE TABLE IF NOT EXISTS keywords (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		keyword TEXT NOT NULL,
		UNIQUE(page_id, keyword)
	);

	CREATE INDEX IF NOT EXISTS idx_keywords_keyword ON keywords(keyword);

	-- Summaries of crawl runs stored as JSON
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// InsertPageIfAbsent stores page unless a record with the same URL exists.
// It returns the ID of the stored or existing record and whether this call
// created it. The existing record is never modified.
func (cdb *CrawlDB) InsertPageIfAbsent(ctx context.Context, page *model.PageRecord) (int64, bool, error) {
	query := `
	INSERT INTO pages (url, title, description, logo)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(url) DO NOTHING
	`

	result, err := cdb.db.ExecContext(ctx, query,
		page.URL,
		page.Title,
		page.Description,
		page.IconURL,
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert page: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 1 {
		id, err := result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("failed to read page id: %w", err)
		}
		return id, true, nil
	}

	var id int64
	if err := cdb.db.QueryRowContext(ctx, "SELECT id FROM pages WHERE url = ?", page.URL).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("failed to look up existing page: %w", err)
	}
	return id, false, nil
}

// InsertKeywords attaches keywords to the page with pageID in a single
// transaction. Duplicate keywords are ignored.
func (cdb *CrawlDB) InsertKeywords(ctx context.Context, pageID int64, keywords []string) (err error) {
	if len(keywords) == 0 {
		return nil
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is more useful
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO keywords (page_id, keyword) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare keyword insert: %w", err)
	}
	defer stmt.Close()

	for _, kw := range keywords {
		if _, err = stmt.ExecContext(ctx, pageID, kw); err != nil {
			return fmt.Errorf("failed to insert keyword %q: %w", kw, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit keywords: %w", err)
	}
	return nil
}

// GetPageByURL retrieves a page by URL. The URL is normalized first.
// It returns nil, nil when no page matches.
func (cdb *CrawlDB) GetPageByURL(ctx context.Context, url string) (*model.PageRecord, error) {
	query := `
	SELECT id, url, title, description, logo
	FROM pages
	WHERE url = ?
	`

	var page model.PageRecord
	err := cdb.db.QueryRowContext(ctx, query, model.NormalizeURL(url)).Scan(
		&page.ID,
		&page.URL,
		&page.Title,
		&page.Description,
		&page.IconURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

// CountPages returns the number of stored pages.
func (cdb *CrawlDB) CountPages(ctx context.Context) (int, error) {
	var n int
	if err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// KeywordsForPage returns the keywords of a page in alphabetical order.
func (cdb *CrawlDB) KeywordsForPage(ctx context.Context, pageID int64) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx,
		"SELECT keyword FROM keywords WHERE page_id = ? ORDER BY keyword", pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()

	keywords := make([]string, 0)
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// SearchByKeyword returns the pages carrying keyword, ordered by URL.
// limit <= 0 returns every match.
func (cdb *CrawlDB) SearchByKeyword(ctx context.Context, keyword string, limit int) ([]model.PageRecord, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	query := `
	SELECT p.id, p.url, p.title, p.description, p.logo
	FROM pages p
	JOIN keywords k ON k.page_id = p.id
	WHERE k.keyword = ?
	ORDER BY p.url
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search keyword: %w", err)
	}
	defer rows.Close()

	pages := make([]model.PageRecord, 0)
	for rows.Next() {
		var page model.PageRecord
		if err := rows.Scan(&page.ID, &page.URL, &page.Title, &page.Description, &page.IconURL); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// SaveCrawlSummary stores the summary of a finished run.
func (cdb *CrawlDB) SaveCrawlSummary(ctx context.Context, summary *model.CrawlSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	query := `
	INSERT INTO crawl_runs (run_id, started_at, finished_at, summary_json)
	VALUES (?, ?, ?, ?)
	`

	_, err = cdb.db.ExecContext(ctx, query,
		summary.RunID,
		formatTimestamp(summary.StartedAt),
		formatTimestamp(summary.FinishedAt),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl summary: %w", err)
	}
	return nil
}

// ListCrawlSummaries returns the most recent run summaries, newest first.
// limit <= 0 returns every run. Malformed rows are skipped.
func (cdb *CrawlDB) ListCrawlSummaries(ctx context.Context, limit int) ([]*model.CrawlSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
	SELECT summary_json FROM crawl_runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]*model.CrawlSummary, 0)
	for rows.Next() {
		var summaryJSON string
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}

		var summary model.CrawlSummary
		if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
			continue // Skip malformed summaries
		}
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

// GetCrawlSummary retrieves the summary of one run.
// It returns nil, nil when the run is unknown.
func (cdb *CrawlDB) GetCrawlSummary(ctx context.Context, runID string) (*model.CrawlSummary, error) {
	var summaryJSON string
	err := cdb.db.QueryRowContext(ctx,
		"SELECT summary_json FROM crawl_runs WHERE run_id = ?", runID).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl summary: %w", err)
	}

	var summary model.CrawlSummary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}

// formatTimestamp renders t in timestampLayout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
