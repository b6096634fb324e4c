package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
)

// crawlTestSite crawls the test site into a new database directory and
// returns the directory, the site URL and the config path.
func crawlTestSite(t *testing.T) (dbDir, siteURL, configPath string) {
	t.Helper()

	srv := testSite(t)
	dbDir = t.TempDir()
	configPath = writeConfig(t, "seeds: []\n")

	if _, err := execute(t, "crawl", "-c", configPath, "--db-dir", dbDir, srv.URL); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	return dbDir, srv.URL, configPath
}

// TestSearchCommand tests keyword search over a crawled database.
func TestSearchCommand(t *testing.T) {
	t.Parallel()

	dbDir, siteURL, configPath := crawlTestSite(t)

	t.Run("finds pages by normalized keyword", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "search", "-c", configPath, "--db-dir", dbDir, "Souris!")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, `1 page(s) found for "souris"`) {
			t.Errorf("unexpected output:\n%s", out)
		}
		if !strings.Contains(out, siteURL+"/b") || !strings.Contains(out, "Second page") {
			t.Errorf("expected page /b in output:\n%s", out)
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "search", "-c", configPath, "--db-dir", dbDir, "-j", "hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var pages []model.PageRecord
		if err := json.Unmarshal([]byte(out), &pages); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(pages) != 1 || pages[0].Title != "B" {
			t.Errorf("unexpected pages %+v", pages)
		}
	})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "search", "-c", configPath, "--db-dir", dbDir, "absent")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No page found") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("keyword made only of punctuation", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "search", "-c", configPath, "--db-dir", dbDir, "?!")
		if !errors.Is(err, errEmptyKeyword) {
			t.Errorf("expected errEmptyKeyword, got %v", err)
		}
	})
}

// TestSearchCommandMissingDatabase tests that search does not create a database.
func TestSearchCommandMissingDatabase(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, "seeds: []\n")
	_, err := execute(t, "search", "-c", configPath, "--db-dir", filepath.Join(t.TempDir(), "none"), "chat")
	if !errors.Is(err, database.ErrDatabaseNotFound) {
		t.Errorf("expected ErrDatabaseNotFound, got %v", err)
	}
}
