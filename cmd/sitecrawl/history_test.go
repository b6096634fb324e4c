package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/sitecrawl/internal/config"
)

// TestHistoryCommand tests listing previous runs.
func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	dbDir, siteURL, configPath := crawlTestSite(t)

	t.Run("text output", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "history", "-c", configPath, "--db-dir", dbDir, "-v")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "stored=3 existing=0 failed=1") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if !strings.Contains(out, siteURL) {
			t.Errorf("expected seeds in verbose output:\n%s", out)
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "history", "-c", configPath, "--db-dir", dbDir, "-j")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var runs []struct {
			RunID       string `json:"run_id"`
			PagesStored int    `json:"pages_stored"`
		}
		if err := json.Unmarshal([]byte(out), &runs); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(runs) != 1 || runs[0].PagesStored != 3 || runs[0].RunID == "" {
			t.Errorf("unexpected runs %+v", runs)
		}
	})

	t.Run("markdown output", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "history", "-c", configPath, "--db-dir", dbDir, "-m")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# Crawl History") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "history", "-c", configPath, "--db-dir", dbDir, "-j", "-m")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})
}
