package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
)

// errEmptyKeyword is returned when the search term has no keyword left
// after normalization.
var errEmptyKeyword = errors.New("keyword is empty after normalization")

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "List stored pages that carry a keyword",
		Long: `Search lists the crawled pages whose keyword set contains the given word.

The word is normalized the same way keywords are extracted during a crawl
(lowercased and stripped of punctuation), using the keyword settings of the
configuration file.

Examples:
  sitecrawl search chat
  sitecrawl search --limit 5 --json souris`,
		Args: cobra.ExactArgs(1),
		RunE: runSearchCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().IntP("limit", "l", 0,
		"Maximum number of results (0 = all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output results as JSON")

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadStoreConfig(cmd)
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	keyword := newKeywordExtractor(cfg.Keywords).Canonical(args[0])
	if keyword == "" {
		return fmt.Errorf("%q: %w", args[0], errEmptyKeyword)
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pages, err := db.SearchByKeyword(cmd.Context(), keyword, limit)
	if err != nil {
		return err
	}

	if asJSON {
		return writeSearchJSON(cmd.OutOrStdout(), pages)
	}
	writeSearchText(cmd.OutOrStdout(), keyword, pages)
	return nil
}

// loadStoreConfig loads the configuration used by the commands that read
// the database: the config file plus an explicit --db-dir.
func loadStoreConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	file, err := loadConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	cfg.ApplyFile(file)
	if cmd.Flags().Changed("db-dir") {
		if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// writeSearchJSON writes the matching pages as a JSON array.
func writeSearchJSON(out io.Writer, pages []model.PageRecord) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(pages)
}

// writeSearchText writes one block per matching page.
func writeSearchText(out io.Writer, keyword string, pages []model.PageRecord) {
	if len(pages) == 0 {
		fmt.Fprintf(out, "No page found for %q\n", keyword)
		return
	}

	fmt.Fprintf(out, "%d page(s) found for %q:\n\n", len(pages), keyword)
	for _, p := range pages {
		fmt.Fprintf(out, "  %s\n", p.URL)
		fmt.Fprintf(out, "    %s\n", p.Title)
		if p.Description != model.DescriptionUnavailable && p.Description != "" {
			fmt.Fprintf(out, "    %s\n", p.Description)
		}
	}
}
