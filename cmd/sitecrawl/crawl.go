package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/transport"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl web sites and store page metadata and keywords",
		Long: `Crawl fetches the seed URLs and every page reachable from them, breadth-first.

For each page, the title, meta description, icon URL and keyword set are
stored in the SQLite database. A page is stored once; later runs keep the
existing record. Pages that cannot be fetched are reported and skipped.

Examples:
  # Crawl a site with the default settings
  sitecrawl crawl https://example.com/

  # Stay on the seed hosts, two hops deep, 16 workers
  sitecrawl crawl --same-host -d 2 -w 16 https://example.com/

  # Stop after 500 pages and write a Markdown report
  sitecrawl crawl -p 500 -m -o report.md https://example.com/

  # Crawl through a SOCKS5 proxy
  sitecrawl crawl --proxy 127.0.0.1:9050 https://example.com/

  # Seeds and settings from a configuration file
  sitecrawl crawl -c crawl.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")

	// Crawl behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent workers")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum link depth from a seed (0 = unlimited)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch (0 = unlimited)")
	cmd.Flags().Bool("same-host", false,
		"Only follow links to the hosts of the seeds")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from the configuration file and the flags.
// Flags override file values only when given explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	file, err := loadConfigFile(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}

	cfg.Seeds = append(cfg.Seeds, args...)
	cfg.ApplyFile(file)

	flags := cmd.Flags()
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("depth") {
		if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("same-host") {
		if cfg.SameHost, err = flags.GetBool("same-host"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfigFile finds and loads the configuration file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used when no file is found.
func loadConfigFile(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return file, nil
}

// runCrawl opens the database, runs the traversal and reports the result.
// A partial summary is still saved and reported when the crawl is
// interrupted; the interruption is then returned as the error.
func runCrawl(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	client, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	filter, err := newLinkFilter(cfg)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	engine := crawler.NewEngine(client, db,
		crawler.WithWorkers(cfg.Workers),
		crawler.WithFetchTimeout(cfg.Timeout),
		crawler.WithMaxDepth(cfg.CrawlDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithLinkFilter(filter),
		crawler.WithKeywordExtractor(newKeywordExtractor(cfg.Keywords)),
		crawler.WithLogger(logger),
	)

	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"workers", cfg.Workers,
		"depth", cfg.CrawlDepth,
		"maxPages", cfg.MaxPages,
	)

	summary, runErr := engine.Run(ctx, cfg.Seeds)
	if summary == nil {
		return runErr
	}

	// The run context may already be cancelled; the summary is still saved.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := db.SaveCrawlSummary(saveCtx, summary); err != nil {
		logger.Error("failed to save crawl summary", "run", summary.RunID, "error", err)
	}

	if err := outputReport(cfg, summary, out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("crawl interrupted: %w", runErr)
	}
	return nil
}

// newClient creates the HTTP client and verifies the proxy, if any.
func newClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*transport.Client, error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, transport.WithProxy(cfg.ProxyAddress))
	}
	if lookup := credentialsLookup(cfg.SiteConfigs); lookup != nil {
		opts = append(opts, transport.WithCredentials(lookup))
	}

	client, err := transport.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if cfg.ProxyAddress != "" {
		if err := client.CheckProxy(ctx); err != nil {
			return nil, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, err)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}
	return client, nil
}

// credentialsLookup returns the per-host cookie and header lookup, or nil
// when the configuration file defines none.
func credentialsLookup(file *config.File) transport.CredentialsLookup {
	if file == nil {
		return nil
	}
	return func(host string) (transport.SiteCredentials, bool) {
		if !file.HasCredentials(host) {
			return transport.SiteCredentials{}, false
		}
		sc := file.GetSiteConfig(host)
		return transport.SiteCredentials{Cookie: sc.Cookie, Headers: sc.Headers}, true
	}
}

// newLinkFilter builds the link filter from the site patterns and the
// same-host setting. It returns nil when nothing restricts discovery.
func newLinkFilter(cfg *config.Config) (*crawler.LinkFilter, error) {
	var defaults crawler.FilterRules
	perHost := make(map[string]crawler.FilterRules)

	if file := cfg.SiteConfigs; file != nil {
		defaults = crawler.FilterRules{
			IgnorePatterns: file.Defaults.IgnorePatterns,
			FollowPatterns: file.Defaults.FollowPatterns,
		}
		for host := range file.Sites {
			sc := file.GetSiteConfig(host)
			perHost[host] = crawler.FilterRules{
				IgnorePatterns: sc.IgnorePatterns,
				FollowPatterns: sc.FollowPatterns,
			}
		}
	}

	hasRules := len(defaults.IgnorePatterns) > 0 || len(defaults.FollowPatterns) > 0 || len(perHost) > 0
	if !hasRules && !cfg.SameHost {
		return nil, nil
	}

	filter, err := crawler.NewLinkFilter(defaults, perHost)
	if err != nil {
		return nil, err
	}
	if cfg.SameHost {
		seeds := make([]string, len(cfg.Seeds))
		for i, s := range cfg.Seeds {
			seeds[i] = model.NormalizeURL(s)
		}
		filter.RestrictToHosts(seeds...)
	}
	return filter, nil
}

// newKeywordExtractor builds the keyword extractor from the settings.
func newKeywordExtractor(s config.KeywordSettings) *extract.KeywordExtractor {
	return extract.NewKeywordExtractor(extract.KeywordOptions{
		Stopwords:   s.Stopwords,
		Punctuation: s.Punctuation,
		Language:    s.Language,
		MinLength:   s.MinLength,
	})
}

// outputReport writes the summary in the requested format to the report
// file, or to out when no file is configured.
func outputReport(cfg *config.Config, summary *model.CrawlSummary, out io.Writer) error {
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	_, err := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, out).Write(summary)
	return err
}

// newReportWriter selects the report writer for the output flags.
func newReportWriter(asJSON, asMarkdown, verbose bool, out io.Writer) report.Writer {
	switch {
	case asJSON:
		return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case asMarkdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
}
