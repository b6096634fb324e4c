package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecrawl/internal/transport"
)

// Default configuration values.
const (
	// DefaultWorkers is the size of the crawl worker pool.
	DefaultWorkers = 8

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = transport.DefaultTimeout

	// DefaultCrawlDepth of 0 means the depth is not bounded and the crawl
	// runs until the frontier is exhausted.
	DefaultCrawlDepth = 0

	// DefaultMaxPages of 0 means no page limit.
	DefaultMaxPages = 0

	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultUserAgent identifies sitecrawl in HTTP requests.
	DefaultUserAgent = transport.DefaultUserAgent

	// DefaultMaxBodySize limits the maximum response body size to read.
	DefaultMaxBodySize = transport.DefaultMaxBodySize
)

// Config holds all configuration options for sitecrawl.
// It is populated from the configuration file and CLI flags and passed
// through the application rather than kept in global state.
type Config struct {
	// Seeds are the URLs the traversal starts from.
	Seeds []string

	// Workers is the number of concurrent crawl workers.
	Workers int

	// Timeout is the timeout of a single page fetch, body included.
	Timeout time.Duration

	// CrawlDepth is the maximum link depth from a seed. Seeds have depth 0.
	// A value of 0 means unbounded.
	CrawlDepth int

	// MaxPages is the maximum number of pages fetched in one run.
	// A value of 0 means no limit.
	MaxPages int

	// SameHost restricts discovery to the hosts of the seeds.
	SameHost bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	// When empty, requests go out directly.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// Keywords configures keyword extraction.
	Keywords KeywordSettings

	// DBDir is the directory holding the SQLite database.
	// Defaults to XDG data directory (~/.local/share/sitecrawl on Linux).
	DBDir string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sitecrawl in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of human-readable format.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:     DefaultWorkers,
		Timeout:     DefaultTimeout,
		CrawlDepth:  DefaultCrawlDepth,
		MaxPages:    DefaultMaxPages,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		DBDir:       XDGDataDir(),
	}
}

// ApplyFile copies the settings present in cf into c. Zero values in the
// file leave the current value untouched, and file seeds are appended.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	c.SiteConfigs = cf
	c.Seeds = append(c.Seeds, cf.Seeds...)

	cs := cf.Crawl
	if cs.Workers > 0 {
		c.Workers = cs.Workers
	}
	if cs.Timeout > 0 {
		c.Timeout = cs.Timeout
	}
	if cs.Depth > 0 {
		c.CrawlDepth = cs.Depth
	}
	if cs.MaxPages > 0 {
		c.MaxPages = cs.MaxPages
	}
	if cs.SameHost {
		c.SameHost = true
	}
	if cs.Proxy != "" {
		c.ProxyAddress = cs.Proxy
	}
	if cs.UserAgent != "" {
		c.UserAgent = cs.UserAgent
	}
	if cs.MaxBodySize > 0 {
		c.MaxBodySize = cs.MaxBodySize
	}
	if cs.DBDir != "" {
		c.DBDir = cs.DBDir
	}

	c.Keywords = cf.Keywords
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
// On macOS: ~/Library/Application Support/sitecrawl
// On Windows: %LOCALAPPDATA%\sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.CrawlDepth < 0 {
		return ErrInvalidDepth
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
