package config

import (
	"maps"
	"strings"
	"time"
)

// SiteConfig holds request and link filtering settings for a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// CrawlSettings are the crawl options that may be set in the config file.
// Flags given on the command line take precedence.
type CrawlSettings struct {
	Workers     int           `yaml:"workers,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Depth       int           `yaml:"depth,omitempty"`
	MaxPages    int           `yaml:"maxPages,omitempty"`
	SameHost    bool          `yaml:"sameHost,omitempty"`
	Proxy       string        `yaml:"proxy,omitempty"`
	UserAgent   string        `yaml:"userAgent,omitempty"`
	MaxBodySize int64         `yaml:"maxBodySize,omitempty"`
	DBDir       string        `yaml:"dbDir,omitempty"`
}

// KeywordSettings configure keyword extraction.
type KeywordSettings struct {
	// Stopwords replace the built-in list. An explicit empty list
	// disables stopword filtering.
	Stopwords []string `yaml:"stopwords,omitempty"`

	// Punctuation lists the characters stripped from token edges.
	Punctuation string `yaml:"punctuation,omitempty"`

	// Language is the BCP 47 tag used for lowercasing.
	Language string `yaml:"language,omitempty"`

	// MinLength is the shortest keyword kept, in characters.
	MinLength int `yaml:"minLength,omitempty"`
}

// File represents the structure of the .sitecrawl configuration file.
type File struct {
	// Seeds are crawled in addition to the URLs given as arguments.
	Seeds []string `yaml:"seeds,omitempty"`

	// Crawl holds crawl options.
	Crawl CrawlSettings `yaml:"crawl,omitempty"`

	// Keywords holds keyword extraction options.
	Keywords KeywordSettings `yaml:"keywords,omitempty"`

	// Sites maps host names to their site-specific configurations.
	// Keys are host names without scheme or port (e.g., "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	siteConfig, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	return result
}

// HasCredentials reports whether requests to host carry a cookie or
// custom headers.
func (cf *File) HasCredentials(host string) bool {
	sc := cf.GetSiteConfig(host)
	return sc.Cookie != "" || len(sc.Headers) > 0
}

// lookup finds the site entry for host, ignoring case.
func (cf *File) lookup(host string) (SiteConfig, bool) {
	if sc, ok := cf.Sites[host]; ok {
		return sc, true
	}
	for name, sc := range cf.Sites {
		if strings.EqualFold(name, host) {
			return sc, true
		}
	}
	return SiteConfig{}, false
}
