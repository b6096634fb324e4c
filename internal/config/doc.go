// Package config provides configuration structures and utilities for sitecrawl.
// It defines the crawl options, keyword extraction settings, per-site
// request and link filtering rules, and report generation preferences.
package config
