package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// FilterRules are the glob patterns applied to discovered URL paths.
//
// Patterns use glob syntax with '/' as separator: "*" stays within one
// path segment and "**" crosses segments. A pattern ending in "/*" also
// matches everything below its prefix ("/admin/*" matches "/admin" and
// "/admin/users/edit"). A pattern without any '/' is matched against the
// last path segment, so "*.pdf" matches "/docs/file.pdf".
type FilterRules struct {
	// IgnorePatterns reject matching paths.
	IgnorePatterns []string

	// FollowPatterns, when set, require a match. Ignore wins over follow.
	FollowPatterns []string
}

// LinkFilter decides which discovered links are pushed to the frontier.
// It is safe for concurrent use once configured. A nil *LinkFilter allows
// every link.
type LinkFilter struct {
	defaults compiledRules
	perHost  map[string]compiledRules

	// allowedHosts restricts discovery to these hosts when non-nil.
	allowedHosts map[string]struct{}
}

// compiledRules is the compiled form of FilterRules.
type compiledRules struct {
	ignore []pathPattern
	follow []pathPattern
}

// pathPattern is one compiled pattern.
type pathPattern struct {
	globs []glob.Glob

	// baseName matches against the last path segment only.
	baseName bool
}

// NewLinkFilter compiles the default rules and the per-host rules. Hosts
// are compared case-insensitively; a host listed in perHost uses its rules
// instead of the defaults.
func NewLinkFilter(defaults FilterRules, perHost map[string]FilterRules) (*LinkFilter, error) {
	compiled, err := compileRules(defaults)
	if err != nil {
		return nil, err
	}

	f := &LinkFilter{
		defaults: compiled,
		perHost:  make(map[string]compiledRules, len(perHost)),
	}
	for host, rules := range perHost {
		c, err := compileRules(rules)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", host, err)
		}
		f.perHost[strings.ToLower(host)] = c
	}
	return f, nil
}

// RestrictToHosts limits discovery to the hosts of the given URLs.
// It must be called before the filter is shared with workers.
func (f *LinkFilter) RestrictToHosts(urls ...string) {
	if f.allowedHosts == nil {
		f.allowedHosts = make(map[string]struct{}, len(urls))
	}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		f.allowedHosts[strings.ToLower(u.Hostname())] = struct{}{}
	}
}

// Allow reports whether rawURL may be followed.
func (f *LinkFilter) Allow(rawURL string) bool {
	if f == nil {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())

	if f.allowedHosts != nil {
		if _, ok := f.allowedHosts[host]; !ok {
			return false
		}
	}

	rules := f.defaults
	if r, ok := f.perHost[host]; ok {
		rules = r
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	return rules.allow(p)
}

// allow applies ignore, then follow patterns to p.
func (r compiledRules) allow(p string) bool {
	for _, pattern := range r.ignore {
		if pattern.match(p) {
			return false
		}
	}
	if len(r.follow) == 0 {
		return true
	}
	for _, pattern := range r.follow {
		if pattern.match(p) {
			return true
		}
	}
	return false
}

func (p pathPattern) match(urlPath string) bool {
	target := urlPath
	if p.baseName {
		target = path.Base(urlPath)
	}
	for _, g := range p.globs {
		if g.Match(target) {
			return true
		}
	}
	return false
}

func compileRules(rules FilterRules) (compiledRules, error) {
	var c compiledRules
	for _, raw := range rules.IgnorePatterns {
		p, err := compilePattern(raw)
		if err != nil {
			return compiledRules{}, err
		}
		c.ignore = append(c.ignore, p)
	}
	for _, raw := range rules.FollowPatterns {
		p, err := compilePattern(raw)
		if err != nil {
			return compiledRules{}, err
		}
		c.follow = append(c.follow, p)
	}
	return c, nil
}

// compilePattern compiles raw with '/' as separator, adding the subtree
// form for "/*" suffixes.
func compilePattern(raw string) (pathPattern, error) {
	sources := []string{raw}
	if prefix, ok := strings.CutSuffix(raw, "/*"); ok && prefix != "" {
		sources = append(sources, prefix, prefix+"/**")
	}

	p := pathPattern{baseName: !strings.Contains(raw, "/")}
	for _, src := range sources {
		g, err := glob.Compile(src, '/')
		if err != nil {
			return pathPattern{}, fmt.Errorf("%w %q: %w", ErrInvalidPattern, raw, err)
		}
		p.globs = append(p.globs, g)
	}
	return p, nil
}
