package model

import (
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

// DefaultScheme is prefixed to URLs that carry no http or https scheme.
const DefaultScheme = "https://"

// urlParser is shared by every normalization call. The WHATWG parser
// lowercases scheme and host, removes default ports and gives special
// schemes an explicit root path.
var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// NormalizeURL returns the canonical form of rawURL used for deduplication
// and storage.
//
// If rawURL does not start with "http://" or "https://", DefaultScheme is
// prefixed. The result is then parsed with the WHATWG URL parser and
// serialized without its fragment. When parsing fails, the prefixed string
// is returned unchanged. NormalizeURL is idempotent.
func NormalizeURL(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if !hasHTTPScheme(u) {
		u = DefaultScheme + u
	}

	parsed, err := urlParser.Parse(u)
	if err != nil {
		return u
	}
	return parsed.Href(true)
}

// ResolveURL resolves ref against base using WHATWG resolution rules and
// returns the serialized absolute URL without its fragment.
func ResolveURL(base, ref string) (string, error) {
	resolved, err := urlParser.ParseRef(base, strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return resolved.Href(true), nil
}

// IsCrawlable reports whether rawURL uses a scheme the crawler can fetch.
func IsCrawlable(rawURL string) bool {
	return hasHTTPScheme(rawURL)
}

// hasHTTPScheme reports whether s starts with http:// or https://,
// ignoring case.
func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
