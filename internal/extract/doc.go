// Package extract turns a parsed HTML document into the data sitecrawl
// persists: page metadata, page text, keywords and outgoing links.
//
// All functions in this package are pure. They never fail on malformed
// documents; missing elements only trigger the documented fallbacks.
//
// The body is parsed once with golang.org/x/net/html; every extractor queries
// that same tree through goquery.
package extract
