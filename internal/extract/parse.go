package extract

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Parse builds a DOM from an HTTP response body.
//
// The body is decoded to UTF-8 using the charset named in contentType, a
// <meta charset> declaration or content sniffing, in that order. Parse never
// fails: undecodable or unparsable input yields an empty document, which the
// extractors turn into fallbacks.
func Parse(body []byte, contentType string) *html.Node {
	var r io.Reader = bytes.NewReader(body)
	if decoded, err := charset.NewReader(r, contentType); err == nil {
		r = decoded
	} else {
		r = bytes.NewReader(body)
	}

	doc, err := html.Parse(r)
	if err != nil {
		return &html.Node{Type: html.DocumentNode}
	}
	return doc
}
