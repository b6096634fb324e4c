package extract

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Links returns the href of every anchor in doc, resolved against baseURL.
// Only http and https results are kept; fragments are dropped and
// duplicates removed, preserving document order.
func Links(doc *html.Node, baseURL string) []string {
	links := make([]string, 0)
	if doc == nil {
		return links
	}

	seen := make(map[string]struct{})
	goquery.NewDocumentFromNode(doc).Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || href == "#" {
			return
		}
		resolved, err := model.ResolveURL(baseURL, href)
		if err != nil || !model.IsCrawlable(resolved) {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}
