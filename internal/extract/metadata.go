package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Metadata extracts the title, description and icon URL of doc.
// Relative icon references are resolved against baseURL.
// Absent elements yield the model.*Unavailable fallbacks.
func Metadata(doc *html.Node, baseURL string) model.Metadata {
	meta := model.Metadata{
		Title:       model.TitleUnavailable,
		Description: model.DescriptionUnavailable,
		IconURL:     model.IconUnavailable,
	}
	if doc == nil {
		return meta
	}

	d := goquery.NewDocumentFromNode(doc)

	if title := strings.TrimSpace(d.Find("title").First().Text()); title != "" {
		meta.Title = title
	}

	if description, ok := metaDescription(d); ok {
		meta.Description = description
	}

	if icon, ok := iconURL(d, baseURL); ok {
		meta.IconURL = icon
	}

	return meta
}

// metaDescription returns the content of the first <meta name="description">
// that carries a content attribute.
func metaDescription(d *goquery.Document) (string, bool) {
	var (
		description string
		found       bool
	)
	d.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		content, ok := s.Attr("content")
		if !ok {
			return true
		}
		description = strings.TrimSpace(content)
		found = true
		return false
	})
	return description, found
}

// iconURL returns the resolved href of the first <link> whose rel mentions
// "icon" in any case.
func iconURL(d *goquery.Document, baseURL string) (string, bool) {
	var (
		icon  string
		found bool
	)
	d.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if !strings.Contains(strings.ToLower(rel), "icon") {
			return true
		}
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		resolved, err := model.ResolveURL(baseURL, href)
		if err != nil {
			return true
		}
		icon = resolved
		found = true
		return false
	})
	return icon, found
}
