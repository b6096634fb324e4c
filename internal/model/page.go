package model

// Fallback values stored when a page lacks the corresponding element.
const (
	// TitleUnavailable is stored when the page has no usable <title>.
	TitleUnavailable = "title unavailable"

	// DescriptionUnavailable is stored when the page has no meta description.
	DescriptionUnavailable = "description unavailable"

	// IconUnavailable is stored when the page declares no icon link.
	IconUnavailable = "logo unavailable"
)

// Metadata is the structured information extracted from a page's DOM.
type Metadata struct {
	// Title is the trimmed text of the page's <title> element.
	Title string `json:"title"`

	// Description is the trimmed content of <meta name="description">.
	Description string `json:"description"`

	// IconURL is the absolute URL of the first icon <link>.
	IconURL string `json:"icon_url"`
}

// PageRecord is the persisted row for one crawled URL.
// It is created once, on the first successful fetch of the URL, and never
// mutated afterwards.
type PageRecord struct {
	// ID is the storage-assigned identifier. Zero until persisted.
	ID int64 `json:"id"`

	// URL is the normalized URL and the unique key of the record.
	URL string `json:"url"`

	// Title is the page title or TitleUnavailable.
	Title string `json:"title"`

	// Description is the meta description or DescriptionUnavailable.
	Description string `json:"description"`

	// IconURL is stored in the "logo" column for compatibility.
	IconURL string `json:"logo"`
}

// NewPageRecord builds a PageRecord for url from extracted metadata.
func NewPageRecord(url string, meta Metadata) *PageRecord {
	return &PageRecord{
		URL:         url,
		Title:       meta.Title,
		Description: meta.Description,
		IconURL:     meta.IconURL,
	}
}
