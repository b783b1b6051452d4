package upstream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// LibraryPage is one page of the catalog listing.
type LibraryPage struct {
	PageInfo   PageInfo      `json:"pageInfo"`
	TotalCount FlexInt64     `json:"totalCount"`
	Edges      []LibraryEdge `json:"edges"`
}

// PageInfo carries the opaque cursor for the next page.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// LibraryEdge is a single owned item in the listing.
type LibraryEdge struct {
	Node LibraryNode `json:"node"`
}

// LibraryNode holds the identity key, the acquisition timestamp and the product record.
type LibraryNode struct {
	ASIN       string         `json:"asin"`
	AcquiredAt FlexInt64      `json:"acquiredAt"`
	Product    ProductSummary `json:"product"`
}

// ProductSummary is the product record embedded in a listing edge.
type ProductSummary struct {
	Title         string         `json:"title"`
	Authors       []Person       `json:"authors"`
	Images        []Image        `json:"images"`
	RatingSummary *RatingSummary `json:"ratingSummary"`
	Series        SeriesList     `json:"series"`
	Binding       string         `json:"binding"`
}

// Person names an author or reviewer.
type Person struct {
	Name string `json:"name"`
}

// Image references a cover image.
type Image struct {
	URL string `json:"url"`
}

// RatingSummary carries the aggregate rating. Count keeps the raw JSON token so
// a string count stays a string on output.
type RatingSummary struct {
	Rating FlexFloat       `json:"rating"`
	Count  json.RawMessage `json:"count"`
}

// SeriesInfo names a series and the position of the product within it.
type SeriesInfo struct {
	Name     string    `json:"name"`
	Position FlexFloat `json:"position"`
}

// SeriesList accepts either a single series object or an array of them.
type SeriesList []SeriesInfo

func (s *SeriesList) UnmarshalJSON(data []byte) error {
	*s = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		return nil
	}
	if data[0] == '[' {
		var list []SeriesInfo
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var single SeriesInfo
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = SeriesList{single}
	return nil
}

// Primary returns the first named series, if any.
func (s SeriesList) Primary() (SeriesInfo, bool) {
	for _, info := range s {
		if strings.TrimSpace(info.Name) != "" {
			return info, true
		}
	}
	return SeriesInfo{}, false
}

// AuthorNames returns non-empty author names in order.
func (p ProductSummary) AuthorNames() []string {
	names := make([]string, 0, len(p.Authors))
	for _, author := range p.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// CoverURL returns the first non-empty image reference.
func (p ProductSummary) CoverURL() string {
	for _, image := range p.Images {
		if url := strings.TrimSpace(image.URL); url != "" {
			return url
		}
	}
	return ""
}

// Product is the per-entry enrichment payload. Description and AlternateSummary
// are left raw because their shape varies.
type Product struct {
	Description            json.RawMessage `json:"description"`
	AlternateSummary       json.RawMessage `json:"alternateSummary"`
	CustomerReviewsSummary *RatingSummary  `json:"customerReviewsSummary"`
	CustomerReviewsTop     *ReviewList     `json:"customerReviewsTop"`
}

// ReviewList wraps the top review excerpts.
type ReviewList struct {
	Reviews []Review `json:"reviews"`
}

// Review is one review excerpt. Title and Abstract may be plain text or a fragment tree.
type Review struct {
	Stars    FlexFloat       `json:"stars"`
	Title    json.RawMessage `json:"title"`
	Abstract json.RawMessage `json:"abstract"`
	Reviewer *Person         `json:"reviewer"`
}
