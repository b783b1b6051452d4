package collector

import (
	"strings"

	"stacks/internal/catalog"
	"stacks/internal/upstream"
)

// EntryFromNode maps a listing record onto a catalog entry. Enrichment fields
// start empty: a null description and no reviews.
func EntryFromNode(node upstream.LibraryNode) catalog.Entry {
	product := node.Product
	entry := catalog.Entry{
		ASIN:       strings.TrimSpace(node.ASIN),
		Title:      strings.TrimSpace(product.Title),
		Authors:    product.AuthorNames(),
		CoverURL:   product.CoverURL(),
		AcquiredAt: node.AcquiredAt.Value,
		Binding:    strings.TrimSpace(product.Binding),
		TopReviews: []catalog.Review{},
	}
	if summary := product.RatingSummary; summary != nil {
		entry.Rating = summary.Rating.Ptr()
		entry.ReviewCount = catalog.NormalizeCount(summary.Count)
	}
	if series, ok := product.Series.Primary(); ok {
		name := strings.TrimSpace(series.Name)
		entry.Series = &name
		entry.SeriesPosition = series.Position.Ptr()
	}
	return entry
}
