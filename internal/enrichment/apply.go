package enrichment

import (
	"strings"

	"stacks/internal/catalog"
	"stacks/internal/richtext"
	"stacks/internal/upstream"
)

// Apply copies the enrichment payload onto entry and reports whether the
// synopsis came from the alternate summary. An empty synopsis leaves the
// existing description untouched; rating and review count change only when
// the payload carries non-null values.
func Apply(entry *catalog.Entry, product upstream.Product) (usedFallback bool) {
	text, fallback := richtext.Synopsis(product.Description, product.AlternateSummary)
	if text != "" {
		entry.SetDescription(text)
	}

	if product.CustomerReviewsTop != nil {
		entry.TopReviews = Reviews(product.CustomerReviewsTop.Reviews)
	} else if entry.TopReviews == nil {
		entry.TopReviews = []catalog.Review{}
	}

	if summary := product.CustomerReviewsSummary; summary != nil {
		if summary.Rating.Valid {
			entry.Rating = summary.Rating.Ptr()
		}
		if count := catalog.NormalizeCount(summary.Count); count != nil {
			entry.ReviewCount = count
		}
	}
	return fallback
}

// Reviews converts upstream excerpts, filling neutral placeholders for missing
// values. Excerpts with neither a title nor text are dropped.
func Reviews(reviews []upstream.Review) []catalog.Review {
	out := make([]catalog.Review, 0, len(reviews))
	for _, review := range reviews {
		converted := catalog.Review{
			Stars:    review.Stars.Value,
			Title:    richtext.Text(review.Title),
			Text:     richtext.Text(review.Abstract),
			Reviewer: catalog.AnonymousReviewer,
		}
		if converted.Title == "" && converted.Text == "" {
			continue
		}
		if review.Reviewer != nil {
			if name := strings.TrimSpace(review.Reviewer.Name); name != "" {
				converted.Reviewer = name
			}
		}
		out = append(out, converted)
	}
	return out
}
