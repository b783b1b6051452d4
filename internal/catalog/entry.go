package catalog

import (
	"bytes"
	"encoding/json"
	"strings"
)

// AnonymousReviewer stands in for a review excerpt without a reviewer name.
const AnonymousReviewer = "Anonymous"

// Entry is one catalog item. Pointer fields are nullable on output.
type Entry struct {
	ASIN           string          `json:"asin"`
	Title          string          `json:"title"`
	Authors        []string        `json:"authors"`
	CoverURL       string          `json:"coverUrl"`
	Rating         *float64        `json:"rating"`
	ReviewCount    json.RawMessage `json:"reviewCount"`
	Series         *string         `json:"series"`
	SeriesPosition *float64        `json:"seriesPosition"`
	AcquiredAt     int64           `json:"acquiredAt"`
	Binding        string          `json:"binding"`
	Description    *string         `json:"description"`
	TopReviews     []Review        `json:"topReviews"`
}

// Review is a top review excerpt.
type Review struct {
	Stars    float64 `json:"stars"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Reviewer string  `json:"reviewer"`
}

// MarshalJSON keeps list fields as arrays and collapses blank descriptions to null.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	out := plain(e)
	if out.Authors == nil {
		out.Authors = []string{}
	}
	if out.TopReviews == nil {
		out.TopReviews = []Review{}
	}
	if out.Description != nil && strings.TrimSpace(*out.Description) == "" {
		out.Description = nil
	}
	out.ReviewCount = NormalizeCount(out.ReviewCount)
	return json.Marshal(out)
}

// HasDescription reports whether the synopsis holds non-empty text.
func (e Entry) HasDescription() bool {
	return e.Description != nil && strings.TrimSpace(*e.Description) != ""
}

// SetDescription stores text as the synopsis, or null when text is blank.
func (e *Entry) SetDescription(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		e.Description = nil
		return
	}
	e.Description = &text
}

// Clone returns a deep copy so later mutation of e does not leak into the copy.
func (e Entry) Clone() Entry {
	out := e
	out.Authors = append([]string(nil), e.Authors...)
	out.TopReviews = append([]Review(nil), e.TopReviews...)
	out.ReviewCount = append(json.RawMessage(nil), e.ReviewCount...)
	if e.Rating != nil {
		v := *e.Rating
		out.Rating = &v
	}
	if e.Series != nil {
		v := *e.Series
		out.Series = &v
	}
	if e.SeriesPosition != nil {
		v := *e.SeriesPosition
		out.SeriesPosition = &v
	}
	if e.Description != nil {
		v := *e.Description
		out.Description = &v
	}
	return out
}

// InheritEnrichment fills fields the listing never carries from an earlier
// copy of the same item: the synopsis and top reviews, plus the rating and
// review count when the listing left them empty. A later enrichment still
// overwrites whatever it fetches.
func (e *Entry) InheritEnrichment(prior Entry) {
	prior = prior.Clone()
	if !e.HasDescription() && prior.HasDescription() {
		e.Description = prior.Description
	}
	if len(e.TopReviews) == 0 && len(prior.TopReviews) > 0 {
		e.TopReviews = prior.TopReviews
	}
	if e.Rating == nil {
		e.Rating = prior.Rating
	}
	if NormalizeCount(e.ReviewCount) == nil {
		e.ReviewCount = prior.ReviewCount
	}
}

// NormalizeCount keeps a review count only when it is a JSON number or string;
// anything else becomes nil, which marshals as null.
func NormalizeCount(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch c := raw[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9':
		if json.Valid(raw) {
			return append(json.RawMessage(nil), raw...)
		}
	}
	return nil
}
