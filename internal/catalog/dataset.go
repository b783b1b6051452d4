package catalog

import (
	"fmt"
	"time"
)

// SchemaVersion is the only dataset schema this module reads and writes.
const SchemaVersion = "2.0"

// FetcherVersion identifies the producing build in dataset and manifest metadata.
var FetcherVersion = "stacks/dev"

// Dataset is a versioned snapshot of the catalog, newest acquisition first.
type Dataset struct {
	Metadata Metadata `json:"metadata"`
	Books    []Entry  `json:"books"`
}

// Metadata summarizes a Dataset.
type Metadata struct {
	SchemaVersion                   string               `json:"schemaVersion"`
	FetcherVersion                  string               `json:"fetcherVersion"`
	FetchDate                       string               `json:"fetchDate"`
	TotalBooks                      int                  `json:"totalBooks"`
	BooksWithoutDescriptions        int                  `json:"booksWithoutDescriptions"`
	BooksWithoutDescriptionsDetails []MissingDescription `json:"booksWithoutDescriptionsDetails"`
	// ResumeCheckpoint is set when the producing run stopped collecting early;
	// the next run starts its overlap check from here instead of the newest entry.
	ResumeCheckpoint *int64 `json:"resumeCheckpoint,omitempty"`
}

// MissingDescription identifies an entry whose synopsis is null.
type MissingDescription struct {
	ASIN    string   `json:"asin"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
}

// Validate checks that d uses the supported schema.
func (d *Dataset) Validate() error {
	if d == nil {
		return fmt.Errorf("dataset is nil")
	}
	if d.Metadata.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %q (want %q)", d.Metadata.SchemaVersion, SchemaVersion)
	}
	for i, entry := range d.Books {
		if entry.ASIN == "" {
			return fmt.Errorf("book %d has no asin", i)
		}
	}
	return nil
}

// Checkpoint returns the overlap boundary for the next incremental run: the
// recorded resume checkpoint when present, otherwise the newest acquisition
// timestamp. ok is false when there is nothing to bound the walk.
func Checkpoint(d *Dataset) (value int64, ok bool) {
	if d == nil {
		return 0, false
	}
	if d.Metadata.ResumeCheckpoint != nil {
		return *d.Metadata.ResumeCheckpoint, true
	}
	for _, entry := range d.Books {
		if !ok || entry.AcquiredAt > value {
			value = entry.AcquiredAt
			ok = true
		}
	}
	return value, ok
}

// MissingDescriptions lists entries whose synopsis is null, in dataset order.
func MissingDescriptions(books []Entry) []MissingDescription {
	missing := make([]MissingDescription, 0)
	for _, entry := range books {
		if entry.HasDescription() {
			continue
		}
		authors := entry.Authors
		if authors == nil {
			authors = []string{}
		}
		missing = append(missing, MissingDescription{ASIN: entry.ASIN, Title: entry.Title, Authors: authors})
	}
	return missing
}

// FormatTimestamp renders t the way fetchDate and lastFetched are written.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
