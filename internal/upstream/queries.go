package upstream

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

const (
	// OperationListing names the paginated catalog query.
	OperationListing = "LibraryPage"
	// OperationEnrichment names the per-entry product query.
	OperationEnrichment = "ProductDetail"
)

//go:embed queries/listing.graphql
var defaultListingQuery string

//go:embed queries/enrichment.graphql
var defaultEnrichmentQuery string

// Queries holds the query documents sent to the upstream.
type Queries struct {
	Listing    string
	Enrichment string
}

// DefaultQueries returns the embedded documents.
func DefaultQueries() Queries {
	return Queries{Listing: defaultListingQuery, Enrichment: defaultEnrichmentQuery}
}

// LoadQueries returns the embedded documents, replacing each one whose override
// path is set with the contents of that file.
func LoadQueries(listingPath, enrichmentPath string) (Queries, error) {
	queries := DefaultQueries()
	if listingPath != "" {
		doc, err := readQuery(listingPath)
		if err != nil {
			return Queries{}, err
		}
		queries.Listing = doc
	}
	if enrichmentPath != "" {
		doc, err := readQuery(enrichmentPath)
		if err != nil {
			return Queries{}, err
		}
		queries.Enrichment = doc
	}
	return queries, nil
}

func readQuery(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read query document: %w", err)
	}
	doc := strings.TrimSpace(string(data))
	if doc == "" {
		return "", fmt.Errorf("query document %s is empty", path)
	}
	return doc, nil
}
