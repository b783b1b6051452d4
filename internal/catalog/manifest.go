package catalog

// Manifest summarizes a saved Dataset so downstream consumers can detect staleness
// without parsing the whole snapshot.
type Manifest struct {
	SchemaVersion      string          `json:"schemaVersion"`
	FetcherVersion     string          `json:"fetcherVersion"`
	LastFetched        string          `json:"lastFetched"`
	TotalBooks         int             `json:"totalBooks"`
	NewBooksAdded      int             `json:"newBooksAdded"`
	EnrichmentComplete bool            `json:"enrichmentComplete"`
	EnrichmentStats    EnrichmentStats `json:"enrichmentStats"`
	CollectionComplete bool            `json:"collectionComplete"`
	RunID              string          `json:"runId"`
}

// EnrichmentStats counts enrichment results for one run.
type EnrichmentStats struct {
	Attempted        int      `json:"attempted"`
	Succeeded        int      `json:"succeeded"`
	Partial          int      `json:"partial"`
	Failed           int      `json:"failed"`
	FallbackSynopsis int      `json:"fallbackSynopsis"`
	FailedASINs      []string `json:"failedAsins"`
}
