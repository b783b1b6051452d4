package collector_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"stacks/internal/collector"
	"stacks/internal/credential"
	"stacks/internal/retry"
	"stacks/internal/services"
	"stacks/internal/upstream"
)

var formats = []string{"Kindle Edition", "Audible Audiobook"}

type record struct {
	asin     string
	acquired int64
	binding  string
	authors  []string
}

func pageOf(cursor string, hasNext bool, records ...record) upstream.LibraryPage {
	page := upstream.LibraryPage{PageInfo: upstream.PageInfo{HasNextPage: hasNext, EndCursor: cursor}}
	for _, r := range records {
		node := upstream.LibraryNode{
			ASIN:       r.asin,
			AcquiredAt: upstream.FlexInt64{Value: r.acquired, Valid: true},
			Product:    upstream.ProductSummary{Title: "Title " + r.asin, Binding: r.binding},
		}
		for _, name := range r.authors {
			node.Product.Authors = append(node.Product.Authors, upstream.Person{Name: name})
		}
		page.Edges = append(page.Edges, upstream.LibraryEdge{Node: node})
	}
	return page
}

// fakeLister serves pages keyed by the cursor it is called with.
type fakeLister struct {
	pages   map[string]upstream.LibraryPage
	fail    map[string]bool
	cursors []string
}

func (f *fakeLister) ListLibrary(_ context.Context, _ credential.Token, cursor string, _ int) upstream.Outcome[upstream.LibraryPage] {
	f.cursors = append(f.cursors, cursor)
	if f.fail[cursor] {
		return upstream.Outcome[upstream.LibraryPage]{Operation: upstream.OperationListing, Kind: upstream.KindHTTPError, StatusCode: 503}
	}
	page, ok := f.pages[cursor]
	if !ok {
		return upstream.Outcome[upstream.LibraryPage]{Operation: upstream.OperationListing, Kind: upstream.KindEmptyResult}
	}
	return upstream.Outcome[upstream.LibraryPage]{Operation: upstream.OperationListing, Kind: upstream.KindSuccess, Payload: &page}
}

func noSleep(context.Context, time.Duration) error { return nil }

func newCollector(lister collector.Lister, maxPages int) *collector.Collector {
	retrier := retry.New(nil, retry.Policy{MaxAttempts: 2, BaseDelay: time.Second}, retry.WithSleeper(noSleep))
	return collector.New(lister, retrier, collector.Settings{PageSize: 3, MaxPages: maxPages, AllowedFormats: formats})
}

func keys(result collector.Result) []string {
	out := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		out = append(out, entry.ASIN)
	}
	return out
}

func TestCollectStopsAtOverlap(t *testing.T) {
	lister := &fakeLister{pages: map[string]upstream.LibraryPage{
		"":   pageOf("c1", true, record{"A", 500, "Kindle Edition", []string{"X"}}, record{"B", 400, "Kindle Edition", []string{"Y"}}),
		"c1": pageOf("c2", true, record{"C", 300, "Kindle Edition", []string{"Z"}}, record{"D", 200, "Kindle Edition", nil}, record{"E", 100, "Kindle Edition", nil}),
		"c2": pageOf("", false, record{"F", 50, "Kindle Edition", nil}),
	}}
	checkpoint := int64(200)

	result, err := newCollector(lister, 0).Collect(context.Background(), retry.Session{Token: "t"}, &checkpoint)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if got := keys(result); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("collected %v", got)
	}
	if !result.Stats.ReachedOverlap || result.Stats.ReachedLastPage || !result.Complete() {
		t.Fatalf("unexpected stop flags %+v", result.Stats)
	}
	if result.Stats.Fetched != 3 || result.Stats.Pages != 2 {
		t.Fatalf("expected 3 fetched over 2 pages, got %+v", result.Stats)
	}
	if !reflect.DeepEqual(lister.cursors, []string{"", "c1"}) {
		t.Fatalf("unexpected cursors %v", lister.cursors)
	}
}

func TestCollectFiltersAndDeduplicates(t *testing.T) {
	lister := &fakeLister{pages: map[string]upstream.LibraryPage{
		"": pageOf("c1", true,
			record{"B0085HN8N6", 900, "Kindle Edition", []string{"X"}},
			record{"P1", 890, "Paperback", []string{"X"}},
			record{"", 880, "Kindle Edition", nil},
		),
		"c1": pageOf("", false,
			record{"B0085HN8N6", 870, "kindle  edition", []string{"X"}},
			record{"A2", 860, "Audible Audiobook", nil},
		),
	}}

	result, err := newCollector(lister, 0).Collect(context.Background(), retry.Session{Token: "t"}, nil)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if got := keys(result); !reflect.DeepEqual(got, []string{"B0085HN8N6", "A2"}) {
		t.Fatalf("collected %v", got)
	}
	stats := result.Stats
	if stats.Fetched != 5 || stats.NonCatalog != 2 || stats.MissingAuthors != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !reflect.DeepEqual(stats.DuplicateKeys, []string{"B0085HN8N6"}) {
		t.Fatalf("unexpected duplicates %v", stats.DuplicateKeys)
	}
	if !stats.Consistent() || !stats.ReachedLastPage {
		t.Fatalf("expected consistent complete walk, got %+v", stats)
	}
	if stats.Calls["first_try"] != 2 {
		t.Fatalf("expected two first-try calls, got %v", stats.Calls)
	}
}

func TestCollectFilteredRecordDoesNotAffectOverlap(t *testing.T) {
	lister := &fakeLister{pages: map[string]upstream.LibraryPage{
		"": pageOf("", false,
			record{"A", 300, "Paperback", nil},
			record{"B", 250, "Kindle Edition", nil},
			record{"C", 100, "Paperback", nil},
			record{"D", 90, "Kindle Edition", nil},
		),
	}}
	checkpoint := int64(200)

	result, err := newCollector(lister, 0).Collect(context.Background(), retry.Session{Token: "t"}, &checkpoint)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if got := keys(result); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("collected %v", got)
	}
	if result.Stats.NonCatalog != 1 || result.Stats.Fetched != 2 || !result.Stats.ReachedOverlap {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}
}

func TestCollectReturnsPartialResultOnExhaustedPage(t *testing.T) {
	lister := &fakeLister{
		pages: map[string]upstream.LibraryPage{
			"": pageOf("c1", true, record{"A", 500, "Kindle Edition", nil}),
		},
		fail: map[string]bool{"c1": true},
	}

	result, err := newCollector(lister, 0).Collect(context.Background(), retry.Session{Token: "t"}, nil)
	if !errors.Is(err, services.ErrExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if got := keys(result); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("expected partial entries, got %v", got)
	}
	if result.Complete() {
		t.Fatal("failed walk must not be complete")
	}
	if result.Stats.Calls["failed"] != 1 || result.Stats.Pages != 1 {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}
}

func TestCollectKeepsRecordWithUnreadableTimestamp(t *testing.T) {
	var first upstream.LibraryPage
	payload := `{
		"pageInfo": {"hasNextPage": true, "endCursor": "c1"},
		"edges": [
			{"node": {"asin": "A", "acquiredAt": "2023-11-14T00:00:00Z", "product": {"title": "Alpha", "binding": "Kindle Edition"}}},
			{"node": {"asin": "B", "acquiredAt": "500", "product": {"title": "Beta", "binding": "Kindle Edition"}}}
		]
	}`
	if err := json.Unmarshal([]byte(payload), &first); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	lister := &fakeLister{pages: map[string]upstream.LibraryPage{
		"":   first,
		"c1": pageOf("c2", true, record{"C", 50, "Kindle Edition", nil}),
	}}
	checkpoint := int64(100)

	result, err := newCollector(lister, 0).Collect(context.Background(), retry.Session{Token: "t"}, &checkpoint)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if got := keys(result); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("expected A and B, got %v", got)
	}
	if result.Entries[0].AcquiredAt != 0 {
		t.Fatalf("expected zero acquisition time for A, got %d", result.Entries[0].AcquiredAt)
	}
	stats := result.Stats
	if stats.MissingTimestamps != 1 || !stats.ReachedOverlap || stats.Pages != 2 || !stats.Consistent() {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !reflect.DeepEqual(lister.cursors, []string{"", "c1"}) {
		t.Fatalf("expected walk to continue to the overlap page, got %v", lister.cursors)
	}
}

func TestCollectHonoursPageLimit(t *testing.T) {
	lister := &fakeLister{pages: map[string]upstream.LibraryPage{
		"":   pageOf("c1", true, record{"A", 500, "Kindle Edition", nil}),
		"c1": pageOf("c2", true, record{"B", 400, "Kindle Edition", nil}),
	}}

	result, err := newCollector(lister, 1).Collect(context.Background(), retry.Session{Token: "t"}, nil)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if !result.Stats.ReachedPageLimit || result.Complete() || len(lister.cursors) != 1 {
		t.Fatalf("expected to stop after one page, got %+v cursors=%v", result.Stats, lister.cursors)
	}
}

func TestCollectRejectsRepeatedCursor(t *testing.T) {
	lister := &fakeLister{pages: map[string]upstream.LibraryPage{
		"":   pageOf("c1", true, record{"A", 500, "Kindle Edition", nil}),
		"c1": pageOf("c1", true, record{"B", 400, "Kindle Edition", nil}),
	}}

	result, err := newCollector(lister, 0).Collect(context.Background(), retry.Session{Token: "t"}, nil)
	if !errors.Is(err, services.ErrProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected entries from both pages, got %v", keys(result))
	}
}

func TestEntryFromNode(t *testing.T) {
	var node upstream.LibraryNode
	payload := `{
		"asin": "B01",
		"acquiredAt": "1700000000000",
		"product": {
			"title": " Dune ",
			"authors": [{"name": "Frank Herbert"}, {"name": ""}],
			"images": [{"url": ""}, {"url": "https://img/1.jpg"}],
			"ratingSummary": {"rating": "4.5", "count": "1,204"},
			"series": [{"name": "Dune", "position": 1}],
			"binding": "Kindle Edition"
		}
	}`
	if err := json.Unmarshal([]byte(payload), &node); err != nil {
		t.Fatalf("decode node: %v", err)
	}

	entry := collector.EntryFromNode(node)
	if entry.ASIN != "B01" || entry.Title != "Dune" || entry.AcquiredAt != 1700000000000 {
		t.Fatalf("unexpected identity fields %+v", entry)
	}
	if !reflect.DeepEqual(entry.Authors, []string{"Frank Herbert"}) || entry.CoverURL != "https://img/1.jpg" {
		t.Fatalf("unexpected authors/cover %+v", entry)
	}
	if entry.Rating == nil || *entry.Rating != 4.5 || string(entry.ReviewCount) != `"1,204"` {
		t.Fatalf("unexpected rating %v count %s", entry.Rating, entry.ReviewCount)
	}
	if entry.Series == nil || *entry.Series != "Dune" || entry.SeriesPosition == nil || *entry.SeriesPosition != 1 {
		t.Fatalf("unexpected series %+v", entry)
	}
	if entry.Description != nil || entry.TopReviews == nil {
		t.Fatalf("expected null description and empty reviews, got %+v", entry)
	}
}
