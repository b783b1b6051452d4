package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Book is one item served by FakeUpstream.
type Book struct {
	ASIN        string
	AcquiredAt  int64
	Title       string
	Authors     []string
	Binding     string
	Description string
}

// FakeUpstream is an httptest server speaking the listing and enrichment
// operations. Books are served newest first in the order given.
type FakeUpstream struct {
	server *httptest.Server

	mu            sync.Mutex
	books         []Book
	products      map[string]string
	listingFails  map[int]int
	productFails  map[string]int
	calls         map[string]int
	productCalls  map[string]int
	credentials   []string
	credentialKey string
}

// NewFakeUpstream starts a server that is closed when the test ends.
func NewFakeUpstream(t testing.TB, books ...Book) *FakeUpstream {
	t.Helper()
	f := &FakeUpstream{
		books:         append([]Book(nil), books...),
		products:      map[string]string{},
		listingFails:  map[int]int{},
		productFails:  map[string]int{},
		calls:         map[string]int{},
		productCalls:  map[string]int{},
		credentialKey: "X-CSRF-Token",
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the endpoint to configure as upstream.base_url.
func (f *FakeUpstream) URL() string {
	return f.server.URL + "/graphql"
}

// SetBooks replaces the served listing.
func (f *FakeUpstream) SetBooks(books ...Book) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books = append([]Book(nil), books...)
}

// SetProduct overrides the raw response body for asin's enrichment call.
func (f *FakeUpstream) SetProduct(asin, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[asin] = body
}

// FailListingAt answers every listing request starting at offset with status.
func (f *FakeUpstream) FailListingAt(offset, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingFails[offset] = status
}

// FailProduct answers every enrichment request for asin with status.
func (f *FakeUpstream) FailProduct(asin string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productFails[asin] = status
}

// ClearFailures removes every configured failure.
func (f *FakeUpstream) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingFails = map[int]int{}
	f.productFails = map[string]int{}
}

// Calls returns how many requests named operation were received.
func (f *FakeUpstream) Calls(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

// ProductCalls returns how many enrichment requests asked for asin.
func (f *FakeUpstream) ProductCalls(asin string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.productCalls[asin]
}

// Credentials returns the credential header of every request in order.
func (f *FakeUpstream) Credentials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.credentials...)
}

type fakeRequest struct {
	OperationName string `json:"operationName"`
	Variables     struct {
		First int     `json:"first"`
		After *string `json:"after"`
		ASIN  string  `json:"asin"`
	} `json:"variables"`
}

func (f *FakeUpstream) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req fakeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.OperationName]++
	f.credentials = append(f.credentials, r.Header.Get(f.credentialKey))
	f.mu.Unlock()

	switch req.OperationName {
	case "LibraryPage":
		f.serveListing(w, req)
	case "ProductDetail":
		f.serveProduct(w, req.Variables.ASIN)
	default:
		http.Error(w, "unknown operation", http.StatusBadRequest)
	}
}

func (f *FakeUpstream) serveListing(w http.ResponseWriter, req fakeRequest) {
	offset := 0
	if req.Variables.After != nil {
		parsed, err := strconv.Atoi(strings.TrimPrefix(*req.Variables.After, "offset-"))
		if err != nil {
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		offset = parsed
	}
	first := req.Variables.First
	if first <= 0 {
		first = 50
	}

	f.mu.Lock()
	status, failing := f.listingFails[offset]
	books := append([]Book(nil), f.books...)
	f.mu.Unlock()
	if failing {
		w.WriteHeader(status)
		return
	}

	end := offset + first
	if end > len(books) {
		end = len(books)
	}
	edges := make([]map[string]any, 0, first)
	if offset < len(books) {
		for _, book := range books[offset:end] {
			authors := make([]map[string]string, 0, len(book.Authors))
			for _, name := range book.Authors {
				authors = append(authors, map[string]string{"name": name})
			}
			binding := book.Binding
			if binding == "" {
				binding = "Kindle Edition"
			}
			edges = append(edges, map[string]any{"node": map[string]any{
				"asin":       book.ASIN,
				"acquiredAt": strconv.FormatInt(book.AcquiredAt, 10),
				"product": map[string]any{
					"title":         book.Title,
					"authors":       authors,
					"images":        []map[string]string{{"url": "https://images.test/" + book.ASIN + ".jpg"}},
					"ratingSummary": map[string]any{"rating": 4.5, "count": 10},
					"series":        nil,
					"binding":       binding,
				},
			}})
		}
	}
	hasNext := end < len(books)
	cursor := ""
	if hasNext {
		cursor = fmt.Sprintf("offset-%d", end)
	}
	writeJSON(w, map[string]any{"data": map[string]any{"library": map[string]any{
		"pageInfo":   map[string]any{"hasNextPage": hasNext, "endCursor": cursor},
		"totalCount": len(books),
		"edges":      edges,
	}}})
}

func (f *FakeUpstream) serveProduct(w http.ResponseWriter, asin string) {
	f.mu.Lock()
	f.productCalls[asin]++
	status, failing := f.productFails[asin]
	raw, overridden := f.products[asin]
	var book *Book
	for i := range f.books {
		if f.books[i].ASIN == asin {
			found := f.books[i]
			book = &found
			break
		}
	}
	f.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		return
	}
	if overridden {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, raw)
		return
	}

	var description any
	if book != nil && book.Description != "" {
		description = map[string]any{"fragments": []map[string]string{{"text": book.Description}}}
	}
	writeJSON(w, map[string]any{"data": map[string]any{"product": map[string]any{
		"description":            description,
		"alternateSummary":       nil,
		"customerReviewsSummary": map[string]any{"rating": 4.6, "count": "12"},
		"customerReviewsTop": map[string]any{"reviews": []map[string]any{
			{"stars": 5, "title": "Worth it", "abstract": map[string]string{"text": "Enjoyed " + asin}, "reviewer": map[string]string{"name": "Reader"}},
		}},
	}}})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
