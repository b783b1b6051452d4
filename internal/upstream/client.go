package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stacks/internal/config"
	"stacks/internal/credential"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	snippetLimit       = 160
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Settings captures the request metadata sent with every call.
type Settings struct {
	BaseURL          string
	ClientID         string
	ClientIDHeader   string
	CredentialHeader string
	UserAgent        string
	Timeout          time.Duration
}

// Client issues single upstream calls and reports each as an Outcome. It never retries.
type Client struct {
	settings   Settings
	httpClient HTTPDoer
	queries    Queries
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithQueries overrides the embedded query documents.
func WithQueries(queries Queries) Option {
	return func(c *Client) {
		if strings.TrimSpace(queries.Listing) != "" {
			c.queries.Listing = queries.Listing
		}
		if strings.TrimSpace(queries.Enrichment) != "" {
			c.queries.Enrichment = queries.Enrichment
		}
	}
}

// NewClient constructs a client using the supplied settings.
func NewClient(settings Settings, opts ...Option) *Client {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &Client{
		settings: Settings{
			BaseURL:          strings.TrimSpace(settings.BaseURL),
			ClientID:         strings.TrimSpace(settings.ClientID),
			ClientIDHeader:   strings.TrimSpace(settings.ClientIDHeader),
			CredentialHeader: strings.TrimSpace(settings.CredentialHeader),
			UserAgent:        strings.TrimSpace(settings.UserAgent),
			Timeout:          timeout,
		},
		httpClient: &http.Client{Timeout: timeout},
		queries:    DefaultQueries(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.settings.CredentialHeader == "" {
		client.settings.CredentialHeader = "X-CSRF-Token"
	}
	if client.settings.ClientIDHeader == "" {
		client.settings.ClientIDHeader = "X-Client-Id"
	}
	return client
}

// NewFromConfig builds a client from configuration. clientID is the resolved
// identifier (configured or persisted).
func NewFromConfig(cfg *config.Config, clientID string, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("upstream client: config required")
	}
	queries, err := LoadQueries(cfg.Upstream.ListingQueryFile, cfg.Upstream.EnrichmentQueryFile)
	if err != nil {
		return nil, err
	}
	settings := Settings{
		BaseURL:          cfg.Upstream.BaseURL,
		ClientID:         clientID,
		ClientIDHeader:   cfg.Upstream.ClientIDHeader,
		CredentialHeader: cfg.Upstream.CredentialHeader,
		UserAgent:        cfg.Upstream.UserAgent,
		Timeout:          cfg.RequestTimeout(),
	}
	return NewClient(settings, append([]Option{WithQueries(queries)}, opts...)...), nil
}

// ListLibrary fetches one page of the catalog listing starting after cursor.
func (c *Client) ListLibrary(ctx context.Context, token credential.Token, cursor string, pageSize int) Outcome[LibraryPage] {
	variables := map[string]any{"first": pageSize, "after": nil}
	if cursor != "" {
		variables["after"] = cursor
	}
	raw := c.execute(ctx, token, OperationListing, c.queries.Listing, variables)
	return decodeOutcome[LibraryPage](raw, OperationListing, "library")
}

// FetchProduct fetches the enrichment payload for one identity key.
func (c *Client) FetchProduct(ctx context.Context, token credential.Token, asin string) Outcome[Product] {
	raw := c.execute(ctx, token, OperationEnrichment, c.queries.Enrichment, map[string]any{"asin": asin})
	return decodeOutcome[Product](raw, OperationEnrichment, "product")
}

type requestBody struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []ProtocolError `json:"errors"`
}

type rawResponse struct {
	status int
	body   []byte
	cause  error
}

func (c *Client) execute(ctx context.Context, token credential.Token, operation, query string, variables map[string]any) rawResponse {
	if c.settings.BaseURL == "" {
		return rawResponse{cause: errors.New("base url not configured")}
	}
	payload, err := json.Marshal(requestBody{OperationName: operation, Query: query, Variables: variables})
	if err != nil {
		return rawResponse{cause: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return rawResponse{cause: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.settings.UserAgent != "" {
		req.Header.Set("User-Agent", c.settings.UserAgent)
	}
	if !token.Empty() {
		req.Header.Set(c.settings.CredentialHeader, string(token))
	}
	if c.settings.ClientID != "" {
		req.Header.Set(c.settings.ClientIDHeader, c.settings.ClientID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rawResponse{cause: fmt.Errorf("http error (timeout=%s): %w", c.settings.Timeout, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rawResponse{status: resp.StatusCode, cause: fmt.Errorf("read body: %w", err)}
	}
	return rawResponse{status: resp.StatusCode, body: body}
}

func decodeOutcome[T any](raw rawResponse, operation, field string) Outcome[T] {
	outcome := Outcome[T]{Operation: operation, StatusCode: raw.status}
	if raw.cause != nil && raw.status == 0 {
		outcome.Kind = KindTransportError
		outcome.Cause = raw.cause
		return outcome
	}
	outcome.Snippet = summarizeSnippet(string(raw.body))
	if raw.status < 200 || raw.status >= 300 {
		outcome.Kind = KindHTTPError
		outcome.Cause = raw.cause
		return outcome
	}
	if raw.cause != nil {
		outcome.Kind = KindTransportError
		outcome.Cause = raw.cause
		return outcome
	}

	var env envelope
	if err := json.Unmarshal(raw.body, &env); err != nil {
		outcome.Kind = KindEmptyResult
		outcome.Cause = fmt.Errorf("decode response: %w", err)
		return outcome
	}
	outcome.Errors = env.Errors

	payload, err := extractField[T](env.Data, field)
	if err != nil {
		outcome.Cause = err
	}
	outcome.Payload = payload

	switch {
	case len(env.Errors) > 0 && payload != nil:
		outcome.Kind = KindProtocolErrorWithPayload
	case len(env.Errors) > 0:
		outcome.Kind = KindProtocolErrorWithoutPayload
	case payload != nil:
		outcome.Kind = KindSuccess
	default:
		outcome.Kind = KindEmptyResult
	}
	return outcome
}

func extractField[T any](data json.RawMessage, field string) (*T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	value := bytes.TrimSpace(fields[field])
	if len(value) == 0 || bytes.Equal(value, nullLiteral) {
		return nil, nil
	}
	var payload T
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	return &payload, nil
}

func summarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	runes := []rune(clean)
	if len(runes) > snippetLimit {
		clean = string(runes[:snippetLimit]) + "..."
	}
	return clean
}
