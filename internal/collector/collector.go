package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stacks/internal/catalog"
	"stacks/internal/config"
	"stacks/internal/credential"
	"stacks/internal/logging"
	"stacks/internal/pacing"
	"stacks/internal/retry"
	"stacks/internal/runstats"
	"stacks/internal/services"
	"stacks/internal/upstream"
)

const (
	defaultPageSize = 50
	stageName       = "collection"
)

// Lister fetches one page of the catalog listing.
type Lister interface {
	ListLibrary(ctx context.Context, token credential.Token, cursor string, pageSize int) upstream.Outcome[upstream.LibraryPage]
}

// Settings bounds a walk.
type Settings struct {
	PageSize int
	// MaxPages stops the walk after that many pages; zero means unlimited.
	MaxPages       int
	AllowedFormats []string
}

// Collector walks listing pages through the retrying client.
type Collector struct {
	lister   Lister
	retrier  *retry.Client
	pacer    *pacing.Pacer
	filter   catalog.FormatFilter
	pageSize int
	maxPages int
	logger   *slog.Logger
}

// Option customizes the collector.
type Option func(*Collector)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logging.NewComponentLogger(logger, "collector")
	}
}

// WithPacer overrides the courtesy delay between page calls.
func WithPacer(pacer *pacing.Pacer) Option {
	return func(c *Collector) {
		if pacer != nil {
			c.pacer = pacer
		}
	}
}

// New constructs a Collector.
func New(lister Lister, retrier *retry.Client, settings Settings, opts ...Option) *Collector {
	pageSize := settings.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := settings.MaxPages
	if maxPages < 0 {
		maxPages = 0
	}
	c := &Collector{
		lister:   lister,
		retrier:  retrier,
		pacer:    pacing.New(0),
		filter:   catalog.NewFormatFilter(settings.AllowedFormats),
		pageSize: pageSize,
		maxPages: maxPages,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a collector using the [upstream], [catalog] and [pacing] sections.
func NewFromConfig(cfg *config.Config, lister Lister, retrier *retry.Client, logger *slog.Logger) *Collector {
	settings := Settings{
		PageSize:       cfg.Upstream.PageSize,
		MaxPages:       cfg.Upstream.MaxPages,
		AllowedFormats: cfg.Catalog.AllowedFormats,
	}
	return New(lister, retrier, settings, WithLogger(logger), WithPacer(pacing.New(cfg.PageDelay())))
}

// Result is what a walk produced. Entries are in listing order.
type Result struct {
	Entries []catalog.Entry
	Stats   runstats.Collection
	Session retry.Session
}

// Complete reports whether the walk reached the overlap boundary or the last page.
func (r Result) Complete() bool {
	return r.Stats.ReachedOverlap || r.Stats.ReachedLastPage
}

// Collect walks pages until the overlap boundary, the last page, the page
// limit, or a failed page. A nil checkpoint walks the whole listing. On a
// failed page the partial result is returned together with the error.
func (c *Collector) Collect(ctx context.Context, session retry.Session, checkpoint *int64) (Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, c.logger)

	stats := runstats.Collection{Calls: runstats.CallHistogram{}}
	dedup := catalog.NewDeduplicator()
	entries := make([]catalog.Entry, 0)
	finish := func() Result {
		stats.DuplicateKeys = dedup.Duplicates()
		stats.Collected = len(entries)
		return Result{Entries: entries, Stats: stats, Session: session}
	}

	if checkpoint != nil {
		logger.Info("collection started",
			logging.Int64("checkpoint", *checkpoint),
			logging.Int("page_size", c.pageSize),
			logging.String(logging.FieldEventType, "collection_start"),
		)
	} else {
		logger.Info("collection started without checkpoint; walking full listing",
			logging.Int("page_size", c.pageSize),
			logging.String(logging.FieldEventType, "collection_start"),
		)
	}

	cursor := ""
	for {
		if c.maxPages > 0 && stats.Pages >= c.maxPages {
			stats.ReachedPageLimit = true
			logger.Warn("page limit reached before overlap; collection incomplete",
				logging.Int("max_pages", c.maxPages),
				logging.String(logging.FieldEventType, "collection_page_limit"),
			)
			break
		}
		if err := c.pacer.Wait(ctx); err != nil {
			return finish(), err
		}

		pageCursor := cursor
		res, next, err := retry.Call(ctx, c.retrier, session, func(ctx context.Context, token credential.Token) upstream.Outcome[upstream.LibraryPage] {
			return c.lister.ListLibrary(ctx, token, pageCursor, c.pageSize)
		})
		c.pacer.Done()
		session = next
		if res.Bucket != "" {
			stats.Calls.Add(res.Bucket)
		}
		if err != nil {
			if ctx.Err() == nil {
				logging.ErrorWithContext(logger, "page fetch failed; keeping partial collection", "collection_page_failed",
					logging.Int("page", stats.Pages+1),
					logging.Int("collected", len(entries)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "entries beyond this page are collected on the next run"),
				)
			}
			return finish(), err
		}
		stats.Pages++

		page := res.Outcome.Payload
		if res.Outcome.Partial() {
			logger.Warn("listing page returned errors alongside data",
				logging.Int("page", stats.Pages),
				logging.String("errors", res.Outcome.ErrorSummary()),
				logging.String(logging.FieldEventType, "collection_page_partial"),
			)
		}
		if page.TotalCount.Valid {
			stats.TotalReported = page.TotalCount.Value
		}

		pageKept := 0
		for _, edge := range page.Edges {
			node := edge.Node
			if checkpoint != nil && node.AcquiredAt.Valid && node.AcquiredAt.Value <= *checkpoint {
				stats.ReachedOverlap = true
				logger.Info("overlap with previous dataset reached",
					logging.String(logging.FieldItemKey, node.ASIN),
					logging.Int64("acquired_at", node.AcquiredAt.Value),
					logging.String(logging.FieldEventType, "collection_overlap"),
				)
				break
			}
			stats.Fetched++

			asin := strings.TrimSpace(node.ASIN)
			if asin == "" {
				stats.NonCatalog++
				logger.Warn("record without identity key skipped",
					logging.String("title", node.Product.Title),
					logging.String(logging.FieldEventType, "collection_missing_key"),
				)
				continue
			}
			if !c.filter.Allows(node.Product.Binding) {
				stats.NonCatalog++
				logger.Debug("non-catalog format filtered",
					logging.String(logging.FieldItemKey, asin),
					logging.String("binding", node.Product.Binding),
				)
				continue
			}
			if !dedup.Add(asin) {
				logger.Warn("duplicate identity key dropped",
					logging.String(logging.FieldItemKey, asin),
					logging.String(logging.FieldEventType, "collection_duplicate"),
				)
				continue
			}

			entry := EntryFromNode(node)
			if len(entry.Authors) == 0 {
				stats.MissingAuthors++
			}
			if !node.AcquiredAt.Valid {
				stats.MissingTimestamps++
				logger.Warn("record without readable acquisition time kept",
					logging.String(logging.FieldItemKey, asin),
					logging.String(logging.FieldEventType, "collection_invalid_timestamp"),
					logging.String(logging.FieldImpact, "record sorts last and cannot mark the overlap point"),
				)
			}
			entries = append(entries, entry)
			pageKept++
		}

		logger.Info("page collected",
			logging.Int("page", stats.Pages),
			logging.Int("records", len(page.Edges)),
			logging.Int("kept", pageKept),
			logging.String("bucket", res.Bucket),
		)
		if stats.ReachedOverlap {
			break
		}

		nextCursor := strings.TrimSpace(page.PageInfo.EndCursor)
		if !page.PageInfo.HasNextPage || nextCursor == "" {
			stats.ReachedLastPage = true
			break
		}
		if nextCursor == cursor {
			// A repeated cursor would loop forever; treat it as a protocol failure.
			err := services.Wrap(services.ErrProtocol, stageName, upstream.OperationListing, fmt.Sprintf("cursor did not advance after page %d", stats.Pages), nil)
			return finish(), err
		}
		cursor = nextCursor
	}

	result := finish()
	logger.Info("collection finished",
		logging.Int("pages", stats.Pages),
		logging.Int("fetched", stats.Fetched),
		logging.Int("filtered", stats.NonCatalog),
		logging.Int("duplicates", len(result.Stats.DuplicateKeys)),
		logging.Int("collected", result.Stats.Collected),
		logging.Bool("complete", result.Complete()),
		logging.String(logging.FieldEventType, "collection_complete"),
	)
	return result, nil
}
