package enrichment

import (
	"context"
	"log/slog"

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

const stageName = "enrichment"

// Fetcher retrieves the enrichment payload for one identity key.
type Fetcher interface {
	FetchProduct(ctx context.Context, token credential.Token, asin string) upstream.Outcome[upstream.Product]
}

// Class is the classification of one resolved enrichment call.
type Class int

const (
	// ClassSuccess is a payload without protocol errors.
	ClassSuccess Class = iota
	// ClassPartial is a payload accompanied by protocol errors.
	ClassPartial
	// ClassFailure is no usable payload after every attempt.
	ClassFailure
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassPartial:
		return "partial"
	default:
		return "failure"
	}
}

// Classify maps an upstream outcome onto a Class.
func Classify[T any](outcome upstream.Outcome[T]) Class {
	switch {
	case !outcome.Usable():
		return ClassFailure
	case outcome.Partial() || len(outcome.Errors) > 0:
		return ClassPartial
	default:
		return ClassSuccess
	}
}

// Stage enriches entries sequentially through the retrying client.
type Stage struct {
	fetcher Fetcher
	retrier *retry.Client
	pacer   *pacing.Pacer
	logger  *slog.Logger
}

// Option customizes the stage.
type Option func(*Stage)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = logging.NewComponentLogger(logger, "enrichment")
	}
}

// WithPacer overrides the courtesy delay between enrichment calls.
func WithPacer(pacer *pacing.Pacer) Option {
	return func(s *Stage) {
		if pacer != nil {
			s.pacer = pacer
		}
	}
}

// New constructs a Stage.
func New(fetcher Fetcher, retrier *retry.Client, opts ...Option) *Stage {
	s := &Stage{
		fetcher: fetcher,
		retrier: retrier,
		pacer:   pacing.New(0),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a stage paced by [pacing].enrichment_delay_seconds.
func NewFromConfig(cfg *config.Config, fetcher Fetcher, retrier *retry.Client, logger *slog.Logger) *Stage {
	return New(fetcher, retrier, WithLogger(logger), WithPacer(pacing.New(cfg.EnrichmentDelay())))
}

// Result is what one enrichment pass produced.
type Result struct {
	Stats   runstats.Enrichment
	Session retry.Session
}

// All returns pointers to every entry so a pass can update them in place.
func All(entries []catalog.Entry) []*catalog.Entry {
	targets := make([]*catalog.Entry, 0, len(entries))
	for i := range entries {
		targets = append(targets, &entries[i])
	}
	return targets
}

// MissingSynopsis returns pointers to entries without a description, skipping
// keys in exclude. limit bounds the selection; zero or less means no bound.
func MissingSynopsis(entries []catalog.Entry, exclude map[string]struct{}, limit int) []*catalog.Entry {
	targets := make([]*catalog.Entry, 0)
	for i := range entries {
		if limit > 0 && len(targets) >= limit {
			break
		}
		if entries[i].HasDescription() {
			continue
		}
		if _, skip := exclude[entries[i].ASIN]; skip {
			continue
		}
		targets = append(targets, &entries[i])
	}
	return targets
}

// Enrich fetches and applies metadata for each target in order. Per-entry
// failures are recorded and never stop the pass; only context cancellation
// does, in which case the partial stats are returned with the context error.
func (s *Stage) Enrich(ctx context.Context, session retry.Session, targets []*catalog.Entry) (Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, s.logger)
	stats := runstats.Enrichment{Calls: runstats.CallHistogram{}, FailedKeys: []string{}}

	logger.Info("enrichment started",
		logging.Int("entries", len(targets)),
		logging.Duration("delay", s.pacer.Interval()),
		logging.String(logging.FieldEventType, "enrichment_start"),
	)

	for index, entry := range targets {
		if err := s.pacer.Wait(ctx); err != nil {
			return Result{Stats: stats, Session: session}, err
		}
		itemCtx := services.WithItemKey(ctx, entry.ASIN)
		itemLogger := logger.With(logging.String(logging.FieldItemKey, entry.ASIN))

		asin := entry.ASIN
		res, next, err := retry.Call(itemCtx, s.retrier, session, func(ctx context.Context, token credential.Token) upstream.Outcome[upstream.Product] {
			return s.fetcher.FetchProduct(ctx, token, asin)
		})
		s.pacer.Done()
		session = next
		if res.Bucket != "" {
			stats.Calls.Add(res.Bucket)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Stats: stats, Session: session}, ctxErr
		}
		stats.Attempted++

		class := ClassFailure
		if err == nil {
			class = Classify(res.Outcome)
		}
		switch class {
		case ClassFailure:
			stats.FailedKeys = append(stats.FailedKeys, asin)
			logging.WarnWithContext(itemLogger, "enrichment failed; synopsis left empty", "enrichment_failed",
				logging.Int("attempts", res.Attempts),
				logging.Error(err),
				logging.String(logging.FieldImpact, "entry is kept without synopsis or reviews"),
				logging.String(logging.FieldErrorHint, "rerun with --retry-missing once upstream recovers"),
			)
			continue
		case ClassPartial:
			stats.Partial++
			for _, protocolErr := range res.Outcome.Errors {
				stats.PartialErrors = append(stats.PartialErrors, runstats.PartialError{
					ASIN:    asin,
					Message: protocolErr.Message,
					Path:    protocolErr.PathString(),
				})
			}
			itemLogger.Warn("enrichment returned errors alongside data",
				logging.String("errors", res.Outcome.ErrorSummary()),
				logging.String(logging.FieldEventType, "enrichment_partial"),
			)
		default:
			stats.Succeeded++
		}

		if Apply(entry, *res.Outcome.Payload) {
			stats.FallbackSynopsis++
			itemLogger.Debug("synopsis taken from alternate summary")
		}
		itemLogger.Debug("entry enriched",
			logging.Int("index", index+1),
			logging.String("class", class.String()),
			logging.String("bucket", res.Bucket),
			logging.Bool("has_synopsis", entry.HasDescription()),
			logging.Int("reviews", len(entry.TopReviews)),
		)
	}

	logger.Info("enrichment finished",
		logging.Int("attempted", stats.Attempted),
		logging.Int("succeeded", stats.Succeeded),
		logging.Int("partial", stats.Partial),
		logging.Int("failed", stats.Failed()),
		logging.Int("fallback_synopsis", stats.FallbackSynopsis),
		logging.String(logging.FieldEventType, "enrichment_complete"),
	)
	return Result{Stats: stats, Session: session}, nil
}
