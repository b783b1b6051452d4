package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"stacks/internal/assembler"
	"stacks/internal/catalog"
	"stacks/internal/collector"
	"stacks/internal/credential"
	"stacks/internal/enrichment"
	"stacks/internal/history"
	"stacks/internal/logging"
	"stacks/internal/retry"
	"stacks/internal/runstats"
	"stacks/internal/services"
	"stacks/internal/snapshot"
)

// Stage labels used in timings, history failures, and log context.
const (
	StageLoad         = "load"
	StageCollection   = "collection"
	StageEnrichment   = "enrichment"
	StageRetryMissing = "retry_missing"
	StageAssembly     = "assembly"
	StageSave         = "save"
)

// Options selects run behavior.
type Options struct {
	// FullRefresh ignores the checkpoint and walks the whole listing.
	FullRefresh bool
	// DryRun runs every stage but writes no snapshot and records no history.
	DryRun bool
	// RetryMissing re-enriches prior entries whose synopsis is still null.
	RetryMissing      bool
	RetryMissingLimit int
}

// Recorder persists run outcomes.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Report describes a finished run. It is returned whenever a run got far
// enough to assemble a dataset, even when Run also returns an error.
type Report struct {
	RunID               string
	StartedAt           time.Time
	FinishedAt          time.Time
	Status              history.Status
	Options             Options
	Checkpoint          *int64
	PriorBooks          int
	Added               int
	Summary             runstats.Summary
	Manifest            catalog.Manifest
	Paths               snapshot.Paths
	CredentialRefreshes int
	// Err is the collection failure that left the dataset incomplete, if any.
	Err error
}

// Runner executes one sync run at a time.
type Runner struct {
	provider  credential.Provider
	source    snapshot.Source
	collector *collector.Collector
	enricher  *enrichment.Stage
	recorder  Recorder
	lockPath  string
	logger    *slog.Logger
	now       func() time.Time
	closers   []func() error
}

// Dependencies are the collaborators a Runner drives.
type Dependencies struct {
	Provider  credential.Provider
	Source    snapshot.Source
	Collector *collector.Collector
	Enricher  *enrichment.Stage
	// Recorder may be nil to disable the run ledger.
	Recorder Recorder
	LockPath string
}

// Option customizes the runner.
type Option func(*Runner)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logging.NewComponentLogger(logger, "pipeline")
	}
}

// WithClock overrides the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Runner from explicit dependencies.
func New(deps Dependencies, opts ...Option) *Runner {
	r := &Runner{
		provider:  deps.Provider,
		source:    deps.Source,
		collector: deps.Collector,
		enricher:  deps.Enricher,
		recorder:  deps.Recorder,
		lockPath:  deps.LockPath,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases resources opened by NewFromConfig.
func (r *Runner) Close() error {
	var errs []error
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Run performs one sync: lock, credential, load, collect, enrich, assemble,
// save, record. Per-entry failures never abort the run. A failed page still
// produces a saved partial dataset, and the collection error is returned
// alongside the report. Fatal input errors and cancellation return before any
// output is written.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	startedAt := r.now()

	lock := flock.New(r.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrLocked, "pipeline", "lock", "acquire "+r.lockPath, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrLocked, "pipeline", "lock", "another sync holds "+r.lockPath, nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	logger.Info("sync started",
		logging.Bool("full_refresh", opts.FullRefresh),
		logging.Bool("dry_run", opts.DryRun),
		logging.Bool("retry_missing", opts.RetryMissing),
		logging.String("credential_source", credential.Describe(r.provider)),
		logging.String(logging.FieldEventType, "run_start"),
	)

	token, err := r.provider.Current(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		err = services.Wrap(services.ErrFatalInput, "credential", "current", "no credential available from "+credential.Describe(r.provider), err)
		r.recordFatal(ctx, logger, runID, startedAt, opts, err)
		return nil, err
	}
	session := retry.Session{Token: token}

	var timings []runstats.StageTiming
	track := func(stage string, began time.Time) {
		timings = append(timings, runstats.StageTiming{Stage: stage, Duration: r.now().Sub(began)})
	}

	began := r.now()
	prior, err := r.source.Load(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.recordFatal(ctx, logger, runID, startedAt, opts, err)
		return nil, err
	}
	track(StageLoad, began)

	var checkpoint *int64
	if !opts.FullRefresh {
		if value, ok := catalog.Checkpoint(prior); ok {
			checkpoint = &value
		}
	}

	began = r.now()
	collected, collectErr := r.collector.Collect(ctx, session, checkpoint)
	session = collected.Session
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	track(StageCollection, began)

	if prior != nil {
		if inherited := inheritPrior(collected.Entries, prior.Books); inherited > 0 {
			logger.Debug("re-collected entries seeded from prior dataset",
				logging.Int("entries", inherited),
			)
		}
	}

	passes := make([]runstats.Enrichment, 0, 2)
	began = r.now()
	enriched, err := r.enricher.Enrich(ctx, session, enrichment.All(collected.Entries))
	if err != nil {
		return nil, err
	}
	session = enriched.Session
	passes = append(passes, enriched.Stats)
	track(StageEnrichment, began)

	var priorBooks []catalog.Entry
	if prior != nil {
		priorBooks = make([]catalog.Entry, 0, len(prior.Books))
		for _, entry := range prior.Books {
			priorBooks = append(priorBooks, entry.Clone())
		}
	}
	if opts.RetryMissing && len(priorBooks) > 0 {
		exclude := make(map[string]struct{}, len(collected.Entries))
		for _, entry := range collected.Entries {
			exclude[entry.ASIN] = struct{}{}
		}
		targets := enrichment.MissingSynopsis(priorBooks, exclude, opts.RetryMissingLimit)
		began = r.now()
		retried, err := r.enricher.Enrich(ctx, session, targets)
		if err != nil {
			return nil, err
		}
		session = retried.Session
		passes = append(passes, retried.Stats)
		track(StageRetryMissing, began)
	}

	began = r.now()
	assembled := assembler.Assemble(assembler.Input{
		RunID:              runID,
		Now:                r.now(),
		New:                collected.Entries,
		Prior:              priorBooks,
		Collection:         collected.Stats,
		CollectionComplete: collectErr == nil && collected.Complete(),
		Checkpoint:         checkpoint,
		Passes:             passes,
		Timings:            timings,
	})
	track(StageAssembly, began)

	report := &Report{
		RunID:               runID,
		StartedAt:           startedAt,
		Status:              history.StatusCompleted,
		Options:             opts,
		Checkpoint:          checkpoint,
		Added:               assembled.Added,
		Summary:             assembled.Summary,
		Manifest:            assembled.Manifest,
		CredentialRefreshes: session.Refreshes,
		Err:                 collectErr,
	}
	if prior != nil {
		report.PriorBooks = len(prior.Books)
	}
	if !assembled.Manifest.EnrichmentComplete {
		report.Status = history.StatusPartial
	}

	if !opts.DryRun {
		began = r.now()
		paths, err := r.source.Save(ctx, assembled.Dataset, assembled.Manifest)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			report.Status = history.StatusFailed
			report.FinishedAt = r.now()
			r.record(ctx, logger, report, err)
			return report, err
		}
		report.Paths = paths
		track(StageSave, began)
	}
	report.Summary.Timings = append([]runstats.StageTiming(nil), timings...)
	report.FinishedAt = r.now()

	if !opts.DryRun {
		r.record(ctx, logger, report, collectErr)
	}

	logger.Info("sync finished",
		logging.String("status", string(report.Status)),
		logging.Int("new_books", report.Added),
		logging.Int("total_books", report.Manifest.TotalBooks),
		logging.Int("enrichment_failed", report.Manifest.EnrichmentStats.Failed),
		logging.Bool("collection_complete", report.Manifest.CollectionComplete),
		logging.String("snapshot", report.Paths.Dataset),
		logging.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	if collectErr != nil {
		return report, fmt.Errorf("collection incomplete: %w", collectErr)
	}
	return report, nil
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, report *Report, runErr error) {
	if r.recorder == nil {
		return
	}
	summary := report.Summary
	run := history.Run{
		ID:                  report.RunID,
		StartedAt:           report.StartedAt,
		FinishedAt:          report.FinishedAt,
		Status:              report.Status,
		FullRefresh:         report.Options.FullRefresh,
		Pages:               summary.Collection.Pages,
		Fetched:             summary.Collection.Fetched,
		Filtered:            summary.Collection.NonCatalog,
		Duplicates:          len(summary.Collection.DuplicateKeys),
		Collected:           summary.Collection.Collected,
		Added:               report.Added,
		TotalBooks:          report.Manifest.TotalBooks,
		EnrichAttempted:     summary.Enrichment.Attempted,
		EnrichSucceeded:     summary.Enrichment.Succeeded,
		EnrichPartial:       summary.Enrichment.Partial,
		EnrichFailed:        summary.Enrichment.Failed(),
		MissingDescriptions: summary.MissingDescriptions,
		CollectionComplete:  report.Manifest.CollectionComplete,
		EnrichmentComplete:  report.Manifest.EnrichmentComplete,
		SnapshotPath:        report.Paths.Dataset,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	for _, key := range summary.Enrichment.FailedKeys {
		run.Failures = append(run.Failures, history.Failure{ASIN: key, Stage: StageEnrichment, Message: "retries exhausted"})
	}
	for _, partial := range summary.Enrichment.PartialErrors {
		message := strings.TrimSpace(partial.Message)
		if partial.Path != "" {
			message += " (path " + partial.Path + ")"
		}
		run.Failures = append(run.Failures, history.Failure{ASIN: partial.ASIN, Stage: StageEnrichment + "_partial", Message: message})
	}
	if err := r.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run ledger is missing this run; the snapshot was still written"),
		)
	}
}

func (r *Runner) recordFatal(ctx context.Context, logger *slog.Logger, runID string, startedAt time.Time, opts Options, err error) {
	logging.ErrorWithContext(logger, "sync aborted before any output was written", "run_aborted",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the input or credential and rerun"),
	)
	if opts.DryRun {
		return
	}
	r.record(ctx, logger, &Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: r.now(),
		Status:     history.StatusFailed,
		Options:    opts,
		Summary:    runstats.Summary{Calls: runstats.CallHistogram{}},
	}, err)
}

// inheritPrior seeds re-collected entries with the enrichment they carried in
// the prior dataset, so a failed re-fetch leaves them no worse than before.
func inheritPrior(entries []catalog.Entry, prior []catalog.Entry) int {
	if len(entries) == 0 || len(prior) == 0 {
		return 0
	}
	byKey := make(map[string]int, len(prior))
	for i, entry := range prior {
		if _, seen := byKey[entry.ASIN]; !seen {
			byKey[entry.ASIN] = i
		}
	}
	inherited := 0
	for i := range entries {
		if j, ok := byKey[entries[i].ASIN]; ok {
			entries[i].InheritEnrichment(prior[j])
			inherited++
		}
	}
	return inherited
}
