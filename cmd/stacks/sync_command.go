package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stacks/internal/pipeline"
	"stacks/internal/preflight"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var opts pipeline.Options
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Collect new library entries, enrich them, and write a snapshot",
		Long: `Walk the provider listing newest-first until it reaches entries already in the
prior snapshot, enrich every new entry, and write a new timestamped snapshot
plus the manifest. Interrupting the run writes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if !skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
					fmt.Fprintln(out, renderChecks(failed, colorize))
					return fmt.Errorf("preflight failed: %d check(s) did not pass", len(failed))
				}
			}

			logger, logPath, err := ctx.runLogger(time.Now())
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner, err := pipeline.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			report, runErr := runner.Run(runCtx, opts)
			if report != nil {
				printReport(out, report, colorize)
			}
			if logPath != "" {
				fmt.Fprintf(out, "Log: %s\n", logPath)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&opts.FullRefresh, "full-refresh", false, "Ignore the checkpoint and walk the entire listing")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Run every stage but write no snapshot and record no history")
	cmd.Flags().BoolVar(&opts.RetryMissing, "retry-missing", false, "Re-enrich prior entries that still have no synopsis")
	cmd.Flags().IntVar(&opts.RetryMissingLimit, "retry-missing-limit", 0, "Maximum entries to re-enrich with --retry-missing (0 = all)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not run readiness checks first")
	return cmd
}

func printReport(out io.Writer, report *pipeline.Report, colorize bool) {
	summary := report.Summary
	collection := summary.Collection
	stats := report.Manifest.EnrichmentStats

	checkpoint := "none"
	if report.Checkpoint != nil {
		checkpoint = strconv.FormatInt(*report.Checkpoint, 10)
	}
	snapshotPath := report.Paths.Dataset
	if report.Options.DryRun {
		snapshotPath = "(dry run, not written)"
	}

	rows := [][]string{
		{"Run", report.RunID},
		{"Status", statusLabel(report.Status, colorize)},
		{"Checkpoint", checkpoint},
		{"Pages", strconv.Itoa(collection.Pages)},
		{"Fetched", strconv.Itoa(collection.Fetched)},
		{"Filtered", strconv.Itoa(collection.NonCatalog)},
		{"Duplicates", strconv.Itoa(len(collection.DuplicateKeys))},
		{"Unreadable timestamps", strconv.Itoa(collection.MissingTimestamps)},
		{"Collection complete", yesNo(report.Manifest.CollectionComplete)},
		{"New entries", strconv.Itoa(report.Added)},
		{"Total entries", strconv.Itoa(report.Manifest.TotalBooks)},
		{"Enriched", fmt.Sprintf("%d/%d (%d partial, %d failed)", stats.Succeeded, stats.Attempted, stats.Partial, stats.Failed)},
		{"Fallback synopses", strconv.Itoa(stats.FallbackSynopsis)},
		{"Missing synopses", strconv.Itoa(summary.MissingDescriptions)},
		{"Credential refreshes", strconv.Itoa(report.CredentialRefreshes)},
		{"Duration", formatDuration(report.FinishedAt.Sub(report.StartedAt))},
		{"Snapshot", valueOrDash(snapshotPath)},
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))

	if len(summary.Calls) > 0 {
		callRows := make([][]string, 0, len(summary.Calls))
		for _, bucket := range summary.Calls.Buckets() {
			callRows = append(callRows, []string{bucket, strconv.Itoa(summary.Calls[bucket])})
		}
		fmt.Fprintln(out, renderTable([]string{"Calls", "Count"}, callRows, []columnAlignment{alignLeft, alignRight}))
	}

	if len(summary.Timings) > 0 {
		timingRows := make([][]string, 0, len(summary.Timings))
		for _, timing := range summary.Timings {
			timingRows = append(timingRows, []string{stageLabel(timing.Stage), formatDuration(timing.Duration)})
		}
		fmt.Fprintln(out, renderTable([]string{"Stage", "Duration"}, timingRows, []columnAlignment{alignLeft, alignRight}))
	}

	if len(stats.FailedASINs) > 0 {
		fmt.Fprintf(out, "Enrichment failed for: %s\n", strings.Join(stats.FailedASINs, ", "))
	}
	if report.Err != nil {
		fmt.Fprintf(out, "Collection stopped early; the next sync resumes from the saved checkpoint.\n")
	}
}
