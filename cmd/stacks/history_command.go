package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stacks/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						formatTime(run.StartedAt),
						statusLabel(run.Status, colorize),
						strconv.Itoa(run.Added),
						strconv.Itoa(run.TotalBooks),
						strconv.Itoa(run.EnrichFailed),
						formatDuration(run.Duration()),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Status", "New", "Total", "Failed", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and the entries it could not process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				run, err := findRun(cmd, store, strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := [][]string{
					{"Run", run.ID},
					{"Status", statusLabel(run.Status, shouldColorize(out))},
					{"Started", formatTime(run.StartedAt)},
					{"Duration", formatDuration(run.Duration())},
					{"Full refresh", yesNo(run.FullRefresh)},
					{"Pages", strconv.Itoa(run.Pages)},
					{"Fetched", strconv.Itoa(run.Fetched)},
					{"Filtered", strconv.Itoa(run.Filtered)},
					{"Duplicates", strconv.Itoa(run.Duplicates)},
					{"New entries", strconv.Itoa(run.Added)},
					{"Total entries", strconv.Itoa(run.TotalBooks)},
					{"Enriched", fmt.Sprintf("%d/%d (%d partial, %d failed)", run.EnrichSucceeded, run.EnrichAttempted, run.EnrichPartial, run.EnrichFailed)},
					{"Missing synopses", strconv.Itoa(run.MissingDescriptions)},
					{"Collection complete", yesNo(run.CollectionComplete)},
					{"Enrichment complete", yesNo(run.EnrichmentComplete)},
					{"Snapshot", valueOrDash(run.SnapshotPath)},
					{"Error", valueOrDash(run.Error)},
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))

				if len(run.Failures) > 0 {
					failureRows := make([][]string, 0, len(run.Failures))
					for _, failure := range run.Failures {
						failureRows = append(failureRows, []string{failure.ASIN, stageLabel(failure.Stage), failure.Message})
					}
					fmt.Fprintln(out, renderTable([]string{"ASIN", "Stage", "Message"}, failureRows, nil))
				}
				return nil
			})
		},
	}
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("run history is disabled (history.enabled = false)")
	}
	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// findRun resolves an exact run id or a unique prefix of one.
func findRun(cmd *cobra.Command, store *history.Store, id string) (*history.Run, error) {
	if id == "" {
		return nil, errors.New("run id is required")
	}
	run, err := store.Get(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}
	runs, err := store.List(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match string
	for _, candidate := range runs {
		if strings.HasPrefix(candidate.ID, id) {
			if match != "" {
				return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
			}
			match = candidate.ID
		}
	}
	if match == "" {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return store.Get(cmd.Context(), match)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
