package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"stacks/internal/catalog"
	"stacks/internal/snapshot"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var missing bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the latest manifest and snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := snapshot.NewFromConfig(cfg, nil)
			manifest, found, err := source.LoadManifest()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !found {
				fmt.Fprintf(out, "No manifest found in %s; run 'stacks sync' first\n", cfg.Paths.OutputDir)
				return nil
			}

			path, hasDataset, err := source.Locate()
			if err != nil {
				return err
			}
			var dataset *catalog.Dataset
			if hasDataset {
				dataset, err = readDataset(path)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				payload := map[string]any{"manifest": manifest, "snapshot": path}
				if missing && dataset != nil {
					payload["missingDescriptions"] = dataset.Metadata.BooksWithoutDescriptionsDetails
				}
				return writeJSON(cmd, payload)
			}

			rows := [][]string{
				{"Run", valueOrDash(manifest.RunID)},
				{"Last fetched", valueOrDash(manifest.LastFetched)},
				{"Fetcher", valueOrDash(manifest.FetcherVersion)},
				{"Total entries", strconv.Itoa(manifest.TotalBooks)},
				{"New entries", strconv.Itoa(manifest.NewBooksAdded)},
				{"Collection complete", yesNo(manifest.CollectionComplete)},
				{"Enrichment complete", yesNo(manifest.EnrichmentComplete)},
				{"Enrichment failed", strconv.Itoa(manifest.EnrichmentStats.Failed)},
				{"Snapshot", valueOrDash(path)},
			}
			if dataset != nil {
				rows = append(rows, []string{"Missing synopses", strconv.Itoa(dataset.Metadata.BooksWithoutDescriptions)})
				if dataset.Metadata.ResumeCheckpoint != nil {
					rows = append(rows, []string{"Resume checkpoint", strconv.FormatInt(*dataset.Metadata.ResumeCheckpoint, 10)})
				}
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))

			if missing && dataset != nil && len(dataset.Metadata.BooksWithoutDescriptionsDetails) > 0 {
				missingRows := make([][]string, 0, len(dataset.Metadata.BooksWithoutDescriptionsDetails))
				for _, item := range dataset.Metadata.BooksWithoutDescriptionsDetails {
					missingRows = append(missingRows, []string{item.ASIN, item.Title, joinAuthors(item.Authors)})
				}
				fmt.Fprintln(out, renderTable([]string{"ASIN", "Title", "Authors"}, missingRows, nil))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&missing, "missing", false, "List entries without a synopsis")
	return cmd
}

func readDataset(path string) (*catalog.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var dataset catalog.Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &dataset, nil
}

func joinAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return "-"
	case 1:
		return authors[0]
	default:
		return fmt.Sprintf("%s +%d", authors[0], len(authors)-1)
	}
}
