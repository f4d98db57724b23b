package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"popgraph/internal/chart"
	"popgraph/internal/core"
	"popgraph/pkg/domain"
)

func newIngestCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Store spreadsheets as datasets keyed by content fingerprint.",
		Long: `Reads each .xlsx file, keeps the rows of the configured category and upserts
them by content fingerprint. Re-ingesting identical bytes replaces the rows of the
existing dataset. Use "-" to read a single workbook from stdin together with --name.`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.Flags().StringVar(&name, "name", "", "Dataset name when reading from stdin.")
	cmd.RunE = a.runE(func(ctx context.Context, args []string) error {
		results := make([]core.IngestResult, 0, len(args))
		for _, path := range args {
			filename, content, err := a.readUpload(path, name)
			if err != nil {
				return err
			}
			res, err := a.rt.Service.Ingest(ctx, filename, content)
			if err != nil {
				return fmt.Errorf("%s: %w", filename, err)
			}
			results = append(results, res)
			if !a.jsonOutput {
				verb := "updated"
				if res.Created {
					verb = "created"
				}
				fmt.Fprintf(a.stdout, "%s dataset %d from %s (%d rows, fingerprint %s)\n",
					verb, res.DatasetID, filename, res.RowCount, res.Fingerprint[:12])
			}
		}
		if a.jsonOutput {
			return a.printJSON(results)
		}
		return nil
	})
	return cmd
}

func (a *app) readUpload(path, name string) (string, []byte, error) {
	if path == "-" {
		if name == "" {
			return "", nil, fmt.Errorf("--name is required when reading from stdin")
		}
		content, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", nil, fmt.Errorf("read stdin: %w", err)
		}
		return name, content, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return filepath.Base(path), content, nil
}

func newDatasetsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasets",
		Aliases: []string{"ls", "list"},
		Short:   "List datasets newest first with their row counts.",
		Args:    cobra.NoArgs,
	}
	cmd.RunE = a.runE(func(ctx context.Context, _ []string) error {
		list, err := a.rt.Service.ListDatasets(ctx)
		if err != nil {
			return err
		}
		if a.jsonOutput {
			return a.printJSON(list)
		}
		if len(list) == 0 {
			fmt.Fprintln(a.stdout, "no datasets")
			return nil
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCREATED\tROWS")
		for _, d := range list {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", d.ID, d.Name, d.CreatedAt.Format(time.RFC3339), d.RowCount)
		}
		return tw.Flush()
	})
	return cmd
}

// datasetFlag registers --dataset and returns a resolver that yields nil
// (latest) when the flag was not set.
func datasetFlag(cmd *cobra.Command) func() *int64 {
	var id int64
	cmd.Flags().Int64VarP(&id, "dataset", "d", 0, "Dataset id (default: most recently created).")
	return func() *int64 {
		if !cmd.Flags().Changed("dataset") {
			return nil
		}
		return &id
	}
}

func newRenderCommand(a *app) *cobra.Command {
	var modeName string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a chart of a dataset into the artifact store.",
		Long: `Aggregates a dataset by age bracket and writes the chart for the mode to its
fixed artifact key, replacing the previous render. --mode all renders every mode.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&modeName, "mode", "m", string(chart.ModeCombined), "combined, total-only or all.")
	dataset := datasetFlag(cmd)
	cmd.RunE = a.runE(func(ctx context.Context, _ []string) error {
		modes := chart.Modes
		if modeName != "all" {
			mode, err := chart.ParseMode(modeName)
			if err != nil {
				return err
			}
			modes = []chart.Mode{mode}
		}
		results := make([]core.RenderResult, 0, len(modes))
		for _, mode := range modes {
			res, err := a.rt.Service.Render(ctx, mode, dataset())
			if err != nil {
				return err
			}
			results = append(results, res)
			if !a.jsonOutput {
				loc := res.URL
				if loc == "" {
					loc = res.Key
				}
				fmt.Fprintf(a.stdout, "%s: dataset %d, %d brackets -> %s\n", res.Mode, res.DatasetID, res.Categories, loc)
			}
		}
		if a.jsonOutput {
			return a.printJSON(results)
		}
		return nil
	})
	return cmd
}

func newSeriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Print the aggregated age bracket series of a dataset.",
		Args:  cobra.NoArgs,
	}
	dataset := datasetFlag(cmd)
	cmd.RunE = a.runE(func(ctx context.Context, _ []string) error {
		ds, series, err := a.rt.Service.Series(ctx, dataset())
		if err != nil {
			return err
		}
		if a.jsonOutput {
			return a.printJSON(struct {
				Dataset domain.Dataset         `json:"dataset"`
				Series  domain.CanonicalSeries `json:"series"`
			}{ds, series})
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "AGE\tTOTAL\tMALE\tFEMALE\t")
		for _, p := range series {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n", p.AgeBracket, p.Total, p.Male, p.Female)
		}
		return tw.Flush()
	})
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a dataset and its rows.",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.runE(func(ctx context.Context, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid dataset id %q", args[0])
		}
		if err := a.rt.Service.DeleteDataset(ctx, id); err != nil {
			return err
		}
		if !a.jsonOutput {
			fmt.Fprintf(a.stdout, "deleted dataset %d\n", id)
		}
		return nil
	})
	return cmd
}
