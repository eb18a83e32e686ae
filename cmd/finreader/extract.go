package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"financialreader/pkg/core/export"
	"financialreader/pkg/core/pipeline"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		ticker string
		format string
		out    string
		ro     = runOptions{store: true}
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract statements for one company",
		Example: `  finreader extract --ticker AAPL
  finreader extract --ticker 320193 --years 5 --format json --out apple.json
  finreader extract --ticker MSFT --export`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "csv" && format != "json" {
				return fmt.Errorf("unknown format %q (want csv or json)", format)
			}
			o, cleanup, err := a.orchestrator(cmd.Context(), ro)
			if err != nil {
				return err
			}
			defer cleanup()

			ds, err := o.RunForCompany(cmd.Context(), ticker)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := writeDataset(w, format, ds); err != nil {
				return err
			}
			printSummary(cmd.ErrOrStderr(), ds)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol or CIK")
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or json")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	addRunFlags(cmd, &ro)
	_ = cmd.MarkFlagRequired("ticker")
	return cmd
}

func addRunFlags(cmd *cobra.Command, ro *runOptions) {
	cmd.Flags().IntVar(&ro.years, "years", 0, "years of history (default from config)")
	cmd.Flags().StringVar(&ro.order, "order", "", "row order: asc or desc (default from config)")
	cmd.Flags().BoolVar(&ro.store, "store", ro.store, "persist statements to the configured store")
	cmd.Flags().BoolVar(&ro.export, "export", ro.export, "write a versioned dataset to the export dir")
	cmd.Flags().BoolVar(&ro.strict, "strict", false, "fail when an accounting identity check fails")
}

func writeDataset(w io.Writer, format string, ds *pipeline.CompanyDataset) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ds)
	}
	return export.EncodeCSV(w, ds.Table)
}

func printSummary(w io.Writer, ds *pipeline.CompanyDataset) {
	q := ds.Quality
	fmt.Fprintf(w, "%s (%s) CIK %s: %d fiscal years %v, avg quality %.2f\n",
		ds.CompanyName, ds.Ticker, ds.CIK, q.StatementsExtracted, q.YearsCovered, q.AvgDataQualityScore)
	for _, issue := range q.DataIssues {
		fmt.Fprintf(w, "  issue: %s\n", issue)
	}
	if ds.Summary != nil {
		for _, insight := range ds.Summary.Insights {
			fmt.Fprintf(w, "  insight: %s\n", insight)
		}
	}
	if ds.Export != nil {
		fmt.Fprintf(w, "  dataset %s written to %s\n", ds.Export.ID, ds.Export.Dir)
	}
}
