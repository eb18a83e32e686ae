package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFilingsCmd(a *app) *cobra.Command {
	var (
		ticker string
		forms  []string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "filings",
		Short: "List a company's recent filings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.edgarClient()
			if err != nil {
				return err
			}
			cik, err := client.LookupCIK(cmd.Context(), ticker)
			if err != nil {
				return err
			}
			info, err := client.FetchCompanyInfo(cmd.Context(), cik)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "%s\tCIK %s\tfiscal year end %s\n\n", info.Name, cik, info.FiscalYearEnd)
			fmt.Fprintln(w, "FORM\tFILED\tREPORT DATE\tACCESSION\tURL")
			for _, f := range info.Filings(forms, limit) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Form, f.FilingDate, f.ReportDate, f.AccessionNumber, f.URL)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol or CIK")
	cmd.Flags().StringSliceVar(&forms, "forms", []string{"10-K"}, "form types to list")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum filings to list (0 for all)")
	_ = cmd.MarkFlagRequired("ticker")
	return cmd
}
