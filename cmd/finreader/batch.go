package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		tickers []string
		file    string
		workers int
		ro      = runOptions{store: true, export: true}
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Extract statements for many companies in parallel",
		Example: `  finreader batch --tickers AAPL,MSFT,GOOGL
  finreader batch --file tickers.txt --workers 8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				fromFile, err := readTickers(file)
				if err != nil {
					return err
				}
				tickers = append(tickers, fromFile...)
			}
			if len(tickers) == 0 {
				return fmt.Errorf("no tickers given (use --tickers or --file)")
			}
			if workers <= 0 {
				workers = a.cfg.Pipeline.Workers
			}

			o, cleanup, err := a.orchestrator(cmd.Context(), ro)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := o.RunBatch(cmd.Context(), tickers, workers)
			if res != nil {
				stderr := cmd.ErrOrStderr()
				for _, ds := range res.Datasets {
					printSummary(stderr, ds)
				}
				failed := make([]string, 0, len(res.Failures))
				for t := range res.Failures {
					failed = append(failed, t)
				}
				sort.Strings(failed)
				for _, t := range failed {
					fmt.Fprintf(stderr, "%s failed: %v\n", t, res.Failures[t])
				}
				fmt.Fprintf(stderr, "%d succeeded, %d failed\n", len(res.Datasets), len(failed))
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&tickers, "tickers", nil, "comma-separated tickers or CIKs")
	cmd.Flags().StringVar(&file, "file", "", "file with one ticker per line")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent companies (default from config)")
	addRunFlags(cmd, &ro)
	return cmd
}

// readTickers reads one ticker per line, skipping blanks and # comments.
func readTickers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
