package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"financialreader/pkg/core/analytics"
	"financialreader/pkg/core/pipeline"
	"financialreader/pkg/core/xbrl"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "finreader v"+version) {
		t.Errorf("output = %q", out)
	}
}

func TestExtractRequiresTicker(t *testing.T) {
	if _, err := run(t, "extract"); err == nil {
		t.Fatal("expected missing --ticker error")
	}
}

func TestExtractRejectsFormat(t *testing.T) {
	_, err := run(t, "extract", "--ticker", "AAPL", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("err = %v, want unknown format", err)
	}
}

func TestBatchRequiresTickers(t *testing.T) {
	_, err := run(t, "batch")
	if err == nil || !strings.Contains(err.Error(), "no tickers") {
		t.Fatalf("err = %v, want no tickers", err)
	}
}

func TestReadTickers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.txt")
	content := "# large caps\nAAPL\n\n  msft \n#skip\nGOOGL\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readTickers(path)
	if err != nil {
		t.Fatalf("readTickers: %v", err)
	}
	want := []string{"AAPL", "msft", "GOOGL"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWriteDatasetCSV(t *testing.T) {
	rev := 100.0
	ds := &pipeline.CompanyDataset{
		Table: &xbrl.Table{
			Columns: []string{"revenue"},
			Rows: []xbrl.Row{{
				CIK:              "0000320193",
				CompanyName:      "Apple Inc.",
				FiscalYear:       2024,
				PeriodEnd:        "2024-09-28",
				FormType:         "10-K",
				DataQualityScore: 1,
				Values:           map[string]*float64{"revenue": &rev},
			}},
		},
	}
	var buf bytes.Buffer
	if err := writeDataset(&buf, "csv", ds); err != nil {
		t.Fatalf("writeDataset: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], ",revenue") || !strings.HasSuffix(lines[1], ",100") {
		t.Errorf("unexpected csv:\n%s", buf.String())
	}
}

func TestPrintSummary(t *testing.T) {
	ds := &pipeline.CompanyDataset{
		Ticker:      "AAPL",
		CIK:         "0000320193",
		CompanyName: "Apple Inc.",
		Quality: &xbrl.QualityReport{
			StatementsExtracted: 2,
			YearsCovered:        []int{2024, 2023},
			AvgDataQualityScore: 0.9,
			DataIssues:          []string{"FY2023: missing revenue"},
		},
		Summary: &analytics.Summary{Insights: []string{"Negative free cash flow"}},
	}
	var buf bytes.Buffer
	printSummary(&buf, ds)
	out := buf.String()
	for _, want := range []string{"Apple Inc. (AAPL)", "2 fiscal years", "issue: FY2023", "insight: Negative"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
