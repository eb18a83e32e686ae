package xbrl

import (
	"strings"
	"testing"
)

func TestBuildQualityReport(t *testing.T) {
	tax := DefaultTaxonomy()
	good := statementFor(2024, map[string]float64{"revenue": 1, "net_income": 1}, map[string]float64{
		"total_assets": 100, "total_liabilities": 60, "shareholders_equity": 40,
	})
	good.DataQualityScore = 0.8
	bad := statementFor(2023, map[string]float64{}, map[string]float64{
		"total_liabilities": 60,
	})
	bad.DataQualityScore = 0.05

	report := BuildQualityReport(tax, []*FinancialStatement{bad, good}, 0)

	if report.StatementsExtracted != 2 {
		t.Errorf("StatementsExtracted = %d", report.StatementsExtracted)
	}
	if len(report.YearsCovered) != 2 || report.YearsCovered[0] != 2024 {
		t.Errorf("YearsCovered = %v", report.YearsCovered)
	}
	if report.TotalRequiredConcepts != 20 {
		t.Errorf("TotalRequiredConcepts = %d", report.TotalRequiredConcepts)
	}
	if got := report.CoverageByYear[2024].RequiredFound; got != 5 {
		t.Errorf("FY2024 RequiredFound = %d, want 5", got)
	}
	if report.OverallConceptCount != 5 {
		t.Errorf("OverallConceptCount = %d", report.OverallConceptCount)
	}
	if len(report.MissingConcepts) != 15 {
		t.Errorf("MissingConcepts = %d, want 15", len(report.MissingConcepts))
	}

	issues := strings.Join(report.DataIssues, "\n")
	for _, want := range []string{
		"FY2023: Missing basic income statement data",
		"FY2023: Missing total assets",
		"FY2023: Low data quality score (0.05)",
	} {
		if !strings.Contains(issues, want) {
			t.Errorf("missing issue %q in:\n%s", want, issues)
		}
	}
	if strings.Contains(issues, "FY2024") {
		t.Errorf("FY2024 should have no issues:\n%s", issues)
	}
}

func TestBuildQualityReport_Empty(t *testing.T) {
	report := BuildQualityReport(DefaultTaxonomy(), nil, 0.5)
	if report.StatementsExtracted != 0 || len(report.DataIssues) != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestDataIssues_BalanceSheetImbalance(t *testing.T) {
	s := statementFor(2024, map[string]float64{"revenue": 1}, map[string]float64{
		"total_assets": 100, "total_liabilities": 60, "shareholders_equity": 30,
	})
	s.DataQualityScore = 1
	issues := DataIssues([]*FinancialStatement{s}, 0.5)
	if len(issues) != 1 || !strings.Contains(issues[0], "Balance sheet equation imbalance (10.00%)") {
		t.Errorf("issues = %v", issues)
	}
}

func TestFilterByQuality(t *testing.T) {
	a, b := statementFor(2024, nil, nil), statementFor(2023, nil, nil)
	a.DataQualityScore, b.DataQualityScore = 0.9, 0.4
	out := FilterByQuality([]*FinancialStatement{a, b}, 0.5)
	if len(out) != 1 || out[0] != a {
		t.Errorf("filtered = %v", out)
	}
	if got := FilterByQuality([]*FinancialStatement{a, b}, 0); len(got) != 2 {
		t.Errorf("zero threshold kept %d", len(got))
	}
}
