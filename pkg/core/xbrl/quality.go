package xbrl

import (
	"fmt"
	"sort"

	"financialreader/pkg/core/validate"
)

// =============================================================================
// DATA QUALITY REPORT
// =============================================================================

// DefaultQualityThreshold flags statements scoring below it as low quality.
const DefaultQualityThreshold = 0.5

// BalanceSheetTolerance is the allowed relative gap in Assets = Liabilities + Equity.
const BalanceSheetTolerance = 0.01

// YearCoverage summarizes one statement's completeness.
type YearCoverage struct {
	FoundConcepts    int     `json:"found_concepts"`
	RequiredFound    int     `json:"required_found"`
	CoveragePct      float64 `json:"coverage_pct"`
	DataQualityScore float64 `json:"data_quality_score"`
}

// QualityReport describes how trustworthy a set of statements is.
type QualityReport struct {
	StatementsExtracted   int                  `json:"statements_extracted"`
	YearsCovered          []int                `json:"years_covered"`
	AvgDataQualityScore   float64              `json:"avg_data_quality_score"`
	OverallConceptCount   int                  `json:"overall_concept_coverage"`
	TotalRequiredConcepts int                  `json:"total_concepts_available"`
	CoverageByYear        map[int]YearCoverage `json:"coverage_by_year"`
	MissingConcepts       []string             `json:"missing_concepts"`
	DataIssues            []string             `json:"data_issues"`
}

// BuildQualityReport summarizes statements against tax. threshold <= 0 uses
// DefaultQualityThreshold. An empty statement list yields an empty report
// with a single data issue explaining why.
func BuildQualityReport(tax *Taxonomy, statements []*FinancialStatement, threshold float64) *QualityReport {
	if threshold <= 0 {
		threshold = DefaultQualityThreshold
	}
	required := tax.RequiredConcepts()
	report := &QualityReport{
		TotalRequiredConcepts: len(required),
		CoverageByYear:        make(map[int]YearCoverage),
	}
	if len(statements) == 0 {
		report.DataIssues = []string{"no financial statements provided"}
		return report
	}

	overall := make(map[string]bool)
	var scoreSum float64
	for _, s := range statements {
		found := make(map[string]bool)
		for _, c := range s.Concepts() {
			found[c] = true
			overall[c] = true
		}
		reqFound := 0
		for _, c := range required {
			if found[c] {
				reqFound++
			}
		}
		pct := 0.0
		if len(required) > 0 {
			pct = float64(reqFound) / float64(len(required)) * 100
		}
		report.CoverageByYear[s.FiscalYear] = YearCoverage{
			FoundConcepts:    len(found),
			RequiredFound:    reqFound,
			CoveragePct:      pct,
			DataQualityScore: s.DataQualityScore,
		}
		report.YearsCovered = append(report.YearsCovered, s.FiscalYear)
		scoreSum += s.DataQualityScore
	}

	sort.Sort(sort.Reverse(sort.IntSlice(report.YearsCovered)))
	report.StatementsExtracted = len(statements)
	report.AvgDataQualityScore = scoreSum / float64(len(statements))
	report.OverallConceptCount = len(overall)
	for _, c := range required {
		if !overall[c] {
			report.MissingConcepts = append(report.MissingConcepts, c)
		}
	}
	report.DataIssues = DataIssues(statements, threshold)

	return report
}

// DataIssues lists human-readable problems per statement, newest year first.
func DataIssues(statements []*FinancialStatement, threshold float64) []string {
	sorted := append([]*FinancialStatement(nil), statements...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FiscalYear > sorted[j].FiscalYear })

	var issues []string
	for _, s := range sorted {
		_, hasRev := s.IncomeStatement["revenue"]
		_, hasNI := s.IncomeStatement["net_income"]
		if !hasRev && !hasNI {
			issues = append(issues, fmt.Sprintf("FY%d: Missing basic income statement data", s.FiscalYear))
		}
		if _, ok := s.BalanceSheet["total_assets"]; !ok {
			issues = append(issues, fmt.Sprintf("FY%d: Missing total assets", s.FiscalYear))
		}
		if s.DataQualityScore < threshold {
			issues = append(issues, fmt.Sprintf("FY%d: Low data quality score (%.2f)", s.FiscalYear, s.DataQualityScore))
		}

		assets, okA := s.BalanceSheet["total_assets"]
		liabilities, okL := s.BalanceSheet["total_liabilities"]
		equity, okE := s.BalanceSheet["shareholders_equity"]
		if okA && okL && okE && assets > 0 && liabilities > 0 && equity > 0 {
			if check := validate.CheckBalanceSheet(assets, liabilities, equity, BalanceSheetTolerance); !check.Balanced {
				issues = append(issues, fmt.Sprintf("FY%d: Balance sheet equation imbalance (%.2f%%)", s.FiscalYear, check.GapPct))
			}
		}
	}
	return issues
}

// FilterByQuality returns statements scoring at least min, preserving order.
func FilterByQuality(statements []*FinancialStatement, min float64) []*FinancialStatement {
	var out []*FinancialStatement
	for _, s := range statements {
		if s.DataQualityScore >= min {
			out = append(out, s)
		}
	}
	return out
}
