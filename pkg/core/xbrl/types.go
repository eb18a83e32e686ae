// Package xbrl reconstructs per-fiscal-year financial statements from the SEC
// "company facts" XBRL payload.
//
// Data flows one way: Taxonomy -> Resolver -> Extractor -> Reconciler ->
// Assembler -> Projector. Every stage is a pure function of its inputs plus
// the (read-only) Taxonomy, so a single Taxonomy can be shared across
// goroutines processing different companies.
package xbrl

import "time"

// =============================================================================
// STATEMENT & UNIT ENUMS
// =============================================================================

// StatementType identifies which financial statement a concept belongs to.
type StatementType string

const (
	IncomeStatement StatementType = "income_statement"
	BalanceSheet    StatementType = "balance_sheet"
	CashFlow        StatementType = "cash_flow"
	Other           StatementType = "other"
)

// UnitType is the measurement unit a concept is reported in.
type UnitType string

const (
	UnitUSD      UnitType = "USD"
	UnitPerShare UnitType = "USD/shares"
	UnitShares   UnitType = "shares"
)

// Report forms accepted by the extractor.
const (
	FormAnnual    = "10-K"
	FormQuarterly = "10-Q"
)

// =============================================================================
// PIPELINE RECORDS
// =============================================================================

// RawFactRecord is one reported data point after extraction.
// Value is carried unconverted from the source (absolute units).
type RawFactRecord struct {
	Concept   string    `json:"concept"`
	Tag       string    `json:"tag"`
	Unit      string    `json:"unit"`
	Value     float64   `json:"value"`
	Start     string    `json:"start,omitempty"` // empty for instant (balance sheet) facts
	End       string    `json:"end"`
	EndDate   time.Time `json:"-"`
	Form      string    `json:"form"`
	FiledDate string    `json:"filed_date"`
	Frame     string    `json:"frame,omitempty"`
	Accession string    `json:"accession,omitempty"`
}

// ResolvedYearFacts is the authoritative record set for one fiscal year.
// All Records share FiledDate and Form.
type ResolvedYearFacts struct {
	FiscalYear int             `json:"fiscal_year"`
	FiledDate  string          `json:"filed_date"`
	Form       string          `json:"form"`
	Records    []RawFactRecord `json:"records"`
}

// FinancialStatement is the assembled output for one company and fiscal year.
// Absent concepts have no key in the maps; a present key with 0 means the
// company reported zero.
type FinancialStatement struct {
	CIK              string             `json:"company_cik"`
	CompanyName      string             `json:"company_name"`
	FiscalYear       int                `json:"fiscal_year"`
	PeriodEnd        string             `json:"period_end"`
	FormType         string             `json:"form_type"`
	FiledDate        string             `json:"filed_date"`
	IncomeStatement  map[string]float64 `json:"income_statement"`
	BalanceSheet     map[string]float64 `json:"balance_sheet"`
	CashFlow         map[string]float64 `json:"cash_flow"`
	DataQualityScore float64            `json:"data_quality_score"`
	MissingRequired  []string           `json:"missing_required,omitempty"`
	RawDataPoints    []RawFactRecord    `json:"raw_data_points,omitempty"`
}

// Value returns the value reported for concept in any of the three statements.
func (s *FinancialStatement) Value(concept string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	if v, ok := s.IncomeStatement[concept]; ok {
		return v, true
	}
	if v, ok := s.BalanceSheet[concept]; ok {
		return v, true
	}
	if v, ok := s.CashFlow[concept]; ok {
		return v, true
	}
	return 0, false
}

// Concepts returns every concept present across the three statements.
func (s *FinancialStatement) Concepts() []string {
	out := make([]string, 0, len(s.IncomeStatement)+len(s.BalanceSheet)+len(s.CashFlow))
	for _, m := range []map[string]float64{s.IncomeStatement, s.BalanceSheet, s.CashFlow} {
		for c := range m {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// Diagnostics accounts for everything the pipeline skipped. Nothing counted
// here is an error; it feeds the quality report and logs.
type Diagnostics struct {
	Reason             string   `json:"reason,omitempty"` // set only on structural failure
	ConceptsResolved   int      `json:"concepts_resolved"`
	UnresolvedConcepts []string `json:"unresolved_concepts,omitempty"`
	PointsSeen         int      `json:"points_seen"`
	PointsExtracted    int      `json:"points_extracted"`
	SkippedForm        int      `json:"skipped_form"`
	SkippedDate        int      `json:"skipped_date"`
	SkippedWindow      int      `json:"skipped_window"`
	SkippedValue       int      `json:"skipped_value"`
	Unclassified       int      `json:"unclassified"`        // no fiscal year could be assigned
	Superseded         int      `json:"superseded"`          // dropped in favor of a 10-K or later filing
	DuplicatesResolved int      `json:"duplicates_resolved"` // same concept reported twice in one filing
}

// Merge adds the counters of other into d. Reason is kept if already set.
func (d *Diagnostics) Merge(other Diagnostics) {
	if d.Reason == "" {
		d.Reason = other.Reason
	}
	d.ConceptsResolved += other.ConceptsResolved
	d.UnresolvedConcepts = append(d.UnresolvedConcepts, other.UnresolvedConcepts...)
	d.PointsSeen += other.PointsSeen
	d.PointsExtracted += other.PointsExtracted
	d.SkippedForm += other.SkippedForm
	d.SkippedDate += other.SkippedDate
	d.SkippedWindow += other.SkippedWindow
	d.SkippedValue += other.SkippedValue
	d.Unclassified += other.Unclassified
	d.Superseded += other.Superseded
	d.DuplicatesResolved += other.DuplicatesResolved
}
