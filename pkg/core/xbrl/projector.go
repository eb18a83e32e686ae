package xbrl

import (
	"sort"
	"strings"
)

// =============================================================================
// TABULAR PROJECTOR - statements -> wide table (row per year)
// =============================================================================

// SortOrder controls row ordering by fiscal year.
type SortOrder string

const (
	Descending SortOrder = "desc"
	Ascending  SortOrder = "asc"
)

// ParseSortOrder maps "asc"/"ascending" to Ascending and anything else to Descending.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending
	}
	return Descending
}

// ProjectOptions configures Project.
type ProjectOptions struct {
	Order SortOrder
	// Taxonomy orders columns by declaration; when nil columns are sorted by name.
	Taxonomy *Taxonomy
}

// Row is one fiscal year. A nil Values entry means "not reported" and is
// never interchangeable with a reported 0.
type Row struct {
	CIK              string              `json:"company_cik"`
	CompanyName      string              `json:"company_name"`
	FiscalYear       int                 `json:"fiscal_year"`
	PeriodEnd        string              `json:"period_end"`
	FormType         string              `json:"form_type"`
	DataQualityScore float64             `json:"data_quality_score"`
	Values           map[string]*float64 `json:"values"`
}

// Get returns the value of concept and whether it was reported.
func (r Row) Get(concept string) (float64, bool) {
	v := r.Values[concept]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Table is the wide projection of a set of statements.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// MetaColumns precede the concept columns in flat exports.
var MetaColumns = []string{"company_cik", "company_name", "fiscal_year", "period_end", "form_type", "data_quality_score"}

// Column returns the values of one concept in row order.
func (t *Table) Column(concept string) []*float64 {
	out := make([]*float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[concept]
	}
	return out
}

// Years returns the fiscal years in row order.
func (t *Table) Years() []int {
	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.FiscalYear
	}
	return out
}

// Project flattens statements into a Table. Columns are the union of every
// concept in any statement; every row carries every column.
func Project(statements []*FinancialStatement, opts ProjectOptions) *Table {
	seen := make(map[string]bool)
	for _, s := range statements {
		if s == nil {
			continue
		}
		for _, c := range s.Concepts() {
			seen[c] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for c := range seen {
		columns = append(columns, c)
	}
	sort.Slice(columns, func(i, j int) bool {
		if opts.Taxonomy != nil {
			pi, pj := opts.Taxonomy.Position(columns[i]), opts.Taxonomy.Position(columns[j])
			if pi != pj {
				// Concepts outside the taxonomy (-1) go last.
				if pi < 0 {
					return false
				}
				if pj < 0 {
					return true
				}
				return pi < pj
			}
		}
		return columns[i] < columns[j]
	})

	rows := make([]Row, 0, len(statements))
	for _, s := range statements {
		if s == nil {
			continue
		}
		row := Row{
			CIK:              s.CIK,
			CompanyName:      s.CompanyName,
			FiscalYear:       s.FiscalYear,
			PeriodEnd:        s.PeriodEnd,
			FormType:         s.FormType,
			DataQualityScore: s.DataQualityScore,
			Values:           make(map[string]*float64, len(columns)),
		}
		for _, c := range columns {
			if v, ok := s.Value(c); ok {
				v := v
				row.Values[c] = &v
			} else {
				row.Values[c] = nil
			}
		}
		rows = append(rows, row)
	}

	asc := opts.Order == Ascending
	sort.SliceStable(rows, func(i, j int) bool {
		if asc {
			return rows[i].FiscalYear < rows[j].FiscalYear
		}
		return rows[i].FiscalYear > rows[j].FiscalYear
	})

	return &Table{Columns: columns, Rows: rows}
}
