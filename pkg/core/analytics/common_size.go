package analytics

import (
	"financialreader/pkg/core/xbrl"
)

// CommonSize is a vertical analysis of one statement: income and cash flow
// items as percent of revenue, balance sheet items as percent of total assets.
type CommonSize struct {
	FiscalYear      int                `json:"fiscal_year"`
	IncomeStatement map[string]float64 `json:"income_statement"`
	BalanceSheet    map[string]float64 `json:"balance_sheet"`
	CashFlow        map[string]float64 `json:"cash_flow"`
}

// CommonSizeOf computes the vertical analysis of s. Per-share and share-count
// concepts are skipped. A section whose base (revenue or total assets) is
// missing or zero is left empty.
func CommonSizeOf(tax *xbrl.Taxonomy, s *xbrl.FinancialStatement) CommonSize {
	if tax == nil {
		tax = xbrl.DefaultTaxonomy()
	}
	cs := CommonSize{
		FiscalYear:      s.FiscalYear,
		IncomeStatement: map[string]float64{},
		BalanceSheet:    map[string]float64{},
		CashFlow:        map[string]float64{},
	}
	revenue, _ := s.Value("revenue")
	assets, _ := s.Value("total_assets")

	scale := func(src map[string]float64, base float64, dst map[string]float64) {
		if base == 0 {
			return
		}
		for concept, v := range src {
			if def, ok := tax.Lookup(concept); ok && def.Unit != xbrl.UnitUSD {
				continue
			}
			dst[concept] = v / base * 100
		}
	}
	scale(s.IncomeStatement, revenue, cs.IncomeStatement)
	scale(s.BalanceSheet, assets, cs.BalanceSheet)
	scale(s.CashFlow, revenue, cs.CashFlow)
	return cs
}
