// Package analytics derives performance ratios from reconstructed statements.
//
// Every metric is optional. A metric whose inputs were not reported, or whose
// denominator is zero, is nil; it is never reported as 0.
package analytics

import (
	"math"
	"sort"

	"financialreader/pkg/core/validate"
	"financialreader/pkg/core/xbrl"
)

// ROICTaxRate approximates the corporate tax rate applied to operating income.
const ROICTaxRate = 0.25

// PerformanceMetrics holds one fiscal year's ratios. Percentages are in
// percent (12.5 means 12.5%); ratios and turnovers are plain multiples.
type PerformanceMetrics struct {
	CIK         string `json:"company_cik"`
	CompanyName string `json:"company_name"`
	FiscalYear  int    `json:"fiscal_year"`

	// Growth
	RevenueGrowthYoY   *float64 `json:"revenue_growth_yoy"`
	NetIncomeGrowthYoY *float64 `json:"net_income_growth_yoy"`
	EPSGrowthYoY       *float64 `json:"eps_growth_yoy"`
	RevenueCAGR3Y      *float64 `json:"revenue_cagr_3y"`
	RevenueCAGR5Y      *float64 `json:"revenue_cagr_5y"`

	// Profitability
	GrossMargin     *float64 `json:"gross_margin"`
	OperatingMargin *float64 `json:"operating_margin"`
	NetMargin       *float64 `json:"net_profit_margin"`
	ROA             *float64 `json:"roa"`
	ROE             *float64 `json:"roe"`
	ROIC            *float64 `json:"roic"`

	// Financial health
	CurrentRatio     *float64 `json:"current_ratio"`
	QuickRatio       *float64 `json:"quick_ratio"`
	CashRatio        *float64 `json:"cash_ratio"`
	DebtToEquity     *float64 `json:"debt_to_equity"`
	DebtToAssets     *float64 `json:"debt_to_assets"`
	InterestCoverage *float64 `json:"interest_coverage"`

	// Cash flow
	FreeCashFlow   *float64 `json:"free_cash_flow"`
	FCFMargin      *float64 `json:"fcf_margin"`
	CashConversion *float64 `json:"cash_conversion_ratio"`
	CapexIntensity *float64 `json:"capex_intensity"`

	// Efficiency
	AssetTurnover          *float64 `json:"asset_turnover"`
	WorkingCapital         *float64 `json:"working_capital"`
	WorkingCapitalTurnover *float64 `json:"working_capital_turnover"`
}

// Calculate computes metrics for every statement, newest fiscal year first.
// Growth metrics compare against the statement exactly one (or three, five)
// fiscal years earlier; gaps in the series leave them nil.
func Calculate(statements []*xbrl.FinancialStatement) []PerformanceMetrics {
	byYear := make(map[int]*xbrl.FinancialStatement, len(statements))
	for _, s := range statements {
		if s == nil {
			continue
		}
		byYear[s.FiscalYear] = s
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	out := make([]PerformanceMetrics, 0, len(years))
	for _, y := range years {
		s := byYear[y]
		m := PerformanceMetrics{CIK: s.CIK, CompanyName: s.CompanyName, FiscalYear: y}
		growth(&m, s, byYear)
		profitability(&m, s)
		health(&m, s)
		cashFlow(&m, s)
		efficiency(&m, s)
		out = append(out, m)
	}
	return out
}

func growth(m *PerformanceMetrics, s *xbrl.FinancialStatement, byYear map[int]*xbrl.FinancialStatement) {
	if prev, ok := byYear[s.FiscalYear-1]; ok {
		m.RevenueGrowthYoY = yoy(s, prev, "revenue")
		m.NetIncomeGrowthYoY = yoy(s, prev, "net_income")
		m.EPSGrowthYoY = yoy(s, prev, "earnings_per_share_diluted")
	}
	m.RevenueCAGR3Y = cagr(s, byYear[s.FiscalYear-3], 3)
	m.RevenueCAGR5Y = cagr(s, byYear[s.FiscalYear-5], 5)
}

func profitability(m *PerformanceMetrics, s *xbrl.FinancialStatement) {
	revenue, hasRev := s.Value("revenue")
	if hasRev && revenue != 0 {
		if gp, ok := s.Value("gross_profit"); ok {
			m.GrossMargin = pct(gp, revenue)
		} else if cogs, ok := s.Value("cost_of_goods_sold"); ok {
			m.GrossMargin = pct(revenue-cogs, revenue)
		}
		if oi, ok := s.Value("operating_income"); ok {
			m.OperatingMargin = pct(oi, revenue)
		}
		if ni, ok := s.Value("net_income"); ok {
			m.NetMargin = pct(ni, revenue)
		}
	}

	ni, hasNI := s.Value("net_income")
	if hasNI {
		m.ROA = pctOf(s, ni, "total_assets")
		m.ROE = pctOf(s, ni, "shareholders_equity")
	}

	oi, hasOI := s.Value("operating_income")
	equity, hasEq := s.Value("shareholders_equity")
	if hasOI && hasEq {
		invested := equity
		if debt, ok := s.Value("long_term_debt"); ok {
			invested += debt
		}
		m.ROIC = pct(oi*(1-ROICTaxRate), invested)
	}
}

func health(m *PerformanceMetrics, s *xbrl.FinancialStatement) {
	ca, hasCA := s.Value("current_assets")
	if hasCA {
		m.CurrentRatio = ratioOf(s, ca, "current_liabilities")
		inventory, _ := s.Value("inventory")
		m.QuickRatio = ratioOf(s, ca-inventory, "current_liabilities")
	}
	if cash, ok := s.Value("cash_and_equivalents"); ok {
		m.CashRatio = ratioOf(s, cash, "current_liabilities")
	}
	if tl, ok := s.Value("total_liabilities"); ok {
		m.DebtToEquity = ratioOf(s, tl, "shareholders_equity")
		m.DebtToAssets = ratioOf(s, tl, "total_assets")
	}
	if oi, ok := s.Value("operating_income"); ok {
		m.InterestCoverage = ratioOf(s, oi, "interest_expense")
	}
}

func cashFlow(m *PerformanceMetrics, s *xbrl.FinancialStatement) {
	cfo, hasCFO := s.Value("operating_cash_flow")
	capex, hasCapex := s.Value("capital_expenditures")
	revenue, hasRev := s.Value("revenue")

	if hasCFO && hasCapex {
		fcf := validate.FreeCashFlow(cfo, capex)
		m.FreeCashFlow = &fcf
		if hasRev {
			m.FCFMargin = pct(fcf, revenue)
		}
	}
	if hasCFO {
		m.CashConversion = ratioOf(s, cfo, "net_income")
	}
	if hasCapex && hasRev {
		m.CapexIntensity = pct(math.Abs(capex), revenue)
	}
}

func efficiency(m *PerformanceMetrics, s *xbrl.FinancialStatement) {
	revenue, hasRev := s.Value("revenue")
	if hasRev {
		m.AssetTurnover = ratioOf(s, revenue, "total_assets")
	}
	ca, hasCA := s.Value("current_assets")
	cl, hasCL := s.Value("current_liabilities")
	if hasCA && hasCL {
		wc := ca - cl
		m.WorkingCapital = &wc
		if hasRev {
			m.WorkingCapitalTurnover = ratio(revenue, wc)
		}
	}
}

// =============================================================================
// helpers
// =============================================================================

func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}

func pct(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den * 100
	return &v
}

// ratioOf divides num by the statement's value for concept.
func ratioOf(s *xbrl.FinancialStatement, num float64, concept string) *float64 {
	den, ok := s.Value(concept)
	if !ok {
		return nil
	}
	return ratio(num, den)
}

func pctOf(s *xbrl.FinancialStatement, num float64, concept string) *float64 {
	den, ok := s.Value(concept)
	if !ok {
		return nil
	}
	return pct(num, den)
}

func yoy(cur, prev *xbrl.FinancialStatement, concept string) *float64 {
	c, ok1 := cur.Value(concept)
	p, ok2 := prev.Value(concept)
	if !ok1 || !ok2 || p == 0 {
		return nil
	}
	v := validate.YoY(c, p)
	return &v
}

func cagr(cur, start *xbrl.FinancialStatement, years int) *float64 {
	if start == nil {
		return nil
	}
	end, ok1 := cur.Value("revenue")
	begin, ok2 := start.Value("revenue")
	if !ok1 || !ok2 || begin <= 0 || end <= 0 {
		return nil
	}
	v := validate.CAGR(begin, end, years)
	return &v
}
