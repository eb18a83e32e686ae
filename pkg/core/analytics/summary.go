package analytics

import (
	"fmt"
	"math"
	"sort"
)

// Trend directions reported by Summarize.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// Summary aggregates metrics across fiscal years.
type Summary struct {
	CompanyName   string               `json:"company_name"`
	YearsAnalyzed []int                `json:"years_analyzed"`
	Periods       int                  `json:"periods"`
	Growth        GrowthSummary        `json:"growth_analysis"`
	Profitability ProfitabilitySummary `json:"profitability_analysis"`
	Health        HealthSummary        `json:"financial_health_analysis"`
	CashFlow      CashFlowSummary      `json:"cash_flow_analysis"`
	Insights      []string             `json:"key_insights"`
}

type GrowthSummary struct {
	AvgRevenueGrowth        *float64 `json:"avg_revenue_growth"`
	RevenueGrowthVolatility *float64 `json:"revenue_growth_volatility"`
	AvgNetIncomeGrowth      *float64 `json:"avg_net_income_growth"`
	// ConsistentGrowth is the share of years with positive revenue growth.
	ConsistentGrowth float64  `json:"consistent_growth"`
	LatestCAGR3Y     *float64 `json:"latest_cagr_3y"`
}

type ProfitabilitySummary struct {
	AvgGrossMargin     *float64 `json:"avg_gross_margin"`
	AvgOperatingMargin *float64 `json:"avg_operating_margin"`
	AvgROE             *float64 `json:"avg_roe"`
	MarginTrend        string   `json:"margin_trend"`
}

type HealthSummary struct {
	AvgCurrentRatio *float64 `json:"avg_current_ratio"`
	AvgDebtToEquity *float64 `json:"avg_debt_to_equity"`
	LiquidityTrend  string   `json:"liquidity_trend"`
}

type CashFlowSummary struct {
	AvgFCFMargin      *float64 `json:"avg_fcf_margin"`
	AvgCashConversion *float64 `json:"avg_cash_conversion"`
	FCFTrend          string   `json:"fcf_trend"`
}

// Summarize aggregates metrics in any order. It returns nil for no metrics.
func Summarize(metrics []PerformanceMetrics) *Summary {
	if len(metrics) == 0 {
		return nil
	}
	sorted := append([]PerformanceMetrics(nil), metrics...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FiscalYear < sorted[j].FiscalYear })

	s := &Summary{CompanyName: sorted[0].CompanyName, Periods: len(sorted)}
	for _, m := range sorted {
		s.YearsAnalyzed = append(s.YearsAnalyzed, m.FiscalYear)
	}

	pick := func(f func(PerformanceMetrics) *float64) []float64 {
		var out []float64
		for _, m := range sorted {
			if v := f(m); v != nil && !math.IsInf(*v, 0) && !math.IsNaN(*v) {
				out = append(out, *v)
			}
		}
		return out
	}

	revGrowth := pick(func(m PerformanceMetrics) *float64 { return m.RevenueGrowthYoY })
	s.Growth = GrowthSummary{
		AvgRevenueGrowth:   mean(revGrowth),
		AvgNetIncomeGrowth: mean(pick(func(m PerformanceMetrics) *float64 { return m.NetIncomeGrowthYoY })),
		LatestCAGR3Y:       sorted[len(sorted)-1].RevenueCAGR3Y,
	}
	if len(revGrowth) > 1 {
		s.Growth.RevenueGrowthVolatility = stddev(revGrowth)
	}
	if len(revGrowth) > 0 {
		positive := 0
		for _, g := range revGrowth {
			if g > 0 {
				positive++
			}
		}
		s.Growth.ConsistentGrowth = float64(positive) / float64(len(revGrowth))
	}

	opMargins := pick(func(m PerformanceMetrics) *float64 { return m.OperatingMargin })
	s.Profitability = ProfitabilitySummary{
		AvgGrossMargin:     mean(pick(func(m PerformanceMetrics) *float64 { return m.GrossMargin })),
		AvgOperatingMargin: mean(opMargins),
		AvgROE:             mean(pick(func(m PerformanceMetrics) *float64 { return m.ROE })),
		MarginTrend:        trend(opMargins),
	}

	currentRatios := pick(func(m PerformanceMetrics) *float64 { return m.CurrentRatio })
	s.Health = HealthSummary{
		AvgCurrentRatio: mean(currentRatios),
		AvgDebtToEquity: mean(pick(func(m PerformanceMetrics) *float64 { return m.DebtToEquity })),
		LiquidityTrend:  trend(currentRatios),
	}

	fcfMargins := pick(func(m PerformanceMetrics) *float64 { return m.FCFMargin })
	s.CashFlow = CashFlowSummary{
		AvgFCFMargin:      mean(fcfMargins),
		AvgCashConversion: mean(pick(func(m PerformanceMetrics) *float64 { return m.CashConversion })),
		FCFTrend:          trend(fcfMargins),
	}

	s.Insights = insights(sorted[len(sorted)-1])
	return s
}

// insights describes notable values of the latest year.
func insights(latest PerformanceMetrics) []string {
	var out []string
	if g := latest.RevenueGrowthYoY; g != nil {
		switch {
		case *g > 10:
			out = append(out, fmt.Sprintf("Strong revenue growth of %.1f%% YoY", *g))
		case *g < 0:
			out = append(out, fmt.Sprintf("Revenue declining %.1f%% YoY", math.Abs(*g)))
		}
	}
	if om := latest.OperatingMargin; om != nil {
		switch {
		case *om > 20:
			out = append(out, fmt.Sprintf("High operating margin of %.1f%%", *om))
		case *om < 5:
			out = append(out, fmt.Sprintf("Low operating margin of %.1f%%", *om))
		}
	}
	if cr := latest.CurrentRatio; cr != nil {
		switch {
		case *cr > 2:
			out = append(out, fmt.Sprintf("Strong liquidity with current ratio of %.2f", *cr))
		case *cr < 1:
			out = append(out, fmt.Sprintf("Liquidity concern with current ratio of %.2f", *cr))
		}
	}
	if fm := latest.FCFMargin; fm != nil {
		switch {
		case *fm > 15:
			out = append(out, fmt.Sprintf("Excellent cash generation with FCF margin of %.1f%%", *fm))
		case *fm < 0:
			out = append(out, "Negative free cash flow")
		}
	}
	return out
}

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	v := sum / float64(len(xs))
	return &v
}

// stddev is the population standard deviation.
func stddev(xs []float64) *float64 {
	m := mean(xs)
	if m == nil {
		return nil
	}
	ss := 0.0
	for _, x := range xs {
		ss += (x - *m) * (x - *m)
	}
	v := math.Sqrt(ss / float64(len(xs)))
	return &v
}

// trend compares the first and last observation of an ascending series.
func trend(xs []float64) string {
	if len(xs) < 2 {
		return TrendStable
	}
	first, last := xs[0], xs[len(xs)-1]
	switch {
	case last > first:
		return TrendImproving
	case last < first:
		return TrendDeclining
	}
	return TrendStable
}
