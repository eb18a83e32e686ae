// Package validate holds the arithmetic checks shared by the quality report,
// the analytics layer and the API: growth rates over fiscal-year series and
// the accounting identities a reconstructed statement should satisfy.
package validate

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMissingYear is returned when a series lacks a requested fiscal year.
var ErrMissingYear = errors.New("validate: missing fiscal year")

// Series maps fiscal year to a reported value. A missing key means the value
// was not reported.
type Series map[int]float64

// Years returns the series' fiscal years in ascending order.
func (s Series) Years() []int {
	out := make([]int, 0, len(s))
	for y := range s {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// =============================================================================
// GROWTH
// =============================================================================

// Growth is the change between two fiscal years of a series.
type Growth struct {
	Label         string  `json:"label,omitempty"`
	FromYear      int     `json:"from_year"`
	ToYear        int     `json:"to_year"`
	FromValue     float64 `json:"from_value"`
	ToValue       float64 `json:"to_value"`
	ChangeAbs     float64 `json:"change_abs"`
	ChangePct     float64 `json:"change_pct"`
	AnnualizedPct float64 `json:"annualized_pct"`
}

// YoY returns (current - prior) / |prior| * 100. A zero prior yields 0 when
// current is also zero and +Inf otherwise.
func YoY(current, prior float64) float64 {
	if prior == 0 {
		if current == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return (current - prior) / math.Abs(prior) * 100
}

// CAGR returns the compound annual growth rate in percent. Non-positive
// start values or periods yield 0.
func CAGR(start, end float64, years int) float64 {
	if start <= 0 || end < 0 || years <= 0 {
		return 0
	}
	return (math.Pow(end/start, 1/float64(years)) - 1) * 100
}

// Between computes growth from fromYear to toYear on s.
func (s Series) Between(fromYear, toYear int, label string) (*Growth, error) {
	from, ok := s[fromYear]
	if !ok {
		return nil, fmt.Errorf("%w: %s FY%d", ErrMissingYear, label, fromYear)
	}
	to, ok := s[toYear]
	if !ok {
		return nil, fmt.Errorf("%w: %s FY%d", ErrMissingYear, label, toYear)
	}
	if toYear <= fromYear {
		return nil, fmt.Errorf("validate: %s: FY%d is not after FY%d", label, toYear, fromYear)
	}
	return &Growth{
		Label:         label,
		FromYear:      fromYear,
		ToYear:        toYear,
		FromValue:     from,
		ToValue:       to,
		ChangeAbs:     to - from,
		ChangePct:     YoY(to, from),
		AnnualizedPct: CAGR(from, to, toYear-fromYear),
	}, nil
}

// LatestYoY returns growth between the two most recent consecutive years.
// ok is false when the series has no such pair.
func (s Series) LatestYoY(label string) (*Growth, bool) {
	years := s.Years()
	for i := len(years) - 1; i > 0; i-- {
		if years[i]-years[i-1] == 1 {
			g, err := s.Between(years[i-1], years[i], label)
			return g, err == nil
		}
	}
	return nil, false
}

// =============================================================================
// ACCOUNTING IDENTITIES
// =============================================================================

// BalanceCheck is the result of testing Assets = Liabilities + Equity.
type BalanceCheck struct {
	Assets      float64 `json:"assets"`
	Liabilities float64 `json:"liabilities"`
	Equity      float64 `json:"equity"`
	Gap         float64 `json:"gap"`     // assets - (liabilities + equity)
	GapPct      float64 `json:"gap_pct"` // |gap| / |assets| * 100
	Balanced    bool    `json:"balanced"`
}

// CheckBalanceSheet tests the balance sheet identity. tolerance is relative
// to assets (0.01 = 1%). Zero assets balance only when the gap is zero.
func CheckBalanceSheet(assets, liabilities, equity, tolerance float64) BalanceCheck {
	gap := assets - (liabilities + equity)
	c := BalanceCheck{Assets: assets, Liabilities: liabilities, Equity: equity, Gap: gap}
	if assets == 0 {
		c.Balanced = gap == 0
		return c
	}
	c.GapPct = math.Abs(gap) / math.Abs(assets) * 100
	c.Balanced = math.Abs(gap) <= math.Abs(assets)*tolerance
	return c
}

// CashFlowCheck is the result of testing CFO + CFI + CFF = net change in cash.
type CashFlowCheck struct {
	Computed float64 `json:"computed"`
	Reported float64 `json:"reported"`
	Gap      float64 `json:"gap"`
	Balanced bool    `json:"balanced"`
}

// CheckCashFlow tests the cash flow identity against an absolute tolerance.
// Currency effects usually account for small gaps.
func CheckCashFlow(cfo, cfi, cff, reportedChange, tolerance float64) CashFlowCheck {
	computed := cfo + cfi + cff
	gap := reportedChange - computed
	return CashFlowCheck{
		Computed: computed,
		Reported: reportedChange,
		Gap:      gap,
		Balanced: math.Abs(gap) <= tolerance,
	}
}

// =============================================================================
// OUTLIERS
// =============================================================================

// Outlier flags a suspicious year-over-year move.
type Outlier struct {
	Concept   string  `json:"concept"`
	Year      int     `json:"year"`
	ChangePct float64 `json:"change_pct"`
	Reason    string  `json:"reason"`
}

// FindOutliers scans consecutive years of s. A value that drops to zero from
// a non-zero prior, rises from zero, or moves by more than thresholdPct is
// flagged. ChangePct is always finite; a rise from zero reports 0.
func (s Series) FindOutliers(concept string, thresholdPct float64) []Outlier {
	var out []Outlier
	years := s.Years()
	for i := 1; i < len(years); i++ {
		prev, cur := years[i-1], years[i]
		if cur-prev != 1 {
			continue
		}
		pv, cv := s[prev], s[cur]
		change := YoY(cv, pv)
		switch {
		case cv == 0 && pv != 0:
			out = append(out, Outlier{Concept: concept, Year: cur, ChangePct: change, Reason: "value dropped to zero"})
		case pv == 0 && cv != 0:
			out = append(out, Outlier{Concept: concept, Year: cur, Reason: "value rose from zero"})
		case math.Abs(change) > thresholdPct:
			out = append(out, Outlier{Concept: concept, Year: cur, ChangePct: change,
				Reason: fmt.Sprintf("change of %.1f%% exceeds %.1f%%", change, thresholdPct)})
		}
	}
	return out
}

// =============================================================================
// DERIVED CASH FLOWS
// =============================================================================

// FreeCashFlow returns CFO minus capital expenditures. XBRL reports
// PaymentsToAcquirePropertyPlantAndEquipment as a positive outflow, so the
// magnitude of capex is subtracted regardless of sign.
func FreeCashFlow(cfo, capex float64) float64 {
	return cfo - math.Abs(capex)
}
