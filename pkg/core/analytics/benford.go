package analytics

import (
	"math"
	"strconv"

	"financialreader/pkg/core/xbrl"
)

// BenfordDistribution is the expected frequency of leading digits 1-9.
var BenfordDistribution = [10]float64{
	1: 0.30103,
	2: 0.17609,
	3: 0.12494,
	4: 0.09691,
	5: 0.07918,
	6: 0.06695,
	7: 0.05799,
	8: 0.05115,
	9: 0.04576,
}

// Benford deviation levels.
const (
	BenfordInsufficient = "insufficient_data"
	BenfordLow          = "low"
	BenfordMedium       = "medium"
	BenfordHigh         = "high"
)

// BenfordMinSample is the smallest sample a level is reported for.
const BenfordMinSample = 30

// BenfordResult is a first-digit test over a set of reported values.
type BenfordResult struct {
	DigitCounts      [10]int     `json:"digit_counts"`
	DigitFrequencies [10]float64 `json:"digit_frequencies"`
	TotalCount       int         `json:"total_count"`
	MAD              float64     `json:"mad"` // mean absolute deviation
	Flagged          bool        `json:"flagged"`
	Level            string      `json:"level"`
}

// Benford runs a first-digit test. Values with magnitude below 1 are ignored.
// MAD above 0.015 is high, above 0.010 medium; these are looser than audit
// practice because a company's filings rarely yield large samples.
func Benford(values []float64) BenfordResult {
	var r BenfordResult
	for _, v := range values {
		d := leadingDigit(v)
		if d == 0 {
			continue
		}
		r.DigitCounts[d]++
		r.TotalCount++
	}
	if r.TotalCount < BenfordMinSample {
		r.Level = BenfordInsufficient
		return r
	}

	sum := 0.0
	for d := 1; d <= 9; d++ {
		f := float64(r.DigitCounts[d]) / float64(r.TotalCount)
		r.DigitFrequencies[d] = f
		sum += math.Abs(f - BenfordDistribution[d])
	}
	r.MAD = sum / 9

	switch {
	case r.MAD > 0.015:
		r.Level, r.Flagged = BenfordHigh, true
	case r.MAD > 0.010:
		r.Level = BenfordMedium
	default:
		r.Level = BenfordLow
	}
	return r
}

// BenfordStatements tests every dollar value across statements.
func BenfordStatements(statements []*xbrl.FinancialStatement) BenfordResult {
	var values []float64
	for _, s := range statements {
		for _, m := range []map[string]float64{s.IncomeStatement, s.BalanceSheet, s.CashFlow} {
			for _, v := range m {
				values = append(values, v)
			}
		}
	}
	return Benford(values)
}

// leadingDigit returns the first significant digit of |v|, or 0 when |v| < 1
// or v is not finite.
func leadingDigit(v float64) int {
	v = math.Abs(v)
	if v < 1 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return int(strconv.FormatFloat(v, 'e', -1, 64)[0] - '0')
}
