package validate

import (
	"errors"
	"math"
	"testing"
)

// Apple Inc. 10-K values, millions USD.
var appleRevenue = Series{
	2024: 391035,
	2023: 383285,
	2022: 394328,
	2021: 365817,
	2020: 274515,
}

var appleNetIncome = Series{
	2024: 93736,
	2023: 96995,
	2022: 99803,
	2021: 94680,
	2020: 57411,
}

func TestYoY(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		prior    float64
		expected float64
	}{
		{"Positive growth", 110, 100, 10.0},
		{"Negative growth", 90, 100, -10.0},
		{"Zero growth", 100, 100, 0.0},
		{"Double", 200, 100, 100.0},
		{"Loss narrowing", -50, -100, 50.0},
		{"Both zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := YoY(tt.current, tt.prior)
			if math.Abs(got-tt.expected) > 0.01 {
				t.Errorf("YoY(%v, %v) = %v, want %v", tt.current, tt.prior, got, tt.expected)
			}
		})
	}

	if !math.IsInf(YoY(5, 0), 1) {
		t.Error("growth from zero should be +Inf")
	}
}

func TestCAGR(t *testing.T) {
	// 100 -> 121 over 2 years is 10%.
	if got := CAGR(100, 121, 2); math.Abs(got-10.0) > 0.01 {
		t.Errorf("CAGR = %.4f, want 10", got)
	}
	if got := CAGR(0, 121, 2); got != 0 {
		t.Errorf("CAGR from zero = %v, want 0", got)
	}
	if got := CAGR(100, 121, 0); got != 0 {
		t.Errorf("CAGR over zero years = %v, want 0", got)
	}
}

func TestSeriesBetween_AppleNetIncome(t *testing.T) {
	g, err := appleNetIncome.Between(2023, 2024, "net_income")
	if err != nil {
		t.Fatalf("Between failed: %v", err)
	}
	want := (93736.0 - 96995.0) / 96995.0 * 100
	if math.Abs(g.ChangePct-want) > 0.01 {
		t.Errorf("ChangePct = %.4f, want %.4f", g.ChangePct, want)
	}
	if g.ChangeAbs != 93736-96995 {
		t.Errorf("ChangeAbs = %v", g.ChangeAbs)
	}

	g, err = appleRevenue.Between(2020, 2024, "revenue")
	if err != nil {
		t.Fatalf("Between failed: %v", err)
	}
	if g.AnnualizedPct <= 0 {
		t.Errorf("4-year revenue CAGR should be positive, got %.2f", g.AnnualizedPct)
	}
}

func TestSeriesBetween_Errors(t *testing.T) {
	if _, err := appleRevenue.Between(2019, 2024, "revenue"); !errors.Is(err, ErrMissingYear) {
		t.Errorf("expected ErrMissingYear, got %v", err)
	}
	if _, err := appleRevenue.Between(2024, 2022, "revenue"); err == nil {
		t.Error("expected error for reversed years")
	}
}

func TestSeriesLatestYoY(t *testing.T) {
	g, ok := appleRevenue.LatestYoY("revenue")
	if !ok {
		t.Fatal("expected latest YoY")
	}
	if g.FromYear != 2023 || g.ToYear != 2024 {
		t.Errorf("got FY%d->FY%d, want FY2023->FY2024", g.FromYear, g.ToYear)
	}

	gappy := Series{2018: 1, 2020: 2, 2022: 3}
	if _, ok := gappy.LatestYoY("x"); ok {
		t.Error("series without consecutive years should have no YoY")
	}
}

func TestCheckBalanceSheet(t *testing.T) {
	tests := []struct {
		name        string
		assets      float64
		liabilities float64
		equity      float64
		balanced    bool
	}{
		{"Exact", 100, 60, 40, true},
		{"Within 1%", 100, 60, 39.5, true},
		{"Outside 1%", 100, 60, 30, false},
		{"Zero assets zero gap", 0, 0, 0, true},
		{"Zero assets with gap", 0, 10, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CheckBalanceSheet(tt.assets, tt.liabilities, tt.equity, 0.01)
			if c.Balanced != tt.balanced {
				t.Errorf("Balanced = %v, want %v (gap %.2f, %.2f%%)", c.Balanced, tt.balanced, c.Gap, c.GapPct)
			}
		})
	}

	c := CheckBalanceSheet(100, 60, 30, 0.01)
	if math.Abs(c.GapPct-10) > 1e-9 {
		t.Errorf("GapPct = %v, want 10", c.GapPct)
	}
}

func TestCheckCashFlow_Apple(t *testing.T) {
	// FY2024: CFO 118254, CFI 2935, CFF -121983, reported change -794.
	c := CheckCashFlow(118254, 2935, -121983, -794, 10)
	if !c.Balanced {
		t.Errorf("expected balanced cash flow, gap %.0f", c.Gap)
	}
	if c.Computed != 118254+2935-121983 {
		t.Errorf("Computed = %v", c.Computed)
	}
}

func TestFindOutliers(t *testing.T) {
	s := Series{2020: 100, 2021: 105, 2022: 0, 2023: 100, 2024: 300}
	out := s.FindOutliers("revenue", 50)
	// 2022 drops to zero, 2023 rises from zero, 2024 is +200%.
	if len(out) != 3 {
		t.Fatalf("got %d outliers, want 3: %+v", len(out), out)
	}
	if out[0].Year != 2022 || out[0].Reason != "value dropped to zero" {
		t.Errorf("first outlier = %+v", out[0])
	}
	if out[1].Year != 2023 || out[1].Reason != "value rose from zero" || out[1].ChangePct != 0 {
		t.Errorf("second outlier = %+v", out[1])
	}
	if out[2].Year != 2024 || out[2].ChangePct != 200 {
		t.Errorf("third outlier = %+v", out[2])
	}
	for _, o := range out {
		if math.IsInf(o.ChangePct, 0) || math.IsNaN(o.ChangePct) {
			t.Errorf("FY%d change %v is not finite", o.Year, o.ChangePct)
		}
	}
}

func TestFreeCashFlow(t *testing.T) {
	if got := FreeCashFlow(118254, 9447); got != 108807 {
		t.Errorf("FreeCashFlow = %v, want 108807", got)
	}
	if got := FreeCashFlow(118254, -9447); got != 108807 {
		t.Errorf("FreeCashFlow with negative capex = %v, want 108807", got)
	}
}
