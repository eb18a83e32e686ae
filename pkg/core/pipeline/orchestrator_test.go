package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"financialreader/pkg/core/export"
	"financialreader/pkg/core/xbrl"
)

// --- Mocks ---

type MockResolver struct {
	LookupFunc func(ctx context.Context, ticker string) (string, error)
}

func (m *MockResolver) LookupCIK(ctx context.Context, ticker string) (string, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, ticker)
	}
	return "0000320193", nil
}

type MockFetcher struct {
	FetchFunc func(ctx context.Context, cik string) (*xbrl.CompanyFacts, error)
}

func (m *MockFetcher) FetchCompanyFacts(ctx context.Context, cik string) (*xbrl.CompanyFacts, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, cik)
	}
	return appleFacts(), nil
}

type MockRepository struct {
	mu       sync.Mutex
	SaveFunc func(ctx context.Context, ticker string, statements []*xbrl.FinancialStatement) error
	saved    map[string]int
}

func (m *MockRepository) Save(ctx context.Context, ticker string, statements []*xbrl.FinancialStatement) error {
	m.mu.Lock()
	if m.saved == nil {
		m.saved = map[string]int{}
	}
	m.saved[ticker] = len(statements)
	m.mu.Unlock()
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, ticker, statements)
	}
	return nil
}

type MockExporter struct {
	ExportFunc func(b export.Bundle) (*export.Dataset, error)
}

func (m *MockExporter) Export(b export.Bundle) (*export.Dataset, error) {
	if m.ExportFunc != nil {
		return m.ExportFunc(b)
	}
	return &export.Dataset{ID: "ds-1", Ticker: b.Ticker, Rows: len(b.Table.Rows)}, nil
}

// --- Fixtures ---

var durationTags = map[string]bool{
	"RevenueFromContractWithCustomerExcludingAssessedTax": true,
	"NetIncomeLoss": true,
	"NetCashProvidedByUsedInOperatingActivities": true,
	"NetCashProvidedByUsedInInvestingActivities": true,
	"NetCashProvidedByUsedInFinancingActivities": true,
}

// companyFacts builds 10-K points ending Sep 30 of each year, filed Nov 1.
func companyFacts(cik int, name string, years map[int]map[string]float64) *xbrl.CompanyFacts {
	ns := map[string]xbrl.TagFacts{}
	for year, tags := range years {
		end := time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC)
		filed := time.Date(year, time.November, 1, 0, 0, 0, 0, time.UTC).Format(xbrl.DateLayout)
		for tag, v := range tags {
			p := xbrl.FactPoint{Val: xbrl.Float(v), End: end.Format(xbrl.DateLayout), Form: "10-K", Filed: filed}
			if durationTags[tag] {
				p.Start = end.AddDate(-1, 0, 1).Format(xbrl.DateLayout)
			}
			tf, ok := ns[tag]
			if !ok {
				tf = xbrl.TagFacts{Units: map[string][]xbrl.FactPoint{}}
			}
			tf.Units["USD"] = append(tf.Units["USD"], p)
			ns[tag] = tf
		}
	}
	return &xbrl.CompanyFacts{CIK: cik, EntityName: name, Facts: map[string]map[string]xbrl.TagFacts{"us-gaap": ns}}
}

func appleYear(revenue, netIncome, assets, liabilities, equity, cash, cfo, cfi, cff float64) map[string]float64 {
	return map[string]float64{
		"RevenueFromContractWithCustomerExcludingAssessedTax": revenue,
		"NetIncomeLoss":                         netIncome,
		"Assets":                                assets,
		"Liabilities":                           liabilities,
		"StockholdersEquity":                    equity,
		"CashAndCashEquivalentsAtCarryingValue": cash,
		"NetCashProvidedByUsedInOperatingActivities": cfo,
		"NetCashProvidedByUsedInInvestingActivities": cfi,
		"NetCashProvidedByUsedInFinancingActivities": cff,
	}
}

func appleFacts() *xbrl.CompanyFacts {
	return companyFacts(320193, "Apple Inc.", map[int]map[string]float64{
		2023: appleYear(383285, 96995, 352583, 290437, 62146, 29965, 110543, -3705, -108488),
		2024: appleYear(391035, 93736, 364980, 308030, 56950, 29943, 118254, 2935, -121983),
	})
}

func fixedNow() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

func newTestOrchestrator(opts ...Option) *Orchestrator {
	opts = append([]Option{WithClock(fixedNow)}, opts...)
	return NewOrchestrator(&MockResolver{}, &MockFetcher{}, opts...)
}

// --- Tests ---

func TestOrchestrator_RunForCompany(t *testing.T) {
	repo := &MockRepository{}
	o := newTestOrchestrator(WithRepository(repo), WithExporter(&MockExporter{}))

	ds, err := o.RunForCompany(context.Background(), " aapl ")
	if err != nil {
		t.Fatalf("RunForCompany: %v", err)
	}
	if ds.Ticker != "AAPL" || ds.CIK != "0000320193" || ds.CompanyName != "Apple Inc." {
		t.Errorf("identity = %s %s %s", ds.Ticker, ds.CIK, ds.CompanyName)
	}
	if got := ds.Table.Years(); len(got) != 2 || got[0] != 2024 {
		t.Errorf("table years = %v", got)
	}
	if len(ds.Metrics) != 2 || ds.Metrics[0].RevenueGrowthYoY == nil {
		t.Errorf("metrics = %+v", ds.Metrics)
	}
	if ds.Summary == nil || ds.Quality.StatementsExtracted != 2 {
		t.Errorf("summary/quality missing")
	}
	if ds.Export == nil || ds.Export.Rows != 2 {
		t.Errorf("export = %+v", ds.Export)
	}
	if repo.saved["AAPL"] != 2 {
		t.Errorf("saved = %v", repo.saved)
	}

	checks := map[string]int{}
	for _, f := range ds.Findings {
		if !f.Passed {
			t.Errorf("unexpected failed check: %+v", f)
		}
		checks[f.Check]++
	}
	if checks[CheckBalanceSheet] != 2 || checks[CheckCashRollForward] != 1 {
		t.Errorf("checks = %v", checks)
	}
}

func TestOrchestrator_RunForCompany_Errors(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name     string
		resolver *MockResolver
		fetcher  *MockFetcher
		repo     *MockRepository
		wantErr  error
		wantText string
	}{
		{
			name:     "resolve failure",
			resolver: &MockResolver{LookupFunc: func(context.Context, string) (string, error) { return "", errBoom }},
			fetcher:  &MockFetcher{},
			wantErr:  errBoom,
			wantText: "resolve AAPL",
		},
		{
			name:     "fetch failure",
			resolver: &MockResolver{},
			fetcher:  &MockFetcher{FetchFunc: func(context.Context, string) (*xbrl.CompanyFacts, error) { return nil, errBoom }},
			wantErr:  errBoom,
			wantText: "fetch AAPL",
		},
		{
			name:     "no us-gaap facts",
			resolver: &MockResolver{},
			fetcher: &MockFetcher{FetchFunc: func(context.Context, string) (*xbrl.CompanyFacts, error) {
				return &xbrl.CompanyFacts{CIK: 1, EntityName: "Shell Co"}, nil
			}},
			wantErr: xbrl.ErrNoUSGAAPFacts,
		},
		{
			name:     "outside window",
			resolver: &MockResolver{},
			fetcher: &MockFetcher{FetchFunc: func(context.Context, string) (*xbrl.CompanyFacts, error) {
				return companyFacts(1, "Old Co", map[int]map[string]float64{
					2001: {"Assets": 10},
				}), nil
			}},
			wantErr: ErrNoStatements,
		},
		{
			name:     "save failure",
			resolver: &MockResolver{},
			fetcher:  &MockFetcher{},
			repo: &MockRepository{SaveFunc: func(context.Context, string, []*xbrl.FinancialStatement) error {
				return errBoom
			}},
			wantErr:  errBoom,
			wantText: "save AAPL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithClock(fixedNow)}
			if tt.repo != nil {
				opts = append(opts, WithRepository(tt.repo))
			}
			o := NewOrchestrator(tt.resolver, tt.fetcher, opts...)
			_, err := o.RunForCompany(context.Background(), "AAPL")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantText)
			}
		})
	}
}

func TestOrchestrator_Validation(t *testing.T) {
	// Liabilities + equity fall 10% short of assets in 2024, and revenue
	// triples.
	unbalanced := func(context.Context, string) (*xbrl.CompanyFacts, error) {
		return companyFacts(320193, "Apple Inc.", map[int]map[string]float64{
			2023: appleYear(100, 10, 1000, 600, 400, 50, 30, -10, -15),
			2024: appleYear(300, 30, 1000, 500, 400, 55, 30, -10, -15),
		}), nil
	}

	lenient := NewOrchestrator(&MockResolver{}, &MockFetcher{FetchFunc: unbalanced}, WithClock(fixedNow))
	ds, err := lenient.RunForCompany(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("lenient run failed: %v", err)
	}
	var bsFailed, outliers int
	for _, f := range ds.Findings {
		switch {
		case f.Check == CheckBalanceSheet && !f.Passed:
			bsFailed++
			if f.FiscalYear != 2024 || !strings.Contains(f.Message, "10.00%") {
				t.Errorf("balance finding = %+v", f)
			}
		case f.Check == CheckOutlier:
			outliers++
		}
	}
	if bsFailed != 1 {
		t.Errorf("balance failures = %d, want 1", bsFailed)
	}
	// Revenue +200% and net income +200%.
	if outliers != 2 {
		t.Errorf("outliers = %d, want 2", outliers)
	}

	cfg := DefaultValidationConfig()
	cfg.Strict = true
	repo := &MockRepository{}
	strict := NewOrchestrator(&MockResolver{}, &MockFetcher{FetchFunc: unbalanced},
		WithClock(fixedNow), WithValidationConfig(cfg), WithRepository(repo))
	ds, err = strict.RunForCompany(context.Background(), "AAPL")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("strict err = %v", err)
	}
	if ds == nil || len(repo.saved) != 0 {
		t.Error("strict failure should return the dataset without saving it")
	}
}

func TestOrchestrator_RevenueFromZero(t *testing.T) {
	fetch := func(context.Context, string) (*xbrl.CompanyFacts, error) {
		return companyFacts(1, "Startup Inc.", map[int]map[string]float64{
			2023: appleYear(0, 0, 1000, 600, 400, 50, 30, -10, -15),
			2024: appleYear(100, 10, 1000, 600, 400, 55, 30, -10, -15),
		}), nil
	}
	o := NewOrchestrator(&MockResolver{}, &MockFetcher{FetchFunc: fetch}, WithClock(fixedNow))
	ds, err := o.RunForCompany(context.Background(), "NEW")
	if err != nil {
		t.Fatalf("RunForCompany: %v", err)
	}

	var rose int
	for _, f := range ds.Findings {
		if f.Check == CheckOutlier && f.FiscalYear == 2024 && strings.HasSuffix(f.Message, "value rose from zero") {
			rose++
			if f.Gap != 0 {
				t.Errorf("rise from zero gap = %v, want 0", f.Gap)
			}
		}
	}
	// Revenue and net income both start at zero.
	if rose != 2 {
		t.Errorf("rise-from-zero findings = %d, want 2: %+v", rose, ds.Findings)
	}

	if _, err := json.Marshal(ds); err != nil {
		t.Fatalf("dataset does not encode: %v", err)
	}
}

func TestOrchestrator_RunBatch(t *testing.T) {
	ciks := map[string]string{"AAPL": "0000320193", "MSFT": "0000789019", "BAD": ""}
	var inFlight, peak int32
	resolver := &MockResolver{LookupFunc: func(_ context.Context, ticker string) (string, error) {
		if cik := ciks[ticker]; cik != "" {
			return cik, nil
		}
		return "", fmt.Errorf("ticker %s not found", ticker)
	}}
	fetcher := &MockFetcher{FetchFunc: func(context.Context, string) (*xbrl.CompanyFacts, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return appleFacts(), nil
	}}
	repo := &MockRepository{}
	o := NewOrchestrator(resolver, fetcher, WithClock(fixedNow), WithRepository(repo))

	res, err := o.RunBatch(context.Background(), []string{"msft", "AAPL", "BAD", "aapl", ""}, 2)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	got := res.Succeeded()
	if len(got) != 2 || got[0] != "MSFT" || got[1] != "AAPL" {
		t.Errorf("succeeded = %v", got)
	}
	if len(res.Failures) != 1 || res.Failures["BAD"] == nil {
		t.Errorf("failures = %v", res.Failures)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if len(repo.saved) != 2 {
		t.Errorf("saved = %v", repo.saved)
	}
}

func TestOrchestrator_RunBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newTestOrchestrator()
	res, err := o.RunBatch(ctx, []string{"AAPL", "MSFT"}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(res.Datasets) != 0 {
		t.Errorf("datasets = %d, want 0", len(res.Datasets))
	}
}
