// Package pipeline runs the companyfacts pipeline end to end for one company
// or a batch: resolve CIK, fetch facts, reconstruct statements, compute
// analytics and quality, validate, then persist and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"financialreader/pkg/core/analytics"
	"financialreader/pkg/core/export"
	"financialreader/pkg/core/validate"
	"financialreader/pkg/core/xbrl"
)

var (
	// ErrNoStatements means the company has no annual statements in the window.
	ErrNoStatements = errors.New("pipeline: no statements extracted")
	// ErrValidation is returned in strict mode when an accounting check fails.
	ErrValidation = errors.New("pipeline: validation failed")
)

// CIKResolver maps a ticker (or a numeric CIK) to a zero-padded CIK.
type CIKResolver interface {
	LookupCIK(ctx context.Context, ticker string) (string, error)
}

// FactsFetcher retrieves the companyfacts document for a CIK.
type FactsFetcher interface {
	FetchCompanyFacts(ctx context.Context, cik string) (*xbrl.CompanyFacts, error)
}

// Repository persists reconstructed statements.
type Repository interface {
	Save(ctx context.Context, ticker string, statements []*xbrl.FinancialStatement) error
}

// Exporter writes a dataset version for a company run.
type Exporter interface {
	Export(b export.Bundle) (*export.Dataset, error)
}

// ValidationConfig defines thresholds for the accounting checks.
type ValidationConfig struct {
	Strict                bool    // a failed check fails the run
	BalanceSheetTolerance float64 // relative to total assets
	CashFlowTolerance     float64 // relative to ending cash
	OutlierThresholdPct   float64 // YoY move flagged on revenue and net income
}

// DefaultValidationConfig logs failures without stopping the run.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		BalanceSheetTolerance: xbrl.BalanceSheetTolerance,
		CashFlowTolerance:     0.05,
		OutlierThresholdPct:   100,
	}
}

// Finding is the outcome of one accounting check for one fiscal year.
type Finding struct {
	FiscalYear int     `json:"fiscal_year"`
	Check      string  `json:"check"`
	Passed     bool    `json:"passed"`
	Gap        float64 `json:"gap"`
	Message    string  `json:"message,omitempty"`
}

// Checks reported in Finding.Check.
const (
	CheckBalanceSheet    = "balance_sheet"
	CheckCashRollForward = "cash_roll_forward"
	CheckOutlier         = "outlier"
)

// CompanyDataset is everything one company run produces.
type CompanyDataset struct {
	Ticker      string                         `json:"ticker"`
	CIK         string                         `json:"cik"`
	CompanyName string                         `json:"company_name"`
	Result      *xbrl.Result                   `json:"result"`
	Table       *xbrl.Table                    `json:"table"`
	Metrics     []analytics.PerformanceMetrics `json:"metrics"`
	Summary     *analytics.Summary             `json:"summary"`
	Quality     *xbrl.QualityReport            `json:"quality"`
	Benford     analytics.BenfordResult        `json:"benford"`
	Findings    []Finding                      `json:"findings"`
	Export      *export.Dataset                `json:"export,omitempty"`
	Duration    time.Duration                  `json:"duration"`
}

// Orchestrator wires the pipeline stages. It holds no per-run state and may
// be shared between goroutines.
type Orchestrator struct {
	resolver CIKResolver
	fetcher  FactsFetcher
	repo     Repository
	exporter Exporter

	taxonomy         *xbrl.Taxonomy
	parser           *xbrl.Parser
	windowYears      int
	keepRawPoints    bool
	order            xbrl.SortOrder
	qualityThreshold float64
	validation       ValidationConfig
	logger           *zap.Logger
	now              func() time.Time
}

type Option func(*Orchestrator)

func WithTaxonomy(t *xbrl.Taxonomy) Option { return func(o *Orchestrator) { o.taxonomy = t } }

func WithRepository(r Repository) Option { return func(o *Orchestrator) { o.repo = r } }

func WithExporter(e Exporter) Option { return func(o *Orchestrator) { o.exporter = e } }

func WithWindowYears(years int) Option { return func(o *Orchestrator) { o.windowYears = years } }

func WithRawPoints(keep bool) Option { return func(o *Orchestrator) { o.keepRawPoints = keep } }

func WithRowOrder(order xbrl.SortOrder) Option { return func(o *Orchestrator) { o.order = order } }

func WithQualityThreshold(t float64) Option { return func(o *Orchestrator) { o.qualityThreshold = t } }

func WithValidationConfig(c ValidationConfig) Option { return func(o *Orchestrator) { o.validation = c } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator builds an orchestrator. Repository and exporter are
// optional; without them runs are not persisted.
func NewOrchestrator(resolver CIKResolver, fetcher FactsFetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:         resolver,
		fetcher:          fetcher,
		taxonomy:         xbrl.DefaultTaxonomy(),
		windowYears:      xbrl.DefaultWindowYears,
		order:            xbrl.Descending,
		qualityThreshold: xbrl.DefaultQualityThreshold,
		validation:       DefaultValidationConfig(),
		logger:           zap.NewNop(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.parser = xbrl.NewParser(o.taxonomy,
		xbrl.WithYears(o.windowYears),
		xbrl.WithClock(o.now),
		xbrl.WithLogger(o.logger),
		xbrl.WithRawPoints(o.keepRawPoints),
	)
	return o
}

// Taxonomy returns the concept registry runs are parsed with.
func (o *Orchestrator) Taxonomy() *xbrl.Taxonomy { return o.taxonomy }

// RunForCompany executes the full pipeline for one ticker or CIK.
func (o *Orchestrator) RunForCompany(ctx context.Context, ticker string) (*CompanyDataset, error) {
	start := o.now()
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	log := o.logger.With(zap.String("ticker", ticker))

	cik, err := o.resolver.LookupCIK(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ticker, err)
	}
	log = log.With(zap.String("cik", cik))

	facts, err := o.fetcher.FetchCompanyFacts(ctx, cik)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	result, err := o.parser.Parse(cik, facts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ticker, err)
	}
	if len(result.Statements) == 0 {
		return nil, fmt.Errorf("%w for %s: %s", ErrNoStatements, ticker, result.Diagnostics.Reason)
	}

	ds := o.analyze(ticker, result)

	failed := 0
	for _, f := range ds.Findings {
		if f.Passed {
			continue
		}
		// Outliers are informational; only identity checks fail a strict run.
		if f.Check != CheckOutlier {
			failed++
		}
		log.Warn("validation check failed",
			zap.Int("fiscal_year", f.FiscalYear),
			zap.String("check", f.Check),
			zap.String("message", f.Message))
	}
	if failed > 0 && o.validation.Strict {
		return ds, fmt.Errorf("%w for %s: %d checks", ErrValidation, ticker, failed)
	}

	if o.repo != nil {
		if err := o.repo.Save(ctx, ticker, result.Statements); err != nil {
			return ds, fmt.Errorf("save %s: %w", ticker, err)
		}
	}
	if o.exporter != nil {
		ds.Export, err = o.exporter.Export(export.Bundle{
			Ticker:  ticker,
			Result:  result,
			Table:   ds.Table,
			Metrics: ds.Metrics,
			Summary: ds.Summary,
			Quality: ds.Quality,
			Benford: &ds.Benford,
		})
		if err != nil {
			return ds, fmt.Errorf("export %s: %w", ticker, err)
		}
	}

	ds.Duration = o.now().Sub(start)
	log.Info("pipeline completed",
		zap.Int("years", len(result.Statements)),
		zap.Float64("avg_quality", ds.Quality.AvgDataQualityScore),
		zap.Int("failed_checks", failed),
		zap.Duration("duration", ds.Duration))
	return ds, nil
}

// Analyze runs the post-parse stages on an existing result.
func (o *Orchestrator) Analyze(ticker string, result *xbrl.Result) *CompanyDataset {
	return o.analyze(strings.ToUpper(strings.TrimSpace(ticker)), result)
}

func (o *Orchestrator) analyze(ticker string, result *xbrl.Result) *CompanyDataset {
	metrics := analytics.Calculate(result.Statements)
	return &CompanyDataset{
		Ticker:      ticker,
		CIK:         result.CIK,
		CompanyName: result.CompanyName,
		Result:      result,
		Table:       result.Table(o.taxonomy, o.order),
		Metrics:     metrics,
		Summary:     analytics.Summarize(metrics),
		Quality:     xbrl.BuildQualityReport(o.taxonomy, result.Statements, o.qualityThreshold),
		Benford:     analytics.BenfordStatements(result.Statements),
		Findings:    o.validate(result.Statements),
	}
}

// validate runs the balance sheet identity and the cash roll-forward on each
// year, then flags revenue and net income outliers.
func (o *Orchestrator) validate(statements []*xbrl.FinancialStatement) []Finding {
	byYear := make(map[int]*xbrl.FinancialStatement, len(statements))
	for _, s := range statements {
		byYear[s.FiscalYear] = s
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	var out []Finding
	revenue, income := validate.Series{}, validate.Series{}
	for _, y := range years {
		s := byYear[y]
		if v, ok := s.Value("revenue"); ok {
			revenue[y] = v
		}
		if v, ok := s.Value("net_income"); ok {
			income[y] = v
		}

		assets, okA := s.Value("total_assets")
		liabilities, okL := s.Value("total_liabilities")
		equity, okE := s.Value("shareholders_equity")
		if okA && okL && okE {
			c := validate.CheckBalanceSheet(assets, liabilities, equity, o.validation.BalanceSheetTolerance)
			f := Finding{FiscalYear: y, Check: CheckBalanceSheet, Passed: c.Balanced, Gap: c.Gap}
			if !c.Balanced {
				f.Message = fmt.Sprintf("assets differ from liabilities + equity by %.2f%%", c.GapPct)
			}
			out = append(out, f)
		}

		prev, ok := byYear[y-1]
		if !ok {
			continue
		}
		endCash, ok1 := s.Value("cash_and_equivalents")
		begCash, ok2 := prev.Value("cash_and_equivalents")
		cfo, ok3 := s.Value("operating_cash_flow")
		cfi, ok4 := s.Value("investing_cash_flow")
		cff, ok5 := s.Value("financing_cash_flow")
		if ok1 && ok2 && ok3 && ok4 && ok5 {
			tol := o.validation.CashFlowTolerance * math.Abs(endCash)
			c := validate.CheckCashFlow(cfo, cfi, cff, endCash-begCash, tol)
			f := Finding{FiscalYear: y, Check: CheckCashRollForward, Passed: c.Balanced, Gap: c.Gap}
			if !c.Balanced {
				f.Message = fmt.Sprintf("cash moved %.0f but flows sum to %.0f", c.Reported, c.Computed)
			}
			out = append(out, f)
		}
	}

	for _, series := range []struct {
		concept string
		s       validate.Series
	}{{"revenue", revenue}, {"net_income", income}} {
		for _, ol := range series.s.FindOutliers(series.concept, o.validation.OutlierThresholdPct) {
			out = append(out, Finding{
				FiscalYear: ol.Year,
				Check:      CheckOutlier,
				Passed:     false,
				Gap:        ol.ChangePct,
				Message:    ol.Concept + ": " + ol.Reason,
			})
		}
	}
	for i := range out {
		out[i].Gap = finite(out[i].Gap)
	}
	return out
}

// finite maps NaN and ±Inf to 0 so findings always encode as JSON.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// =============================================================================
// BATCH
// =============================================================================

// BatchResult collects a batch run. Datasets keep the input order; failed
// tickers are absent from Datasets and present in Failures.
type BatchResult struct {
	Datasets []*CompanyDataset `json:"datasets"`
	Failures map[string]error  `json:"-"`
}

// Succeeded returns the tickers that completed.
func (b *BatchResult) Succeeded() []string {
	out := make([]string, 0, len(b.Datasets))
	for _, d := range b.Datasets {
		out = append(out, d.Ticker)
	}
	return out
}

// RunBatch runs RunForCompany for every ticker with at most workers in
// flight. Per-company failures are collected; the returned error is non-nil
// only when ctx is done.
func (o *Orchestrator) RunBatch(ctx context.Context, tickers []string, workers int) (*BatchResult, error) {
	if workers <= 0 {
		workers = 1
	}
	seen := make(map[string]bool, len(tickers))
	var unique []string
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		unique = append(unique, t)
	}

	datasets := make([]*CompanyDataset, len(unique))
	failures := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ticker := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ds, err := o.RunForCompany(gctx, ticker)
			if err != nil {
				mu.Lock()
				failures[ticker] = err
				mu.Unlock()
				o.logger.Warn("company failed", zap.String("ticker", ticker), zap.Error(err))
				return nil
			}
			datasets[i] = ds
			return nil
		})
	}
	err := g.Wait()

	res := &BatchResult{Failures: failures}
	for _, ds := range datasets {
		if ds != nil {
			res.Datasets = append(res.Datasets, ds)
		}
	}
	o.logger.Info("batch completed",
		zap.Int("tickers", len(unique)),
		zap.Int("succeeded", len(res.Datasets)),
		zap.Int("failed", len(failures)))
	if err != nil {
		return res, err
	}
	return res, ctx.Err()
}
