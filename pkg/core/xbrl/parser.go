package xbrl

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// PARSER - end-to-end statement reconstruction for one company
// =============================================================================

// Result is the outcome of parsing one company's payload. On structural
// failure Statements is empty and Diagnostics.Reason explains why.
type Result struct {
	CIK         string                `json:"cik"`
	CompanyName string                `json:"company_name"`
	Statements  []*FinancialStatement `json:"statements"`
	Diagnostics Diagnostics           `json:"diagnostics"`
}

// Parser runs Extractor -> Reconciler -> Assembler for a company.
// A Parser holds no per-run state and may be shared between goroutines.
type Parser struct {
	taxonomy      *Taxonomy
	years         int
	now           func() time.Time
	logger        *zap.Logger
	keepRawPoints bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithYears sets the look-back window in years.
func WithYears(years int) Option { return func(p *Parser) { p.years = years } }

// WithClock overrides the clock used for the year window.
func WithClock(now func() time.Time) Option { return func(p *Parser) { p.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(p *Parser) { p.logger = l } }

// WithRawPoints keeps source records on each statement.
func WithRawPoints(keep bool) Option { return func(p *Parser) { p.keepRawPoints = keep } }

// NewParser creates a Parser over tax. A nil tax uses DefaultTaxonomy.
func NewParser(tax *Taxonomy, opts ...Option) *Parser {
	if tax == nil {
		tax = DefaultTaxonomy()
	}
	p := &Parser{
		taxonomy: tax,
		years:    DefaultWindowYears,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Taxonomy returns the parser's taxonomy.
func (p *Parser) Taxonomy() *Taxonomy { return p.taxonomy }

// Parse reconstructs the statements in facts, newest fiscal year first.
// cik may be empty, in which case the payload's CIK is used.
//
// The returned Result is never nil. err is non-nil only for structural
// failures (ErrMalformedPayload, ErrNoUSGAAPFacts).
func (p *Parser) Parse(cik string, facts *CompanyFacts) (*Result, error) {
	res := &Result{CIK: cik, Statements: []*FinancialStatement{}}
	if facts == nil {
		res.Diagnostics.Reason = ErrMalformedPayload.Error()
		return res, ErrMalformedPayload
	}
	if res.CIK == "" && facts.CIK != 0 {
		res.CIK = fmt.Sprintf("%010d", facts.CIK)
	}
	res.CompanyName = facts.EntityName
	if res.CompanyName == "" {
		res.CompanyName = "Unknown"
	}
	log := p.logger.With(zap.String("cik", res.CIK), zap.String("company", res.CompanyName))

	usGAAP, err := facts.USGAAP()
	if err != nil {
		res.Diagnostics.Reason = err.Error()
		log.Warn("structural failure", zap.Error(err))
		return res, fmt.Errorf("cik %s: %w", res.CIK, err)
	}

	extractor := &Extractor{Taxonomy: p.taxonomy, Years: p.years, Now: p.now, Logger: log}
	records, diag := extractor.Extract(usGAAP)
	res.Diagnostics.Merge(diag)

	reconciler := &Reconciler{Taxonomy: p.taxonomy, Logger: log}
	years, rdiag := reconciler.Reconcile(records)
	res.Diagnostics.Merge(rdiag)

	assembler := &Assembler{Taxonomy: p.taxonomy, KeepRawPoints: p.keepRawPoints}
	for i := len(years) - 1; i >= 0; i-- {
		if stmt, ok := assembler.Assemble(res.CIK, res.CompanyName, years[i]); ok {
			res.Statements = append(res.Statements, stmt)
		}
	}

	if len(res.Statements) == 0 {
		res.Diagnostics.Reason = "no extractable facts within window"
		log.Warn("no statements extracted",
			zap.Int("points_seen", res.Diagnostics.PointsSeen),
			zap.Int("unresolved", len(res.Diagnostics.UnresolvedConcepts)))
	} else {
		log.Info("statements extracted",
			zap.Int("statements", len(res.Statements)),
			zap.Int("records", res.Diagnostics.PointsExtracted))
	}

	return res, nil
}

// ParseBytes decodes a raw payload and parses it. Decoding failures are
// reported the same way as missing us-gaap facts.
func (p *Parser) ParseBytes(cik string, payload []byte) (*Result, error) {
	facts, err := DecodeCompanyFacts(payload)
	if err != nil {
		res := &Result{CIK: cik, Statements: []*FinancialStatement{}}
		res.Diagnostics.Reason = err.Error()
		return res, err
	}
	return p.Parse(cik, facts)
}

// Table projects the result's statements.
func (r *Result) Table(tax *Taxonomy, order SortOrder) *Table {
	return Project(r.Statements, ProjectOptions{Order: order, Taxonomy: tax})
}

// Statement returns the statement for fiscalYear.
func (r *Result) Statement(fiscalYear int) (*FinancialStatement, bool) {
	for _, s := range r.Statements {
		if s.FiscalYear == fiscalYear {
			return s, true
		}
	}
	return nil, false
}

// YearKey formats a fiscal year the way exports and the API key it ("FY2024").
func YearKey(year int) string { return "FY" + strconv.Itoa(year) }
