package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"financialreader/pkg/core/xbrl"
)

const statementsTable = "financial_statements"

// ErrNotFound is returned by Load when no statements are stored for a CIK.
var ErrNotFound = eris.New("store: statements not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var recordColumns = []string{
	"cik", "ticker", "company_name", "fiscal_year", "form_type",
	"filed_date", "period_end", "data_quality_score", "data", "updated_at",
}

// Record is one stored fiscal year.
type Record struct {
	CIK         string                   `json:"cik"`
	Ticker      string                   `json:"ticker"`
	CompanyName string                   `json:"company_name"`
	FiscalYear  int                      `json:"fiscal_year"`
	FormType    string                   `json:"form_type"`
	FiledDate   string                   `json:"filed_date"`
	PeriodEnd   string                   `json:"period_end"`
	Quality     float64                  `json:"data_quality_score"`
	Statement   *xbrl.FinancialStatement `json:"statement"`
	SavedAt     time.Time                `json:"saved_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	CIK        string
	Ticker     string
	FromYear   int
	ToYear     int
	MinQuality float64
	Limit      int
}

func (f Filter) match(r Record) bool {
	switch {
	case f.CIK != "" && r.CIK != f.CIK:
		return false
	case f.Ticker != "" && !strings.EqualFold(r.Ticker, f.Ticker):
		return false
	case f.FromYear > 0 && r.FiscalYear < f.FromYear:
		return false
	case f.ToYear > 0 && r.FiscalYear > f.ToYear:
		return false
	case f.MinQuality > 0 && r.Quality < f.MinQuality:
		return false
	}
	return true
}

// StatementRepo stores statements in Postgres when a pool is configured and
// in dir otherwise. With both, writes go to both and reads use the database.
type StatementRepo struct {
	pool   *pgxpool.Pool
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*StatementRepo)

func WithLogger(l *zap.Logger) Option {
	return func(r *StatementRepo) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the SavedAt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *StatementRepo) { r.now = now }
}

// DefaultDir is the file store used when neither a pool nor a dir is given.
var DefaultDir = filepath.Join(".cache", "statements")

func NewStatementRepo(pool *pgxpool.Pool, dir string, opts ...Option) *StatementRepo {
	if pool == nil && dir == "" {
		dir = DefaultDir
	}
	r := &StatementRepo{pool: pool, dir: dir, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save upserts one record per statement, keyed by CIK and fiscal year.
func (r *StatementRepo) Save(ctx context.Context, ticker string, statements []*xbrl.FinancialStatement) error {
	records := make([]Record, 0, len(statements))
	for _, s := range statements {
		if s == nil {
			continue
		}
		records = append(records, Record{
			CIK:         s.CIK,
			Ticker:      strings.ToUpper(ticker),
			CompanyName: s.CompanyName,
			FiscalYear:  s.FiscalYear,
			FormType:    s.FormType,
			FiledDate:   s.FiledDate,
			PeriodEnd:   s.PeriodEnd,
			Quality:     s.DataQualityScore,
			Statement:   s,
			SavedAt:     r.now().UTC(),
		})
	}
	if len(records) == 0 {
		return nil
	}

	if r.pool != nil {
		if err := r.saveDB(ctx, records); err != nil {
			return err
		}
	}
	if r.dir != "" {
		if err := r.saveFiles(records); err != nil {
			return err
		}
	}
	r.logger.Debug("statements saved",
		zap.String("cik", records[0].CIK),
		zap.Int("years", len(records)),
		zap.Bool("db", r.pool != nil))
	return nil
}

// Load returns every stored statement for cik, newest fiscal year first.
func (r *StatementRepo) Load(ctx context.Context, cik string) ([]*xbrl.FinancialStatement, error) {
	records, err := r.List(ctx, Filter{CIK: cik})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "cik %s", cik)
	}
	out := make([]*xbrl.FinancialStatement, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Statement)
	}
	return out, nil
}

// List returns matching records ordered by CIK, then fiscal year descending.
func (r *StatementRepo) List(ctx context.Context, f Filter) ([]Record, error) {
	if r.pool != nil {
		return r.listDB(ctx, f)
	}
	return r.listFiles(f)
}

// =============================================================================
// Postgres
// =============================================================================

func upsertQuery(rec Record, data []byte) (string, []any, error) {
	return psql.Insert(statementsTable).
		Columns(recordColumns...).
		Values(rec.CIK, rec.Ticker, rec.CompanyName, rec.FiscalYear, rec.FormType,
			rec.FiledDate, rec.PeriodEnd, rec.Quality, data, rec.SavedAt).
		Suffix(`ON CONFLICT (cik, fiscal_year) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			company_name = EXCLUDED.company_name,
			form_type = EXCLUDED.form_type,
			filed_date = EXCLUDED.filed_date,
			period_end = EXCLUDED.period_end,
			data_quality_score = EXCLUDED.data_quality_score,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
}

func listQuery(f Filter) (string, []any, error) {
	q := psql.Select(recordColumns...).From(statementsTable)
	if f.CIK != "" {
		q = q.Where(sq.Eq{"cik": f.CIK})
	}
	if f.Ticker != "" {
		q = q.Where(sq.Eq{"ticker": strings.ToUpper(f.Ticker)})
	}
	if f.FromYear > 0 {
		q = q.Where(sq.GtOrEq{"fiscal_year": f.FromYear})
	}
	if f.ToYear > 0 {
		q = q.Where(sq.LtOrEq{"fiscal_year": f.ToYear})
	}
	if f.MinQuality > 0 {
		q = q.Where(sq.GtOrEq{"data_quality_score": f.MinQuality})
	}
	q = q.OrderBy("cik", "fiscal_year DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q.ToSql()
}

func (r *StatementRepo) saveDB(ctx context.Context, records []Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: begin")
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		data, err := json.Marshal(rec.Statement)
		if err != nil {
			return eris.Wrapf(err, "store: marshal FY%d", rec.FiscalYear)
		}
		query, args, err := upsertQuery(rec, data)
		if err != nil {
			return eris.Wrap(err, "store: build upsert")
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return eris.Wrapf(err, "store: upsert cik %s FY%d", rec.CIK, rec.FiscalYear)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: commit")
	}
	return nil
}

func (r *StatementRepo) listDB(ctx context.Context, f Filter) ([]Record, error) {
	query, args, err := listQuery(f)
	if err != nil {
		return nil, eris.Wrap(err, "store: build list")
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec  Record
			data []byte
		)
		if err := rows.Scan(&rec.CIK, &rec.Ticker, &rec.CompanyName, &rec.FiscalYear, &rec.FormType,
			&rec.FiledDate, &rec.PeriodEnd, &rec.Quality, &data, &rec.SavedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan")
		}
		rec.Statement = &xbrl.FinancialStatement{}
		if err := json.Unmarshal(data, rec.Statement); err != nil {
			return nil, eris.Wrapf(err, "store: decode cik %s FY%d", rec.CIK, rec.FiscalYear)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: rows")
	}
	return out, nil
}

// =============================================================================
// File fallback: <dir>/<cik>/<fiscal_year>.json
// =============================================================================

func (r *StatementRepo) recordPath(cik string, year int) string {
	return filepath.Join(r.dir, cik, strconv.Itoa(year)+".json")
}

func (r *StatementRepo) saveFiles(records []Record) error {
	for _, rec := range records {
		path := r.recordPath(rec.CIK, rec.FiscalYear)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return eris.Wrap(err, "store: create dir")
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return eris.Wrapf(err, "store: marshal FY%d", rec.FiscalYear)
		}
		// Write then rename so readers never see a partial file.
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return eris.Wrapf(err, "store: write %s", path)
		}
		if err := os.Rename(tmp, path); err != nil {
			return eris.Wrapf(err, "store: rename %s", path)
		}
	}
	return nil
}

func (r *StatementRepo) listFiles(f Filter) ([]Record, error) {
	ciks := []string{f.CIK}
	if f.CIK == "" {
		entries, err := os.ReadDir(r.dir)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "store: read %s", r.dir)
		}
		ciks = ciks[:0]
		for _, e := range entries {
			if e.IsDir() {
				ciks = append(ciks, e.Name())
			}
		}
	}

	var out []Record
	for _, cik := range ciks {
		files, err := os.ReadDir(filepath.Join(r.dir, cik))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "store: read cik %s", cik)
		}
		for _, file := range files {
			if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
				continue
			}
			rec, err := loadRecord(filepath.Join(r.dir, cik, file.Name()))
			if err != nil {
				r.logger.Warn("skipping unreadable record", zap.String("file", file.Name()), zap.Error(err))
				continue
			}
			if f.match(rec) {
				out = append(out, rec)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CIK != out[j].CIK {
			return out[i].CIK < out[j].CIK
		}
		return out[i].FiscalYear > out[j].FiscalYear
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func loadRecord(path string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	if rec.Statement == nil {
		return rec, eris.New("record has no statement")
	}
	return rec, nil
}
