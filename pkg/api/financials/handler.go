// Package financials serves reconstructed statements over HTTP.
package financials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"financialreader/pkg/core/analytics"
	"financialreader/pkg/core/ingest"
	"financialreader/pkg/core/pipeline"
	"financialreader/pkg/core/xbrl"
)

// Runner produces a company dataset. *pipeline.Orchestrator satisfies it.
type Runner interface {
	RunForCompany(ctx context.Context, ticker string) (*pipeline.CompanyDataset, error)
	Taxonomy() *xbrl.Taxonomy
}

// DefaultTimeout bounds one pipeline run per request.
const DefaultTimeout = 60 * time.Second

type Handler struct {
	runner  Runner
	logger  *zap.Logger
	timeout time.Duration
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithTimeout(d time.Duration) Option { return func(h *Handler) { h.timeout = d } }

func NewHandler(runner Runner, opts ...Option) *Handler {
	h := &Handler{runner: runner, logger: zap.NewNop(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts:
//
//	GET /healthz
//	GET /api/financials/{ticker}          statements
//	GET /api/financials/{ticker}/table    wide table, one row per year
//	GET /api/financials/{ticker}/metrics  performance metrics and summary
//	GET /api/financials/{ticker}/quality  data quality report
//
// All data routes accept years=N, order=asc|desc and min_quality=0..1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", h.health)
	r.Route("/api/financials/{ticker}", func(r chi.Router) {
		r.Get("/", h.statements)
		r.Get("/table", h.table)
		r.Get("/metrics", h.metrics)
		r.Get("/quality", h.quality)
	})
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// query holds the parsed common query parameters.
type query struct {
	years      int
	order      xbrl.SortOrder
	minQuality float64
}

func parseQuery(r *http.Request) (query, error) {
	q := query{order: xbrl.ParseSortOrder(r.URL.Query().Get("order"))}
	if v := r.URL.Query().Get("years"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return q, errors.New("years must be a positive integer")
		}
		q.years = n
	}
	if v := r.URL.Query().Get("min_quality"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return q, errors.New("min_quality must be between 0 and 1")
		}
		q.minQuality = f
	}
	return q, nil
}

// view is a dataset narrowed by the query.
type view struct {
	ds         *pipeline.CompanyDataset
	statements []*xbrl.FinancialStatement
	q          query
}

// load runs the pipeline and applies the query. It writes the error response
// itself and returns ok=false on failure.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (view, bool) {
	q, err := parseQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return view{}, false
	}
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	if ticker == "" {
		h.writeError(w, http.StatusBadRequest, "ticker is required")
		return view{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	ds, err := h.runner.RunForCompany(ctx, ticker)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("pipeline run failed", zap.String("ticker", ticker), zap.Error(err))
		}
		h.writeError(w, status, err.Error())
		return view{}, false
	}

	// Statements arrive newest first.
	statements := xbrl.FilterByQuality(ds.Result.Statements, q.minQuality)
	if q.years > 0 && len(statements) > q.years {
		statements = statements[:q.years]
	}
	if statements == nil {
		statements = []*xbrl.FinancialStatement{}
	}
	return view{ds: ds, statements: statements, q: q}, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrInvalidCIK):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrTickerNotFound),
		errors.Is(err, ingest.ErrNotFound),
		errors.Is(err, pipeline.ErrNoStatements),
		errors.Is(err, xbrl.ErrNoUSGAAPFacts):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (h *Handler) statements(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}
	statements := v.statements
	if v.q.order == xbrl.Ascending {
		statements = make([]*xbrl.FinancialStatement, len(v.statements))
		for i, s := range v.statements {
			statements[len(v.statements)-1-i] = s
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ticker":       v.ds.Ticker,
		"cik":          v.ds.CIK,
		"company_name": v.ds.CompanyName,
		"statements":   statements,
		"diagnostics":  v.ds.Result.Diagnostics,
	})
}

func (h *Handler) table(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}
	table := xbrl.Project(v.statements, xbrl.ProjectOptions{Order: v.q.order, Taxonomy: h.runner.Taxonomy()})
	h.writeJSON(w, http.StatusOK, table)
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}
	// Growth needs prior years, so compute on the full history and narrow after.
	all := analytics.Calculate(v.ds.Result.Statements)
	keep := make(map[int]bool, len(v.statements))
	for _, s := range v.statements {
		keep[s.FiscalYear] = true
	}
	metrics := make([]analytics.PerformanceMetrics, 0, len(v.statements))
	for _, m := range all {
		if keep[m.FiscalYear] {
			metrics = append(metrics, m)
		}
	}
	if v.q.order == xbrl.Ascending {
		for i, j := 0, len(metrics)-1; i < j; i, j = i+1, j-1 {
			metrics[i], metrics[j] = metrics[j], metrics[i]
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ticker":  v.ds.Ticker,
		"metrics": metrics,
		"summary": analytics.Summarize(metrics),
		"benford": analytics.BenfordStatements(v.statements),
	})
}

func (h *Handler) quality(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}
	report := xbrl.BuildQualityReport(h.runner.Taxonomy(), v.statements, 0)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ticker":   v.ds.Ticker,
		"quality":  report,
		"findings": v.ds.Findings,
	})
}

// writeJSON encodes v before writing the status, so an unencodable body
// becomes a 500 instead of a truncated 200.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Int("status", status), zap.Error(err))
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]string{"error": "response encoding failed"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("write response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
