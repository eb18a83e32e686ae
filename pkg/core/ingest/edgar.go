// Package ingest fetches XBRL company facts and filing indexes from SEC EDGAR.
// API documentation: https://www.sec.gov/edgar/sec-api-documentation
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"financialreader/pkg/core/xbrl"
)

const (
	DefaultBaseURL    = "https://data.sec.gov"
	DefaultTickersURL = "https://www.sec.gov/files/company_tickers.json"

	companyFactsPath = "/api/xbrl/companyfacts/CIK%s.json"
	submissionsPath  = "/submissions/CIK%s.json"
	filingURL        = "https://www.sec.gov/Archives/edgar/data/%s/%s/%s"

	// SEC allows 10 requests per second per client; stay under it.
	DefaultRequestsPerSecond = 9.0
	DefaultCacheTTL          = 6 * time.Hour
)

var (
	ErrMissingUserAgent = eris.New("ingest: SEC requires a User-Agent with contact details")
	ErrNotFound         = eris.New("ingest: resource not found")
	ErrTickerNotFound   = eris.New("ingest: ticker not found")
	ErrInvalidCIK       = eris.New("ingest: invalid CIK")
)

// =============================================================================
// SEC EDGAR DATA TYPES
// =============================================================================

// CompanyInfo is the subset of the submissions response the pipeline uses.
type CompanyInfo struct {
	CIK            string      `json:"cik"`
	Name           string      `json:"name"`
	EntityType     string      `json:"entityType"`
	SIC            string      `json:"sic"`
	SICDescription string      `json:"sicDescription"`
	FiscalYearEnd  string      `json:"fiscalYearEnd"` // MMDD
	Tickers        []string    `json:"tickers"`
	Exchanges      []string    `json:"exchanges"`
	Index          filingIndex `json:"filings"`
}

type filingIndex struct {
	Recent recentFilings `json:"recent"`
}

// recentFilings holds the parallel arrays of the submissions response.
type recentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// Filing is one row of the submissions index.
type Filing struct {
	AccessionNumber string `json:"accession_number"`
	FilingDate      string `json:"filing_date"`
	ReportDate      string `json:"report_date"`
	Form            string `json:"form"`
	PrimaryDocument string `json:"primary_document"`
	URL             string `json:"url"`
}

// TickerEntry is one row of company_tickers.json.
type TickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Config configures an EDGARClient. Zero values fall back to the defaults.
type Config struct {
	UserAgent         string
	BaseURL           string
	TickersURL        string
	RequestsPerSecond float64
	CacheTTL          time.Duration
	Timeout           time.Duration
}

// EDGARClient is a rate-limited, caching SEC EDGAR client. It is safe for
// concurrent use; all goroutines share one limiter.
type EDGARClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
	logger     *zap.Logger
}

// ClientOption customizes an EDGARClient.
type ClientOption func(*EDGARClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption { return func(e *EDGARClient) { e.httpClient = c } }

// WithCache replaces the response cache. A nil cache disables caching.
func WithCache(c Cache) ClientOption { return func(e *EDGARClient) { e.cache = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption { return func(e *EDGARClient) { e.logger = l } }

// NewEDGARClient creates a client. cfg.UserAgent is mandatory.
func NewEDGARClient(cfg Config, opts ...ClientOption) (*EDGARClient, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, ErrMissingUserAgent
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TickersURL == "" {
		cfg.TickersURL = DefaultTickersURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &EDGARClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:      NewMemoryCache(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PadCIK normalizes a CIK to the 10-digit zero-padded form EDGAR URLs use.
func PadCIK(cik string) (string, error) {
	cik = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(cik)), "CIK")
	if cik == "" {
		return "", eris.Wrap(ErrInvalidCIK, "empty")
	}
	n, err := strconv.ParseUint(cik, 10, 64)
	if err != nil || n == 0 || n > 9999999999 {
		return "", eris.Wrapf(ErrInvalidCIK, "%q", cik)
	}
	return fmt.Sprintf("%010d", n), nil
}

// FetchCompanyFacts downloads and decodes the company facts payload for cik.
func (c *EDGARClient) FetchCompanyFacts(ctx context.Context, cik string) (*xbrl.CompanyFacts, error) {
	padded, err := PadCIK(cik)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, c.cfg.BaseURL+fmt.Sprintf(companyFactsPath, padded))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch company facts for CIK %s", padded)
	}
	facts, err := xbrl.DecodeCompanyFacts(body)
	if err != nil {
		return nil, eris.Wrapf(err, "decode company facts for CIK %s", padded)
	}
	return facts, nil
}

// FetchCompanyFactsRaw returns the undecoded payload, for archiving.
func (c *EDGARClient) FetchCompanyFactsRaw(ctx context.Context, cik string) ([]byte, error) {
	padded, err := PadCIK(cik)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, c.cfg.BaseURL+fmt.Sprintf(companyFactsPath, padded))
}

// FetchCompanyInfo downloads the submissions index for cik.
func (c *EDGARClient) FetchCompanyInfo(ctx context.Context, cik string) (*CompanyInfo, error) {
	padded, err := PadCIK(cik)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, c.cfg.BaseURL+fmt.Sprintf(submissionsPath, padded))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch submissions for CIK %s", padded)
	}
	var info CompanyInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, eris.Wrapf(err, "decode submissions for CIK %s", padded)
	}
	if info.CIK == "" {
		info.CIK = padded
	}
	return &info, nil
}

// Filings returns rows of info's index whose form is in forms (all when
// forms is empty), newest first as published. limit <= 0 means no limit.
func (info *CompanyInfo) Filings(forms []string, limit int) []Filing {
	want := make(map[string]bool, len(forms))
	for _, f := range forms {
		want[f] = true
	}
	r := info.Index.Recent
	cik := strings.TrimLeft(info.CIK, "0")

	var out []Filing
	for i := range r.AccessionNumber {
		if i >= len(r.Form) || i >= len(r.FilingDate) {
			break
		}
		if len(want) > 0 && !want[r.Form[i]] {
			continue
		}
		f := Filing{AccessionNumber: r.AccessionNumber[i], FilingDate: r.FilingDate[i], Form: r.Form[i]}
		if i < len(r.ReportDate) {
			f.ReportDate = r.ReportDate[i]
		}
		if i < len(r.PrimaryDocument) {
			f.PrimaryDocument = r.PrimaryDocument[i]
			f.URL = fmt.Sprintf(filingURL, cik, strings.ReplaceAll(f.AccessionNumber, "-", ""), f.PrimaryDocument)
		}
		out = append(out, f)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Tickers downloads the ticker -> CIK mapping, keyed by upper-case ticker.
func (c *EDGARClient) Tickers(ctx context.Context) (map[string]TickerEntry, error) {
	body, err := c.get(ctx, c.cfg.TickersURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetch ticker mapping")
	}
	// Shape: {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
	var raw map[string]TickerEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "decode ticker mapping")
	}
	out := make(map[string]TickerEntry, len(raw))
	for _, e := range raw {
		out[strings.ToUpper(e.Ticker)] = e
	}
	return out, nil
}

// LookupCIK resolves a ticker to a padded CIK. Inputs that already look
// like a CIK are padded and returned without a network call.
func (c *EDGARClient) LookupCIK(ctx context.Context, ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if padded, err := PadCIK(ticker); err == nil {
		return padded, nil
	}
	tickers, err := c.Tickers(ctx)
	if err != nil {
		return "", err
	}
	e, ok := tickers[ticker]
	if !ok {
		return "", eris.Wrapf(ErrTickerNotFound, "%s", ticker)
	}
	return fmt.Sprintf("%010d", e.CIK), nil
}

// get performs a rate-limited GET, serving repeated URLs from the cache.
func (c *EDGARClient) get(ctx context.Context, url string) ([]byte, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(url); ok {
			c.logger.Debug("edgar cache hit", zap.String("url", url))
			return body, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	c.logger.Debug("edgar request",
		zap.String("url", url), zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "GET %s", url)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("GET %s: SEC returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", url)
	}
	if c.cache != nil {
		c.cache.Set(url, body, c.cfg.CacheTTL)
	}
	return body, nil
}
