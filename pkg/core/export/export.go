// Package export writes projected tables and analytics to disk as versioned
// datasets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"financialreader/pkg/core/analytics"
	"financialreader/pkg/core/xbrl"
)

// IndexFile is the dataset index kept at the root of the export directory.
const IndexFile = "versions.json"

// ErrNoVersions is returned by Latest when nothing has been exported.
var ErrNoVersions = eris.New("export: no dataset versions")

// Dataset describes one export run.
type Dataset struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	CIK         string    `json:"cik"`
	CompanyName string    `json:"company_name"`
	CreatedAt   time.Time `json:"created_at"`
	Dir         string    `json:"dir"`
	Files       []string  `json:"files"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	Years       []int     `json:"years"`
	AvgQuality  float64   `json:"avg_data_quality_score"`
}

// Bundle is everything one company run produces.
type Bundle struct {
	Ticker  string
	Result  *xbrl.Result
	Table   *xbrl.Table
	Metrics []analytics.PerformanceMetrics
	Summary *analytics.Summary
	Quality *xbrl.QualityReport
	Benford *analytics.BenfordResult
}

// Exporter writes under Dir. It is safe for concurrent use within one process.
type Exporter struct {
	Dir string

	mu     sync.Mutex
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

type Option func(*Exporter)

func WithClock(now func() time.Time) Option { return func(e *Exporter) { e.now = now } }

// WithIDs overrides dataset id generation.
func WithIDs(newID func() string) Option { return func(e *Exporter) { e.newID = newID } }

func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(dir string, opts ...Option) *Exporter {
	e := &Exporter{Dir: dir, now: time.Now, newID: uuid.NewString, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EncodeCSV writes t with the metadata columns first. Unreported values are
// empty cells.
func EncodeCSV(w io.Writer, t *xbrl.Table) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), xbrl.MetaColumns...), t.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec := []string{
			r.CIK,
			r.CompanyName,
			strconv.Itoa(r.FiscalYear),
			r.PeriodEnd,
			r.FormType,
			strconv.FormatFloat(r.DataQualityScore, 'f', -1, 64),
		}
		for _, c := range t.Columns {
			if v := r.Values[c]; v != nil {
				rec = append(rec, strconv.FormatFloat(*v, 'f', -1, 64))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes t to path, creating parent directories.
func (e *Exporter) WriteCSV(path string, t *xbrl.Table) error {
	return writeFile(path, func(w io.Writer) error { return EncodeCSV(w, t) })
}

// WriteJSON writes v to path as indented JSON.
func (e *Exporter) WriteJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// Export writes a new dataset version under Dir/<TICKER>/<id>/ and appends
// it to the index.
func (e *Exporter) Export(b Bundle) (*Dataset, error) {
	if b.Table == nil {
		return nil, eris.New("export: bundle has no table")
	}
	ticker := strings.ToUpper(strings.TrimSpace(b.Ticker))
	if ticker == "" {
		return nil, eris.New("export: bundle has no ticker")
	}

	ds := &Dataset{
		ID:        e.newID(),
		Ticker:    ticker,
		CreatedAt: e.now().UTC(),
		Rows:      len(b.Table.Rows),
		Columns:   len(xbrl.MetaColumns) + len(b.Table.Columns),
		Years:     b.Table.Years(),
	}
	ds.Dir = filepath.Join(e.Dir, ticker, ds.ID)
	if b.Result != nil {
		ds.CIK, ds.CompanyName = b.Result.CIK, b.Result.CompanyName
	}
	if b.Quality != nil {
		ds.AvgQuality = b.Quality.AvgDataQualityScore
	}

	type file struct {
		name  string
		write func(string) error
	}
	files := []file{
		{"financials.csv", func(p string) error { return e.WriteCSV(p, b.Table) }},
		{"financials.json", func(p string) error { return e.WriteJSON(p, b.Table) }},
	}
	if b.Result != nil {
		files = append(files, file{"statements.json", func(p string) error { return e.WriteJSON(p, b.Result) }})
	}
	if b.Metrics != nil {
		files = append(files, file{"metrics.json", func(p string) error {
			return e.WriteJSON(p, struct {
				Metrics []analytics.PerformanceMetrics `json:"metrics"`
				Summary *analytics.Summary             `json:"summary,omitempty"`
				Benford *analytics.BenfordResult       `json:"benford,omitempty"`
			}{b.Metrics, b.Summary, b.Benford})
		}})
	}
	if b.Quality != nil {
		files = append(files, file{"quality.json", func(p string) error { return e.WriteJSON(p, b.Quality) }})
	}
	for _, f := range files {
		if err := f.write(filepath.Join(ds.Dir, f.name)); err != nil {
			return nil, eris.Wrapf(err, "export: write %s", f.name)
		}
		ds.Files = append(ds.Files, f.name)
	}

	if err := e.appendIndex(*ds); err != nil {
		return nil, err
	}
	e.logger.Info("dataset exported",
		zap.String("ticker", ticker),
		zap.String("id", ds.ID),
		zap.Int("rows", ds.Rows),
		zap.String("dir", ds.Dir))
	return ds, nil
}

// Versions lists every exported dataset, oldest first.
func (e *Exporter) Versions() ([]Dataset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readIndex()
}

// Latest returns the newest dataset for ticker, or for any ticker when empty.
func (e *Exporter) Latest(ticker string) (*Dataset, error) {
	versions, err := e.Versions()
	if err != nil {
		return nil, err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if ticker == "" || strings.EqualFold(versions[i].Ticker, ticker) {
			return &versions[i], nil
		}
	}
	return nil, ErrNoVersions
}

func (e *Exporter) readIndex() ([]Dataset, error) {
	data, err := os.ReadFile(filepath.Join(e.Dir, IndexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "export: read index")
	}
	var versions []Dataset
	if err := json.Unmarshal(data, &versions); err != nil {
		return nil, eris.Wrap(err, "export: parse index")
	}
	sort.SliceStable(versions, func(i, j int) bool { return versions[i].CreatedAt.Before(versions[j].CreatedAt) })
	return versions, nil
}

func (e *Exporter) appendIndex(ds Dataset) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	versions, err := e.readIndex()
	if err != nil {
		return err
	}
	versions = append(versions, ds)
	if err := e.WriteJSON(filepath.Join(e.Dir, IndexFile), versions); err != nil {
		return eris.Wrap(err, "export: write index")
	}
	return nil
}

// writeFile writes through a temp file and renames it into place.
func writeFile(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
