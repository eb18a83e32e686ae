// Package config loads runtime settings from a YAML file, a .env file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"financialreader/pkg/core/xbrl"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "config/finreader.yaml"

// Config is the full runtime configuration.
type Config struct {
	SEC      SECConfig      `yaml:"sec"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Export   ExportConfig   `yaml:"export"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type SECConfig struct {
	UserAgent         string        `yaml:"user_agent"`
	BaseURL           string        `yaml:"base_url"`
	TickersURL        string        `yaml:"tickers_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	Timeout           time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	WindowYears      int     `yaml:"window_years"`
	QualityThreshold float64 `yaml:"quality_threshold"`
	Workers          int     `yaml:"workers"`
	RowOrder         string  `yaml:"row_order"`
	KeepRawPoints    bool    `yaml:"keep_raw_points"`
	// TaxonomyFile replaces the built-in concept table when set.
	TaxonomyFile string `yaml:"taxonomy_file"`
}

type StoreConfig struct {
	DatabaseURL string `yaml:"database_url"`
	CacheDir    string `yaml:"cache_dir"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SEC: SECConfig{
			BaseURL:           "https://data.sec.gov",
			TickersURL:        "https://www.sec.gov/files/company_tickers.json",
			RequestsPerSecond: 9,
			CacheTTL:          6 * time.Hour,
			Timeout:           30 * time.Second,
		},
		Pipeline: PipelineConfig{
			WindowYears:      xbrl.DefaultWindowYears,
			QualityThreshold: xbrl.DefaultQualityThreshold,
			Workers:          4,
			RowOrder:         string(xbrl.Descending),
		},
		Store:  StoreConfig{CacheDir: "data/statements"},
		Export: ExportConfig{Dir: "data/exports"},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads .env (if present), then path (if present), then applies
// environment overrides. An empty path means DefaultPath. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overlays FINREADER_* variables (and DATABASE_URL) onto cfg.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, set func(string) error) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		if err := set(v); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("config: %s=%q: %w", key, v, err)
		}
	}

	str("SEC_USER_AGENT", &c.SEC.UserAgent)
	str("FINREADER_SEC_USER_AGENT", &c.SEC.UserAgent)
	str("FINREADER_SEC_BASE_URL", &c.SEC.BaseURL)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("FINREADER_DATABASE_URL", &c.Store.DatabaseURL)
	str("FINREADER_CACHE_DIR", &c.Store.CacheDir)
	str("FINREADER_EXPORT_DIR", &c.Export.Dir)
	str("FINREADER_ADDR", &c.Server.Addr)
	str("FINREADER_LOG_LEVEL", &c.Log.Level)
	str("FINREADER_LOG_FORMAT", &c.Log.Format)
	str("FINREADER_ROW_ORDER", &c.Pipeline.RowOrder)
	str("FINREADER_TAXONOMY_FILE", &c.Pipeline.TaxonomyFile)

	num("FINREADER_SEC_RPS", func(v string) (err error) {
		c.SEC.RequestsPerSecond, err = strconv.ParseFloat(v, 64)
		return err
	})
	num("FINREADER_CACHE_TTL", func(v string) (err error) {
		c.SEC.CacheTTL, err = time.ParseDuration(v)
		return err
	})
	num("FINREADER_WINDOW_YEARS", func(v string) (err error) {
		c.Pipeline.WindowYears, err = strconv.Atoi(v)
		return err
	})
	num("FINREADER_QUALITY_THRESHOLD", func(v string) (err error) {
		c.Pipeline.QualityThreshold, err = strconv.ParseFloat(v, 64)
		return err
	})
	num("FINREADER_WORKERS", func(v string) (err error) {
		c.Pipeline.Workers, err = strconv.Atoi(v)
		return err
	})
	return firstErr
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Pipeline.WindowYears <= 0 {
		return fmt.Errorf("config: pipeline.window_years must be positive, got %d", c.Pipeline.WindowYears)
	}
	if c.Pipeline.QualityThreshold < 0 || c.Pipeline.QualityThreshold > 1 {
		return fmt.Errorf("config: pipeline.quality_threshold must be in [0, 1], got %v", c.Pipeline.QualityThreshold)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("config: pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.SEC.RequestsPerSecond <= 0 || c.SEC.RequestsPerSecond > 10 {
		return fmt.Errorf("config: sec.requests_per_second must be in (0, 10], got %v", c.SEC.RequestsPerSecond)
	}
	return nil
}

// Taxonomy builds the concept registry: the built-in table, or the YAML
// list at Pipeline.TaxonomyFile.
func (c Config) Taxonomy() (*xbrl.Taxonomy, error) {
	if c.Pipeline.TaxonomyFile == "" {
		return xbrl.DefaultTaxonomy(), nil
	}
	return LoadTaxonomy(c.Pipeline.TaxonomyFile)
}

// LoadTaxonomy reads a YAML list of concept definitions.
func LoadTaxonomy(path string) (*xbrl.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read taxonomy %s: %w", path, err)
	}
	var file struct {
		Concepts []xbrl.ConceptDefinition `yaml:"concepts"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse taxonomy %s: %w", path, err)
	}
	return xbrl.NewTaxonomy(file.Concepts)
}
