// Package config provides configuration for the material scraper and
// the query API, loaded from a YAML file with flag/env overrides applied
// by the CLI.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoSuppliers            = errors.New("at least one supplier is required")
	ErrNoEnabledSuppliers     = errors.New("at least one supplier must be enabled")
	ErrSupplierMissingName    = errors.New("supplier name is required")
	ErrSupplierMissingBaseURL = errors.New("supplier base_url is required")
	ErrSupplierInvalidBaseURL = errors.New("supplier base_url must include scheme and host")
	ErrSupplierMissingProduct = errors.New("supplier selectors.product is required")
	ErrNoCategories           = errors.New("at least one category is required")
	ErrInvalidTimeout         = errors.New("http.timeout_ms must be positive")
	ErrInvalidMaxPages        = errors.New("http.max_pages must be positive")
	ErrInvalidMaxRetries      = errors.New("http.max_retries cannot be negative")
	ErrInvalidBackoff         = errors.New("http.retry_backoff_ms cannot be negative")
	ErrBackoffExceedsMax      = errors.New("http.retry_backoff_ms cannot exceed http.retry_backoff_max_ms")
	ErrMissingUserAgent       = errors.New("http.user_agent is required")
	ErrMissingDataDir         = errors.New("output.data_dir is required")
	ErrMissingReportsDir      = errors.New("output.reports_dir is required")
	ErrMissingAPIAddr         = errors.New("api.addr is required")
	ErrMissingDatasetFile     = errors.New("api.dataset_file is required")
)

// Config is the full configuration document.
type Config struct {
	Suppliers   []Supplier   `yaml:"suppliers"`
	Categories  []string     `yaml:"categories"`
	Processing  Processing   `yaml:"data_processing"`
	HTTP        HTTPSettings `yaml:"http"`
	Output      Output       `yaml:"output"`
	API         API          `yaml:"api"`
	MetricsAddr string       `yaml:"metrics_addr"`
	Verbose     bool         `yaml:"verbose"`
}

// Supplier describes one source site and the CSS selectors that locate
// product fields on its category listings.
type Supplier struct {
	Name         string    `yaml:"name"`
	BaseURL      string    `yaml:"base_url"`
	CategoryPath string    `yaml:"category_path"` // printf template with one %s for the category
	Enabled      bool      `yaml:"enabled"`
	Selectors    Selectors `yaml:"selectors"`
}

// Selectors map product fields to CSS selectors relative to the product
// element. URL and Image read href/src attributes; SKUAttr names an
// attribute on the product element itself. Measurements maps a
// measurement field name (width, length, ...) to its selector.
type Selectors struct {
	Product       string            `yaml:"product"`
	Name          string            `yaml:"name"`
	Price         string            `yaml:"price"`
	OriginalPrice string            `yaml:"original_price"`
	Brand         string            `yaml:"brand"`
	URL           string            `yaml:"url"`
	Image         string            `yaml:"image"`
	SKUAttr       string            `yaml:"sku_attr"`
	Description   string            `yaml:"description"`
	Rating        string            `yaml:"rating"`
	NextPage      string            `yaml:"next_page"`
	Measurements  map[string]string `yaml:"measurements"`
}

// Processing holds normalization options.
type Processing struct {
	PriceCurrency    string `yaml:"price_currency"`
	MeasurementUnit  string `yaml:"measurement_unit"`
	RemoveDuplicates bool   `yaml:"remove_duplicates"`
}

// HTTPSettings holds fetch politeness and retry options. Durations are
// milliseconds in YAML; use the accessor methods in code.
type HTTPSettings struct {
	TimeoutMs         int    `yaml:"timeout_ms"`
	DelayMs           int    `yaml:"delay_ms"`
	MaxPages          int    `yaml:"max_pages"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryBackoffMs    int    `yaml:"retry_backoff_ms"`
	RetryBackoffMaxMs int    `yaml:"retry_backoff_max_ms"`
	UserAgent         string `yaml:"user_agent"`
	RespectRobotsTxt  bool   `yaml:"respect_robots_txt"`
}

// Timeout returns the per-request timeout.
func (h HTTPSettings) Timeout() time.Duration { return time.Duration(h.TimeoutMs) * time.Millisecond }

// Delay returns the pause between page fetches.
func (h HTTPSettings) Delay() time.Duration { return time.Duration(h.DelayMs) * time.Millisecond }

// RetryBackoff returns the initial retry backoff.
func (h HTTPSettings) RetryBackoff() time.Duration {
	return time.Duration(h.RetryBackoffMs) * time.Millisecond
}

// RetryBackoffMax returns the backoff ceiling.
func (h HTTPSettings) RetryBackoffMax() time.Duration {
	return time.Duration(h.RetryBackoffMaxMs) * time.Millisecond
}

// Output holds file output locations.
type Output struct {
	DataDir        string `yaml:"data_dir"`
	ReportsDir     string `yaml:"reports_dir"`
	BackupPrevious bool   `yaml:"backup_previous"`
}

// API holds query service options.
type API struct {
	Addr        string   `yaml:"addr"`
	DatasetFile string   `yaml:"dataset_file"`
	CORSOrigins []string `yaml:"cors_origins"`
	CacheSize   int      `yaml:"cache_size"`
}

// DefaultConfig returns conservative defaults. Suppliers carry no
// default: selector specs are site-specific and must come from the
// configuration file.
func DefaultConfig() *Config {
	return &Config{
		Categories: []string{
			"Peinture", "Lavabos", "Toilettes", "Meubles-lavabos",
			"Douches", "Carrelage", "Éviers", "Vanités",
		},
		Processing: Processing{
			PriceCurrency:    "EUR",
			MeasurementUnit:  "cm",
			RemoveDuplicates: true,
		},
		HTTP: HTTPSettings{
			TimeoutMs:         10000,
			DelayMs:           0,
			MaxPages:          50,
			MaxRetries:        2,
			RetryBackoffMs:    200,
			RetryBackoffMaxMs: 2000,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			RespectRobotsTxt:  false,
		},
		Output: Output{
			DataDir:        "output/data",
			ReportsDir:     "output/reports",
			BackupPrevious: true,
		},
		API: API{
			Addr:        ":8000",
			DatasetFile: "output/data/materials.json",
			CORSOrigins: []string{"*"},
			CacheSize:   8,
		},
	}
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// EnabledSuppliers returns the suppliers that will be scraped.
func (c *Config) EnabledSuppliers() []Supplier {
	out := make([]Supplier, 0, len(c.Suppliers))
	for _, s := range c.Suppliers {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Validate ensures the configuration is coherent for a scraping run.
func (c *Config) Validate() error {
	if len(c.Suppliers) == 0 {
		return ErrNoSuppliers
	}
	enabled := 0
	for i, s := range c.Suppliers {
		if err := s.validate(); err != nil {
			return fmt.Errorf("supplier %d (%s): %w", i, s.Name, err)
		}
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoEnabledSuppliers
	}
	if len(c.Categories) == 0 {
		return ErrNoCategories
	}
	if c.HTTP.TimeoutMs <= 0 {
		return ErrInvalidTimeout
	}
	if c.HTTP.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.HTTP.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.HTTP.RetryBackoffMs < 0 || c.HTTP.RetryBackoffMaxMs < 0 {
		return ErrInvalidBackoff
	}
	if c.HTTP.RetryBackoffMaxMs > 0 && c.HTTP.RetryBackoffMs > c.HTTP.RetryBackoffMaxMs {
		return ErrBackoffExceedsMax
	}
	if c.HTTP.UserAgent == "" {
		return ErrMissingUserAgent
	}
	if c.Output.DataDir == "" {
		return ErrMissingDataDir
	}
	if c.Output.ReportsDir == "" {
		return ErrMissingReportsDir
	}
	return nil
}

func (s Supplier) validate() error {
	if s.Name == "" {
		return ErrSupplierMissingName
	}
	if s.BaseURL == "" {
		return ErrSupplierMissingBaseURL
	}
	parsed, err := url.Parse(s.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ErrSupplierInvalidBaseURL
	}
	if s.Selectors.Product == "" {
		return ErrSupplierMissingProduct
	}
	return nil
}

// ValidateAPI ensures the query service configuration is usable.
func (a API) ValidateAPI() error {
	if a.Addr == "" {
		return ErrMissingAPIAddr
	}
	if a.DatasetFile == "" {
		return ErrMissingDatasetFile
	}
	return nil
}
