// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < explicit file < env,
// with command-line flags applied last by the CLI layer.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/salesflow/salesflow/pkg/schema"
)

// envPrefix namespaces environment overrides, e.g.
// SALESFLOW_REPORT_OUTPUT_DIR.
const envPrefix = "salesflow"

// Config holds all SalesFlow configuration.
type Config struct {
	Version int `yaml:"version"`

	Input     InputConfig     `yaml:"input"`
	Report    ReportConfig    `yaml:"report"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	S3        S3Config        `yaml:"s3"`
	Watch     WatchConfig     `yaml:"watch"`
}

// InputConfig controls how source files are read and coerced.
type InputConfig struct {
	Format     string         `yaml:"format"`      // csv | xlsx | "" = auto
	Delimiter  string         `yaml:"delimiter"`   // first rune is used
	Sheet      string         `yaml:"sheet"`       // xlsx only
	DateLayout string         `yaml:"date_layout" envconfig:"DATE_LAYOUT"`
	Columns    schema.Mapping `yaml:"columns"`
}

// DelimiterRune returns the configured CSV delimiter, or 0 for the
// default comma.
func (c InputConfig) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return 0
}

// ReportConfig controls artifact generation. Charts and Parquet are
// pointers so a file can switch a default-on artifact off.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	Charts    *bool  `yaml:"charts"`
	Parquet   *bool  `yaml:"parquet"`
}

// ChartsEnabled reports whether chart artifacts should be written.
func (c ReportConfig) ChartsEnabled() bool {
	return c.Charts == nil || *c.Charts
}

// ParquetEnabled reports whether the Parquet export should be written.
func (c ReportConfig) ParquetEnabled() bool {
	return c.Parquet == nil || *c.Parquet
}

// LoggingConfig controls console verbosity. The run log file always
// records at debug level regardless of these switches.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
	Quiet   bool `yaml:"quiet"`
}

// TelemetryConfig controls the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoint    string        `yaml:"endpoint"`
	Insecure    bool          `yaml:"insecure"`
	SampleRatio float64       `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
	Timeout     time.Duration `yaml:"timeout"`
}

// S3Config controls optional artifact publishing.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style" envconfig:"PATH_STYLE"`
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`
}

// WatchConfig controls the drop-directory watcher.
type WatchConfig struct {
	DebounceMS int          `yaml:"debounce_ms" envconfig:"DEBOUNCE_MS"`
	Patterns   []string     `yaml:"patterns"`
	Ledger     LedgerConfig `yaml:"ledger"`
}

// Debounce returns the watch debounce window.
func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// LedgerConfig selects where processed-file records live.
type LedgerConfig struct {
	Backend string      `yaml:"backend"` // memory | redis
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis ledger backend.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Input: InputConfig{
			DateLayout: "2006-01-02",
			Columns:    schema.DefaultMapping(),
		},
		Report: ReportConfig{
			OutputDir: "reports",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRatio: 1.0,
			Timeout:     10 * time.Second,
		},
		S3: S3Config{
			Prefix: "salesflow",
		},
		Watch: WatchConfig{
			DebounceMS: 500,
			Patterns:   []string{"*.csv", "*.csv.gz", "*.xlsx"},
			Ledger: LedgerConfig{
				Backend: "memory",
				Redis: RedisConfig{
					Address: "localhost:6379",
					Prefix:  "salesflow:runs:",
					TTL:     7 * 24 * time.Hour,
				},
			},
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // files that contributed
}

// NewManager creates a manager holding the defaults.
func NewManager() *Manager {
	return &Manager{config: Default()}
}

// Load rebuilds the configuration from every source in priority
// order. explicit, when non-empty, is a file that must exist; the
// standard search paths are allowed to be absent.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range searchPaths() {
		if err := m.loadFile(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("loading %s: %w", path, err)
		}
		m.paths = append(m.paths, path)
	}

	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			return fmt.Errorf("loading %s: %w", explicit, err)
		}
		m.paths = append(m.paths, explicit)
	}

	if err := envconfig.Process(envPrefix, m.config); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

// searchPaths returns the standard config locations, lowest priority
// first.
func searchPaths() []string {
	var paths []string
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/salesflow/config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "salesflow", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "salesflow.yaml"))
	}
	return paths
}

// loadFile merges one YAML file. Unknown keys are rejected so typos
// fail loudly instead of silently keeping defaults.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&partial); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	m.merge(&partial)
	return nil
}

// merge copies set values from src over the current config.
func (m *Manager) merge(src *Config) {
	if src.Version != 0 {
		m.config.Version = src.Version
	}

	if src.Input.Format != "" {
		m.config.Input.Format = src.Input.Format
	}
	if src.Input.Delimiter != "" {
		m.config.Input.Delimiter = src.Input.Delimiter
	}
	if src.Input.Sheet != "" {
		m.config.Input.Sheet = src.Input.Sheet
	}
	if src.Input.DateLayout != "" {
		m.config.Input.DateLayout = src.Input.DateLayout
	}
	if src.Input.Columns.Date != "" {
		m.config.Input.Columns.Date = src.Input.Columns.Date
	}
	if src.Input.Columns.Product != "" {
		m.config.Input.Columns.Product = src.Input.Columns.Product
	}
	if src.Input.Columns.Category != "" {
		m.config.Input.Columns.Category = src.Input.Columns.Category
	}
	if src.Input.Columns.Quantity != "" {
		m.config.Input.Columns.Quantity = src.Input.Columns.Quantity
	}
	if src.Input.Columns.Price != "" {
		m.config.Input.Columns.Price = src.Input.Columns.Price
	}

	if src.Report.OutputDir != "" {
		m.config.Report.OutputDir = src.Report.OutputDir
	}
	if src.Report.Charts != nil {
		m.config.Report.Charts = src.Report.Charts
	}
	if src.Report.Parquet != nil {
		m.config.Report.Parquet = src.Report.Parquet
	}

	if src.Logging.Verbose {
		m.config.Logging.Verbose = true
	}
	if src.Logging.Quiet {
		m.config.Logging.Quiet = true
	}

	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
	if src.Telemetry.Insecure {
		m.config.Telemetry.Insecure = true
	}
	if src.Telemetry.SampleRatio != 0 {
		m.config.Telemetry.SampleRatio = src.Telemetry.SampleRatio
	}
	if src.Telemetry.Timeout != 0 {
		m.config.Telemetry.Timeout = src.Telemetry.Timeout
	}

	if src.S3.Enabled {
		m.config.S3.Enabled = true
	}
	if src.S3.Bucket != "" {
		m.config.S3.Bucket = src.S3.Bucket
	}
	if src.S3.Prefix != "" {
		m.config.S3.Prefix = src.S3.Prefix
	}
	if src.S3.Region != "" {
		m.config.S3.Region = src.S3.Region
	}
	if src.S3.Endpoint != "" {
		m.config.S3.Endpoint = src.S3.Endpoint
	}
	if src.S3.PathStyle {
		m.config.S3.PathStyle = true
	}
	if src.S3.AccessKey != "" {
		m.config.S3.AccessKey = src.S3.AccessKey
	}
	if src.S3.SecretKey != "" {
		m.config.S3.SecretKey = src.S3.SecretKey
	}

	if src.Watch.DebounceMS != 0 {
		m.config.Watch.DebounceMS = src.Watch.DebounceMS
	}
	if len(src.Watch.Patterns) > 0 {
		m.config.Watch.Patterns = src.Watch.Patterns
	}
	if src.Watch.Ledger.Backend != "" {
		m.config.Watch.Ledger.Backend = src.Watch.Ledger.Backend
	}
	if src.Watch.Ledger.Redis.Address != "" {
		m.config.Watch.Ledger.Redis.Address = src.Watch.Ledger.Redis.Address
	}
	if src.Watch.Ledger.Redis.Password != "" {
		m.config.Watch.Ledger.Redis.Password = src.Watch.Ledger.Redis.Password
	}
	if src.Watch.Ledger.Redis.Database != 0 {
		m.config.Watch.Ledger.Redis.Database = src.Watch.Ledger.Redis.Database
	}
	if src.Watch.Ledger.Redis.Prefix != "" {
		m.config.Watch.Ledger.Redis.Prefix = src.Watch.Ledger.Redis.Prefix
	}
	if src.Watch.Ledger.Redis.TTL != 0 {
		m.config.Watch.Ledger.Redis.TTL = src.Watch.Ledger.Redis.TTL
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Apply mutates the current configuration under the manager's lock.
func (m *Manager) Apply(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.config)
}

// Paths returns the files that contributed to the configuration.
func (m *Manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to the user config file and returns
// the path written.
func (m *Manager) Save() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, ".config", "salesflow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "config.yaml")
	return path, os.WriteFile(path, data, 0o644)
}
