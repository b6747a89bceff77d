package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "scpulse/internal/errors"
)

// DateLayout is the wire format for dates in config and spreadsheets.
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Ingest   IngestConfig   `yaml:"ingest" envconfig:"INGEST"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// PipelineConfig holds the run parameters consumed by the metrics core.
// The reporting period is required; a run must not start without one.
type PipelineConfig struct {
	PeriodStart         string `yaml:"period_start" envconfig:"PERIOD_START" validate:"required"`
	PeriodEnd           string `yaml:"period_end" envconfig:"PERIOD_END" validate:"required"`
	AsOf                string `yaml:"as_of" envconfig:"AS_OF"`
	DefaultLeadTimeDays int    `yaml:"default_lead_time_days" envconfig:"DEFAULT_LEAD_TIME_DAYS" validate:"min=1"`
	OutputDir           string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
}

// IngestConfig contains ingestion adapter configuration
type IngestConfig struct {
	WorkbookPath    string        `yaml:"workbook_path" envconfig:"WORKBOOK_PATH"`
	CatalogBaseURL  string        `yaml:"catalog_base_url" envconfig:"CATALOG_BASE_URL" validate:"url"`
	CatalogDisabled bool          `yaml:"catalog_disabled" envconfig:"CATALOG_DISABLED"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	RequestsPerSec  float64       `yaml:"requests_per_sec" envconfig:"REQUESTS_PER_SEC"`
}

// ServerConfig contains HTTP server configuration for the dashboard
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Load loads configuration from environment variables and an optional
// YAML file. Environment variables take precedence over file values.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = *fileCfg
		}
	}

	if err := envconfig.Process("SCP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills fields neither the environment nor the config
// file set. Precedence stays env > file > default.
func (c *Config) applyDefaults() {
	if c.Pipeline.DefaultLeadTimeDays == 0 {
		c.Pipeline.DefaultLeadTimeDays = 7
	}
	if c.Pipeline.OutputDir == "" {
		c.Pipeline.OutputDir = "data/reports"
	}
	if c.Ingest.WorkbookPath == "" {
		c.Ingest.WorkbookPath = "data/supply_chain.xlsx"
	}
	if c.Ingest.CatalogBaseURL == "" {
		c.Ingest.CatalogBaseURL = "https://fakestoreapi.com"
	}
	if c.Ingest.RequestTimeout == 0 {
		c.Ingest.RequestTimeout = 30 * time.Second
	}
	if c.Ingest.RequestsPerSec == 0 {
		c.Ingest.RequestsPerSec = 5
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/scpulse.log"
	}
}

// validate checks struct tags plus the date fields envconfig cannot
// express. Any failure is a fatal pre-run ConfigError.
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return apperrors.NewConfigError(first.Namespace(), fmt.Sprintf("failed %q validation", first.Tag()))
		}
		return apperrors.NewConfigError("config", err.Error())
	}

	start, err := time.Parse(DateLayout, c.Pipeline.PeriodStart)
	if err != nil {
		return apperrors.NewConfigError("pipeline.period_start", "must be a YYYY-MM-DD date")
	}
	end, err := time.Parse(DateLayout, c.Pipeline.PeriodEnd)
	if err != nil {
		return apperrors.NewConfigError("pipeline.period_end", "must be a YYYY-MM-DD date")
	}
	if end.Before(start) {
		return apperrors.NewConfigError("pipeline.period_end", "must not precede period_start")
	}
	if c.Pipeline.AsOf != "" {
		if _, err := time.Parse(time.RFC3339, c.Pipeline.AsOf); err != nil {
			return apperrors.NewConfigError("pipeline.as_of", "must be an RFC3339 timestamp")
		}
	}
	return nil
}

// Period returns the parsed reporting period. Load guarantees the
// fields parse, so errors here indicate the Config was built by hand.
func (c *Config) Period() (start, end time.Time, err error) {
	start, err = time.Parse(DateLayout, c.Pipeline.PeriodStart)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewConfigError("pipeline.period_start", "must be a YYYY-MM-DD date")
	}
	end, err = time.Parse(DateLayout, c.Pipeline.PeriodEnd)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewConfigError("pipeline.period_end", "must be a YYYY-MM-DD date")
	}
	return start, end, nil
}

// AsOf returns the as-of timestamp for the run, falling back to the
// end of the reporting period when unset. Never reads the clock.
func (c *Config) AsOf() (time.Time, error) {
	if c.Pipeline.AsOf != "" {
		return time.Parse(time.RFC3339, c.Pipeline.AsOf)
	}
	_, end, err := c.Period()
	if err != nil {
		return time.Time{}, err
	}
	return end, nil
}
