// Package config holds the run-wide configuration value object. Tolerances,
// concurrency and endpoints are plain values handed to each component, never
// process-wide mutable state, so they can vary per run and be tested in
// isolation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"fidcetl/internal/errors"
)

// Config is the complete application configuration.
type Config struct {
	QA       QAConfig       `yaml:"qa" envconfig:"QA"`
	Diff     DiffConfig     `yaml:"diff" envconfig:"DIFF"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Fetch    FetchConfig    `yaml:"fetch" envconfig:"FETCH"`
	Export   ExportConfig   `yaml:"export" envconfig:"EXPORT"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// QAConfig configures the rule engine.
type QAConfig struct {
	// Tolerance is the threshold for the divergence flags, expressed as a
	// fraction (0.005 = 0.5 percentage points).
	Tolerance float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gt=0"`
}

// DiffConfig configures the snapshot differ.
type DiffConfig struct {
	Tolerance float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gte=0"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"gte=1,lte=64"`
}

// FetchConfig configures the FNET document client.
type FetchConfig struct {
	SearchURL         string        `yaml:"search_url" envconfig:"SEARCH_URL" validate:"required,url"`
	DownloadURL       string        `yaml:"download_url" envconfig:"DOWNLOAD_URL" validate:"required,url"`
	UserAgent         string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	SearchTimeout     time.Duration `yaml:"search_timeout" envconfig:"SEARCH_TIMEOUT" validate:"gt=0"`
	DownloadTimeout   time.Duration `yaml:"download_timeout" envconfig:"DOWNLOAD_TIMEOUT" validate:"gt=0"`
	DocumentLimit     int           `yaml:"document_limit" envconfig:"DOCUMENT_LIMIT" validate:"gte=1"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"gte=0,lte=10"`
	CacheDir          string        `yaml:"cache_dir" envconfig:"CACHE_DIR"`
}

// ExportConfig configures report export.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// ServerConfig configures the audit API server.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		QA:   QAConfig{Tolerance: 0.005},
		Diff: DiffConfig{Tolerance: 0.005},
		Pipeline: PipelineConfig{
			Concurrency: 4,
		},
		Fetch: FetchConfig{
			SearchURL:         "https://fnet.bmfbovespa.com.br/fnet/publico/pesquisarGerenciadorDocumentosDados",
			DownloadURL:       "https://fnet.bmfbovespa.com.br/fnet/publico/downloadDocumento",
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			SearchTimeout:     10 * time.Second,
			DownloadTimeout:   20 * time.Second,
			DocumentLimit:     200,
			RequestsPerSecond: 0.5,
			MaxRetries:        3,
			CacheDir:          ".cache_fnet",
		},
		Export: ExportConfig{OutputDir: "outputs"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// FIDC_* environment variables, in increasing precedence. It fails with a
// ConfigurationError before any entity is processed.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, &cfg); err != nil {
			return nil, errors.NewConfigurationError("config_file", err)
		}
	}

	if err := envconfig.Process("FIDC", &cfg); err != nil {
		return nil, errors.NewConfigurationError("environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks every parameter and reports the first violation as a
// fatal ConfigurationError.
func (c *Config) Validate() error {
	validate := validator.New()
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
		first := verrs[0]
		return errors.NewConfigurationError(first.Namespace(),
			fmt.Errorf("value %v fails rule %q", first.Value(), first.Tag()))
	}
	return errors.NewConfigurationError("config", err)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
