// Package config handles configuration management for saleswh.
// Configuration is loaded from config files and CLI flags.
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for saleswh.
type Config struct {
	// Connection is the PostgreSQL connection string for the warehouse.
	Connection string `mapstructure:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// ETL holds configuration for the run subcommand.
	ETL ETLConfig `mapstructure:"etl"`

	// Quality holds data-quality bounds applied during transform.
	Quality QualityConfig `mapstructure:"quality"`

	// Export holds configuration for the export subcommand.
	Export ExportConfig `mapstructure:"export"`
}

// ETLConfig holds configuration for a pipeline run.
type ETLConfig struct {
	// Source is the path to the sales CSV export.
	Source string `mapstructure:"source"`

	// BatchSize is the number of fact rows written per transaction.
	BatchSize int `mapstructure:"batch_size"`

	// LoadTimeoutSeconds bounds each batch write; a timed-out batch is
	// reported as failed, not retried.
	LoadTimeoutSeconds int `mapstructure:"load_timeout_seconds"`
}

// QualityConfig holds data-quality bounds.
// Sales outside [MinSales, MaxSales] are logged as warnings; ratings
// outside [RatingMin, RatingMax] are rejected.
type QualityConfig struct {
	MinSales  float64 `mapstructure:"min_sales"`
	MaxSales  float64 `mapstructure:"max_sales"`
	RatingMin float64 `mapstructure:"rating_min"`
	RatingMax float64 `mapstructure:"rating_max"`
}

// ExportConfig holds configuration for warehouse CSV exports.
type ExportConfig struct {
	// Dir is the directory export files are written to.
	Dir string `mapstructure:"dir"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		ETL: ETLConfig{
			BatchSize:          500,
			LoadTimeoutSeconds: 30,
		},
		Quality: QualityConfig{
			MinSales:  0,
			MaxSales:  10000,
			RatingMin: 0,
			RatingMax: 10,
		},
		Export: ExportConfig{
			Dir: "warehouse-export",
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./saleswh.yaml
// 3. ~/.config/saleswh/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("saleswh")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "saleswh"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidateRun checks configuration required for the run command.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ETL.Source == "" {
		return fmt.Errorf("source CSV path is required")
	}
	if c.ETL.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	if c.ETL.LoadTimeoutSeconds < 1 {
		return fmt.Errorf("load_timeout_seconds must be at least 1")
	}
	if c.Quality.RatingMax < c.Quality.RatingMin {
		return fmt.Errorf("rating_max must be >= rating_min")
	}
	if c.Quality.MaxSales < c.Quality.MinSales {
		return fmt.Errorf("max_sales must be >= min_sales")
	}
	return nil
}

// ValidateExport checks configuration required for the export command.
func (c *Config) ValidateExport() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export directory is required")
	}
	return nil
}
