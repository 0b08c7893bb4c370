// Package config loads glucowallet settings from a YAML file with an
// environment-variable fallback, and validates them before anything touches
// the network.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned when no usable LibreLinkUp
// username/password pair is configured. The run aborts before any network
// call is made.
var ErrMissingCredentials = errors.New("config: LibreLinkUp username and password are required")

const defaultCSVPath = "glucose_data.csv"

var validate = validator.New()

// Config is the full application configuration.
type Config struct {
	LibreView LibreViewConfig `yaml:"libre-linkup"`

	// Influx is optional; when nil the time-series sink is skipped.
	Influx *InfluxConfig `yaml:"influxdb"`

	CSVPath   string `yaml:"csv_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// LibreViewConfig carries the vendor credentials. Host is overridable for
// tests and regional API hosts.
type LibreViewConfig struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
}

// InfluxConfig carries the time-series sink settings. The block is
// all-or-nothing: once present, every field is required.
type InfluxConfig struct {
	URL    string `yaml:"url" validate:"required,url"`
	Token  string `yaml:"token" validate:"required"`
	Org    string `yaml:"org" validate:"required"`
	Bucket string `yaml:"bucket" validate:"required"`
}

// DefaultPath returns the conventional config file location,
// ~/.config/glucowallet/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "glucowallet", "config.yaml")
}

// Load reads configuration from the given YAML file, falling back to
// environment variables (GLUCOWALLET_*) when the file does not exist. An
// empty path means DefaultPath. A .env file is honored for the environment
// fallback.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.Printf("INFO: no config file at %s, trying environment variables", path)
		cfg = fromEnvironment()
	default:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromEnvironment assembles a Config from GLUCOWALLET_* variables. The influx
// block is only materialized when its URL is set.
func fromEnvironment() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: no .env file found or error loading it: %v", err)
	}

	cfg := &Config{
		LibreView: LibreViewConfig{
			Host:     os.Getenv("GLUCOWALLET_LINKUP_HOST"),
			Username: os.Getenv("GLUCOWALLET_LINKUP_USERNAME"),
			Password: os.Getenv("GLUCOWALLET_LINKUP_PASSWORD"),
		},
		CSVPath:   os.Getenv("GLUCOWALLET_CSV_PATH"),
		LogLevel:  os.Getenv("GLUCOWALLET_LOG_LEVEL"),
		LogFormat: os.Getenv("GLUCOWALLET_LOG_FORMAT"),
	}

	if url := os.Getenv("GLUCOWALLET_INFLUXDB_URL"); url != "" {
		cfg.Influx = &InfluxConfig{
			URL:    url,
			Token:  os.Getenv("GLUCOWALLET_INFLUXDB_TOKEN"),
			Org:    os.Getenv("GLUCOWALLET_INFLUXDB_ORG"),
			Bucket: os.Getenv("GLUCOWALLET_INFLUXDB_BUCKET"),
		}
	}

	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.CSVPath == "" {
		cfg.CSVPath = defaultCSVPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
}

// Validate checks the assembled configuration. Missing credentials are
// reported as ErrMissingCredentials so callers can tell the fatal-abort case
// apart from other configuration problems.
func (c *Config) Validate() error {
	if c.LibreView.Username == "" || c.LibreView.Password == "" {
		return ErrMissingCredentials
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
