package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL       = "http://localhost:8000"
	DefaultPollInterval = 2 * time.Second
)

// Config holds everything the client needs to reach the analysis service
// and to keep its local state.
type Config struct {
	APIURL         string        `yaml:"api_url" validate:"required,url"`
	PollInterval   time.Duration `yaml:"poll_interval" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"` // 0 keeps the transport default
	LogFile        string        `yaml:"log_file"`
	ArchivePath    string        `yaml:"archive_path" validate:"required"`
	CacheDir       string        `yaml:"cache_dir" validate:"required"`
}

// DataDir returns ~/.leby, falling back to the working directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".leby"
	}
	return filepath.Join(home, ".leby")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	dir := DataDir()
	return &Config{
		APIURL:       DefaultAPIURL,
		PollInterval: DefaultPollInterval,
		LogFile:      filepath.Join(dir, "leby.log"),
		ArchivePath:  filepath.Join(dir, "transcripts.db"),
		CacheDir:     filepath.Join(dir, "cache"),
	}
}

// DefaultConfigPath is where LoadConfig looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// LoadConfig layers defaults, the YAML file, .env and the environment.
// A missing file at the default location is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Source: "file", Err: err}
		}
	}

	if err := godotenv.Load(); err != nil {
		LogDebug("no .env file loaded: %v", err)
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, &ConfigError{Source: "env", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	LogDebug("loaded config file %s", path)
	return nil
}

func (c *Config) mergeEnv() error {
	if v := os.Getenv("LEBY_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("LEBY_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("LEBY_ARCHIVE"); v != "" {
		c.ArchivePath = v
	}
	if v := os.Getenv("LEBY_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("LEBY_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LEBY_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	if v := os.Getenv("LEBY_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LEBY_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &ConfigError{Source: "validate", Err: err}
	}
	return nil
}
