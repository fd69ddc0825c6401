package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/ggfleet/pkg/fleet"
	"github.com/openfroyo/ggfleet/pkg/telemetry"
)

// DefaultPath is the configuration file read when --config is not given.
// It is optional.
const DefaultPath = "ggfleet.yaml"

// Environment variables that override the file.
const (
	EnvRegion   = "GGFLEET_REGION"
	EnvProfile  = "GGFLEET_PROFILE"
	EnvJournal  = "GGFLEET_JOURNAL"
	EnvLogLevel = "LOG_LEVEL"
)

// Config is the ggfleet configuration file.
type Config struct {
	AWS       AWSConfig         `yaml:"aws"`
	Deploy    DeployConfig      `yaml:"deploy"`
	Teardown  TeardownConfig    `yaml:"teardown"`
	Journal   JournalConfig     `yaml:"journal"`
	Telemetry *telemetry.Config `yaml:"telemetry"`
}

// AWSConfig selects the account and region of the fleet.
type AWSConfig struct {
	// Region overrides the region of the shared AWS config.
	Region string `yaml:"region"`

	// Profile selects a named profile of the shared AWS config.
	Profile string `yaml:"profile"`

	// MaxAttempts is the SDK retry budget per call. Zero keeps the SDK default.
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0,lte=20"`
}

// DeployConfig is the poll budget of a deployment.
type DeployConfig struct {
	Attempts int           `yaml:"attempts" validate:"gte=1,lte=100"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

// TeardownConfig configures the teardown guard.
type TeardownConfig struct {
	// ProtectedGroups are glob patterns of group names that must never be torn down.
	ProtectedGroups []string `yaml:"protected_groups" validate:"dive,required"`

	// PolicyPaths are extra Rego files evaluated by the guard.
	PolicyPaths []string `yaml:"policy_paths" validate:"dive,required"`
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	// Path of the SQLite database. Empty disables the journal.
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Deploy: DeployConfig{
			Attempts: fleet.DefaultPollAttempts,
			Interval: fleet.DefaultPollInterval,
		},
		Journal: JournalConfig{
			Path: "ggfleet.db",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads the configuration at path on top of the defaults and applies
// environment overrides. A missing file is only an error when path is not
// DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.DefaultConfig()
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvRegion); v != "" {
		c.AWS.Region = v
	}
	if v := getenv(EnvProfile); v != "" {
		c.AWS.Profile = v
	}
	if v := getenv(EnvJournal); v != "" {
		c.Journal.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" && c.Telemetry != nil {
		c.Telemetry.Logging.Level = v
	}
}

// Validate checks struct constraints and the telemetry settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("invalid telemetry configuration: %w", err)
		}
	}
	return nil
}
