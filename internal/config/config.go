package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// ScorerConfig configures the optional external ranking service.
type ScorerConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	// TimeoutMS bounds each score call end to end.
	TimeoutMS int `yaml:"timeoutMS,omitempty" validate:"omitempty,min=1"`
	// ConfidenceThreshold is the minimum per-candidate confidence below
	// which a scored result is discarded wholesale.
	ConfidenceThreshold float64 `yaml:"confidenceThreshold,omitempty" validate:"min=0,max=1"`
}

// SchedulerConfig configures the engine.
type SchedulerConfig struct {
	// MaxBumpDepth bounds displacement chains.
	MaxBumpDepth int `yaml:"maxBumpDepth,omitempty" validate:"omitempty,min=1,max=10"`
	// DayStart is the default placement start time, "HH:MM".
	DayStart string `yaml:"dayStart,omitempty" validate:"omitempty,datetime=15:04"`
	// BlackoutRules are RRULE strings for recurring closed days (e.g.
	// FREQ=WEEKLY;BYDAY=SU), checked alongside the locked_day table.
	BlackoutRules []string `yaml:"blackoutRules,omitempty"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL string          `yaml:"databaseURL" validate:"required"`
	Scorer      ScorerConfig    `yaml:"scorer,omitempty"`
	Scheduler   SchedulerConfig `yaml:"scheduler,omitempty"`
	// MetricsAddr, when set, serves /metrics during a run.
	MetricsAddr string `yaml:"metricsAddr,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration for an environment. It
// looks for scheduler_<env>_config.yaml in the current directory first,
// then in the user's home directory.
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(fmt.Sprintf("scheduler_%s_config.yaml", env))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Validate rrule syntax for each blackout rule
	for i, rule := range cfg.Scheduler.BlackoutRules {
		if _, err := rrule.StrToRRule(rule); err != nil {
			return fmt.Errorf("invalid rrule in scheduler.blackoutRules[%d]: %w", i, err)
		}
	}

	return nil
}

// findConfigFile searches for the config file in current directory and home directory
func findConfigFile(configFileName string) (string, error) {
	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}

// DayStartMinute converts the configured DayStart to minutes after
// midnight, defaulting to 09:00.
func (c *Config) DayStartMinute() int {
	if c.Scheduler.DayStart == "" {
		return 9 * 60
	}
	var hh, mm int
	fmt.Sscanf(c.Scheduler.DayStart, "%d:%d", &hh, &mm)
	return hh*60 + mm
}
