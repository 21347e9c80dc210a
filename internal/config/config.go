package config

import (
	"os"
	"strconv"

	"expstat/domain/experiment"
	"expstat/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Engine EngineConfig
	Server ServerConfig
	Report ReportConfig
}

// EngineConfig holds the statistical engine thresholds. Every field has a
// default and every field is overridable per call at the engine boundary;
// this is just the process-wide baseline.
type EngineConfig struct {
	Alpha              float64
	Power              float64
	SRMThreshold       float64
	SeverityMultiplier float64
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// ReportConfig holds report artifact settings
type ReportConfig struct {
	Dir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Engine: EngineConfig{
			Alpha:              envFloat("EXPERIMENT_ALPHA", experiment.DefaultAlpha),
			Power:              envFloat("EXPERIMENT_POWER", experiment.DefaultPower),
			SRMThreshold:       envFloat("SRM_THRESHOLD", experiment.DefaultSRMThreshold),
			SeverityMultiplier: envFloat("GUARDRAIL_SEVERITY_MULTIPLIER", experiment.DefaultSeverityMultiplier),
		},
		Server: ServerConfig{
			Port: envString("SERVER_PORT", "8080"),
		},
		Report: ReportConfig{
			Dir: envString("REPORT_DIR", "artifacts"),
		},
	}

	if err := validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validate(config *Config) error {
	if config.Engine.Alpha <= 0 || config.Engine.Alpha >= 1 {
		return errors.ConfigInvalid("EXPERIMENT_ALPHA must be in (0,1)")
	}
	if config.Engine.Power <= 0 || config.Engine.Power >= 1 {
		return errors.ConfigInvalid("EXPERIMENT_POWER must be in (0,1)")
	}
	if config.Engine.SRMThreshold <= 0 || config.Engine.SRMThreshold >= 1 {
		return errors.ConfigInvalid("SRM_THRESHOLD must be in (0,1)")
	}
	if config.Engine.SeverityMultiplier <= 0 {
		return errors.ConfigInvalid("GUARDRAIL_SEVERITY_MULTIPLIER must be positive")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("SERVER_PORT must not be empty")
	}
	return nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
