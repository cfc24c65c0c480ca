package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "STRATA_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of DefaultConfig, applies defaults to
// the fields left zero and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention STRATA_SECTION_FIELD (e.g., STRATA_ARCHIVE_RETENTION_PERIOD).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format STRATA_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Archive overrides. "none" unsets the retention period.
	if val := os.Getenv(EnvPrefix + "ARCHIVE_RETENTION_PERIOD"); val != "" {
		if strings.EqualFold(val, "none") {
			cfg.Archive.RetentionPeriod = nil
		} else if i, err := strconv.Atoi(val); err == nil {
			cfg.Archive.RetentionPeriod = &i
		}
	}
	envString("ARCHIVE_DATE_CRITERION", &cfg.Archive.DateCriterion)
	envString("ARCHIVE_BASE_PATH", &cfg.Archive.ArchiveBasePath)
	envInt("ARCHIVE_PREFETCH_LIMIT", &cfg.Archive.PrefetchLimit)
	envInt("ARCHIVE_PRIORITY", &cfg.Archive.Priority)
	envInt("ARCHIVE_CHUNK_SIZE", &cfg.Archive.ChunkSize)
	envString("ARCHIVE_STRATEGY", &cfg.Archive.Strategy)
	envString("ARCHIVE_SCHEDULE", &cfg.Archive.Schedule)

	// Store overrides
	envString("STORE_BACKEND", &cfg.Store.Backend)
	envString("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	envString("STORE_POSTGRES_DSN", &cfg.Store.Postgres.DSN)

	// Queue overrides
	envBool("QUEUE_ENABLED", &cfg.Queue.Enabled)
	envString("QUEUE_BACKEND", &cfg.Queue.Backend)
	envString("QUEUE_SQLITE_PATH", &cfg.Queue.SQLitePath)
	envInt("QUEUE_WORKERS", &cfg.Queue.Workers)
	envDuration("QUEUE_POLL_INTERVAL", &cfg.Queue.PollInterval)

	// Export overrides
	envBool("EXPORT_PRETTY", &cfg.Export.Pretty)
	envBool("EXPORT_S3_ENABLED", &cfg.Export.S3.Enabled)
	envString("EXPORT_S3_BUCKET", &cfg.Export.S3.Bucket)
	envString("EXPORT_S3_REGION", &cfg.Export.S3.Region)
	envString("EXPORT_S3_ENDPOINT", &cfg.Export.S3.Endpoint)
	envString("EXPORT_S3_PREFIX", &cfg.Export.S3.Prefix)
	envString("EXPORT_S3_ACCESS_KEY_ID", &cfg.Export.S3.AccessKeyID)
	envString("EXPORT_S3_SECRET_ACCESS_KEY", &cfg.Export.S3.SecretAccessKey)

	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}
