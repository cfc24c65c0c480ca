package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/strata/pkg/record"
)

// Retention period bounds, in years.
const (
	MinRetentionPeriod = 0
	MaxRetentionPeriod = 20
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "archive.retention_period").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
//
// The archive base path is not checked here: an unusable base
// path disables archiving and is reported by CheckArchive instead.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateArchive(&cfg.Archive)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateQueue(&cfg.Queue)...)
	errs = append(errs, validateExport(&cfg.Export)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateArchive validates the retention policy and scheduling settings.
func validateArchive(cfg *ArchiveConfig) []FieldError {
	var errs []FieldError

	if p := cfg.RetentionPeriod; p != nil && (*p < MinRetentionPeriod || *p > MaxRetentionPeriod) {
		errs = append(errs, FieldError{
			Field:   "archive.retention_period",
			Message: fmt.Sprintf("retention period must be between %d and %d years, got %d", MinRetentionPeriod, MaxRetentionPeriod, *p),
		})
	}

	switch cfg.DateCriterion {
	case "created", "modified":
	default:
		errs = append(errs, FieldError{
			Field:   "archive.date_criterion",
			Message: fmt.Sprintf("invalid date criterion %q: must be 'created' or 'modified'", cfg.DateCriterion),
		})
	}

	if cfg.PrefetchLimit < 1 {
		errs = append(errs, FieldError{
			Field:   "archive.prefetch_limit",
			Message: "prefetch limit must be at least 1",
		})
	}
	if cfg.Priority < 0 {
		errs = append(errs, FieldError{
			Field:   "archive.priority",
			Message: "priority must be non-negative",
		})
	}
	if cfg.ChunkSize < 1 {
		errs = append(errs, FieldError{
			Field:   "archive.chunk_size",
			Message: "chunk size must be at least 1",
		})
	}

	switch cfg.Strategy {
	case "record", "chunk":
	default:
		errs = append(errs, FieldError{
			Field:   "archive.strategy",
			Message: fmt.Sprintf("invalid strategy %q: must be 'record' or 'chunk'", cfg.Strategy),
		})
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "archive.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}

	for i, kind := range cfg.SkipTypes {
		if !record.Kind(kind).IsValid() {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("archive.skip_types[%d]", i),
				Message: fmt.Sprintf("unknown type %q", kind),
			})
		}
	}

	for kind := range cfg.Workflow {
		if !slices.Contains(record.ArchivableKinds, record.Kind(kind)) {
			errs = append(errs, FieldError{
				Field:   "archive.workflow." + kind,
				Message: "type is not archivable",
			})
		}
	}

	return errs
}

// validateStore validates the active store configuration.
func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.max_open_conns",
				Message: "max open connections must be non-negative",
			})
		}
		if cfg.SQLite.MaxIdleConns < 0 {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.max_idle_conns",
				Message: "max idle connections must be non-negative",
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.busy_timeout",
				Message: "busy timeout must be positive",
			})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{
				Field:   "store.postgres.dsn",
				Message: "dsn is required for the postgres backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'sqlite', or 'postgres'", cfg.Backend),
		})
	}

	return errs
}

// validateQueue validates the task queue configuration.
func validateQueue(cfg *QueueConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{
				Field:   "queue.sqlite_path",
				Message: "path is required for the sqlite queue",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "queue.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.Workers < 1 {
		errs = append(errs, FieldError{
			Field:   "queue.workers",
			Message: "workers must be at least 1",
		})
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "queue.poll_interval",
			Message: "poll interval must be positive",
		})
	}
	if cfg.MaxAttempts < 1 {
		errs = append(errs, FieldError{
			Field:   "queue.max_attempts",
			Message: "max attempts must be at least 1",
		})
	}

	return errs
}

// validateExport validates the export configuration.
func validateExport(cfg *ExportConfig) []FieldError {
	var errs []FieldError

	if cfg.S3.Enabled && cfg.S3.Bucket == "" {
		errs = append(errs, FieldError{
			Field:   "export.s3.bucket",
			Message: "bucket is required when the S3 replica is enabled",
		})
	}
	if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
		errs = append(errs, FieldError{
			Field:   "export.s3.access_key_id",
			Message: "access key id and secret access key must be set together",
		})
	}

	return errs
}

// validateServer validates the admin server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
