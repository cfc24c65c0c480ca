package config

import "time"

// Default values for configuration fields.
const (
	// Archive defaults
	DefaultRetentionPeriod = 2
	DefaultDateCriterion   = "created"
	DefaultPrefetchLimit   = 10000
	DefaultPriority        = 50
	DefaultChunkSize       = 1
	DefaultStrategy        = "record"
	DefaultSchedule        = "0 2 * * *"

	// Store defaults
	DefaultStoreBackend       = "sqlite"
	DefaultSQLitePath         = "data/strata.db"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultPostgresMaxConns   = 10

	// Queue defaults
	DefaultQueueEnabled      = true
	DefaultQueueBackend      = "sqlite"
	DefaultQueueSQLitePath   = "data/queue.db"
	DefaultQueueWorkers      = 1
	DefaultQueuePollInterval = time.Second
	DefaultQueueMaxAttempts  = 3

	// Export defaults
	DefaultExportPretty = true
	DefaultS3Region     = "us-east-1"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultTracingEnabled      = false
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "strata"
	DefaultTracingSamplingRate = 1.0
)

// DefaultSkipTypes are the kinds the export skips unless marked for archiving.
var DefaultSkipTypes = []string{"AuditLog", "ArchiveItem"}

// DefaultWorkflow maps each archivable kind to the states permitting archive.
func DefaultWorkflow() map[string][]string {
	return map[string][]string{
		"AnalysisRequest": {"published", "rejected", "cancelled", "invalid"},
		"Batch":           {"closed", "cancelled"},
		"Worksheet":       {"verified"},
	}
}

// DefaultConfig returns a configuration with every default applied.
// Booleans that default to true, the retention period and the schedule
// are set here rather than in ApplyDefaults so that an explicit false,
// null or empty value in a file survives loading.
func DefaultConfig() *Config {
	retention := DefaultRetentionPeriod
	cfg := &Config{
		Archive: ArchiveConfig{
			RetentionPeriod: &retention,
			Schedule:        DefaultSchedule,
		},
		Store: StoreConfig{
			SQLite: SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Queue: QueueConfig{Enabled: DefaultQueueEnabled},
		Export: ExportConfig{Pretty: DefaultExportPretty},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Enabled: DefaultTracingEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	// Archive defaults
	if cfg.Archive.DateCriterion == "" {
		cfg.Archive.DateCriterion = DefaultDateCriterion
	}
	if cfg.Archive.PrefetchLimit == 0 {
		cfg.Archive.PrefetchLimit = DefaultPrefetchLimit
	}
	if cfg.Archive.Priority == 0 {
		cfg.Archive.Priority = DefaultPriority
	}
	if cfg.Archive.ChunkSize == 0 {
		cfg.Archive.ChunkSize = DefaultChunkSize
	}
	if cfg.Archive.Strategy == "" {
		cfg.Archive.Strategy = DefaultStrategy
	}
	if cfg.Archive.SkipTypes == nil {
		cfg.Archive.SkipTypes = append([]string(nil), DefaultSkipTypes...)
	}
	if cfg.Archive.Workflow == nil {
		cfg.Archive.Workflow = DefaultWorkflow()
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Store.SQLite.MaxOpenConns == 0 {
		cfg.Store.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Store.SQLite.MaxIdleConns == 0 {
		cfg.Store.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.Postgres.MaxOpenConns == 0 {
		cfg.Store.Postgres.MaxOpenConns = DefaultPostgresMaxConns
	}

	// Queue defaults
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = DefaultQueueBackend
	}
	if cfg.Queue.SQLitePath == "" {
		cfg.Queue.SQLitePath = DefaultQueueSQLitePath
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = DefaultQueueWorkers
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = DefaultQueuePollInterval
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = DefaultQueueMaxAttempts
	}

	// Export defaults
	if cfg.Export.S3.Region == "" {
		cfg.Export.S3.Region = DefaultS3Region
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
}
