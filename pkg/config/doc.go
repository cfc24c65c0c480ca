// Package config provides configuration management for strata.
//
// Configuration is read from a YAML file, layered over the defaults, then
// overridden from the environment and validated.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("strata.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("strata.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention STRATA_SECTION_FIELD:
//
//   - STRATA_ARCHIVE_RETENTION_PERIOD overrides archive.retention_period
//     ("none" unsets it)
//   - STRATA_ARCHIVE_BASE_PATH overrides archive.archive_base_path
//   - STRATA_STORE_POSTGRES_DSN overrides store.postgres.dsn
//
// # Archive Status
//
// An unusable archive_base_path is not a load error. CheckArchive reports it
// as an inactive ArchiveStatus with a warning, and archiving stays disabled
// until the path is fixed and the configuration reloaded.
//
// # Singleton Pattern
//
//	if err := config.Initialize("strata.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// A Watcher reloads the singleton when the file changes; OnReload listeners
// receive every successfully reloaded configuration.
package config
