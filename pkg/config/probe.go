package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ArchiveStatus reports whether archiving can run with a configuration.
type ArchiveStatus struct {
	// Active is true when the archive base path is a writable directory.
	Active bool `json:"active"`

	// Warning explains why archiving is disabled. Empty when Active.
	Warning string `json:"warning,omitempty"`
}

// CheckArchive verifies the archive base path: it must be set, be an
// existing directory, and accept the creation and removal of a probe file.
// An inactive status is not an error; it disables archiving until the
// configuration is fixed.
func CheckArchive(cfg *Config) ArchiveStatus {
	base := cfg.Archive.ArchiveBasePath
	if base == "" {
		return ArchiveStatus{Warning: "Archive base path is not set: archiving is disabled"}
	}

	info, err := os.Stat(base)
	if err != nil {
		return ArchiveStatus{Warning: fmt.Sprintf("Archive base path %q does not exist: archiving is disabled", base)}
	}
	if !info.IsDir() {
		return ArchiveStatus{Warning: fmt.Sprintf("Archive base path %q is not a directory: archiving is disabled", base)}
	}
	if err := probeWrite(base); err != nil {
		return ArchiveStatus{Warning: fmt.Sprintf("Archive base path %q is not writable: archiving is disabled (%v)", base, err)}
	}

	return ArchiveStatus{Active: true}
}

// probeWrite creates and removes a {microsecond}.tmp file in dir.
func probeWrite(dir string) error {
	name := filepath.Join(dir, strconv.FormatInt(time.Now().UnixMicro(), 10)+".tmp")
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}
