package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Destination receives the files of an export.
type Destination interface {
	// WriteFile stores data at the slash-separated path relative to the
	// destination root, creating intermediate directories as needed.
	WriteFile(ctx context.Context, path string, data []byte, contentType string) error
}

// FileSystem writes exports below a local directory.
type FileSystem struct {
	root   string
	logger *slog.Logger
}

// NewFileSystem creates a destination rooted at root.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{
		root:   root,
		logger: slog.Default().With("component", "archive.export"),
	}
}

// Root returns the destination directory.
func (fs *FileSystem) Root() string {
	return fs.root
}

// WriteFile writes data to root/path.
func (fs *FileSystem) WriteFile(ctx context.Context, path string, data []byte, contentType string) error {
	full := filepath.Join(fs.root, filepath.FromSlash(path))
	fs.logger.Info("archiving file", "content_type", contentType, "path", full)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return NewExportError(path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return NewExportError(path, err)
	}
	return nil
}

// Multi writes every file to each destination in order, stopping at the
// first failure.
type Multi []Destination

// WriteFile implements Destination.
func (m Multi) WriteFile(ctx context.Context, path string, data []byte, contentType string) error {
	for _, d := range m {
		if err := d.WriteFile(ctx, path, data, contentType); err != nil {
			return err
		}
	}
	return nil
}

// ExportError is returned when a file of an export cannot be written.
type ExportError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new ExportError.
func NewExportError(path string, cause error) *ExportError {
	return &ExportError{Path: path, Cause: cause}
}

// IsExportError reports whether err came from writing an export file.
func IsExportError(err error) bool {
	var e *ExportError
	return errors.As(err, &e)
}
