package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/strata/pkg/archive"
	"mercator-hq/strata/pkg/config"
)

func TestConfigError(t *testing.T) {
	cause := errors.New("yaml: line 3: mapping values are not allowed")
	err := NewConfigError("strata.yaml", cause)

	expected := "config error in strata.yaml: yaml: line 3: mapping values are not allowed"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, cause) {
		t.Error("ConfigError does not unwrap to its cause")
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("archive", underlyingErr)

	expected := "command archive failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("CommandError does not unwrap to its cause")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitFailure},
		{"config file", NewConfigError("strata.yaml", errors.New("not found")), ExitConfig},
		{"validation", fmt.Errorf("load: %w", config.ValidationError{Errors: []config.FieldError{{Field: "archive.strategy"}}}), ExitConfig},
		{"disabled", NewCommandError("archive", archive.ErrArchiveDisabled), ExitDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
