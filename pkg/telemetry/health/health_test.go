package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"default timeout", 0, 5 * time.Second},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Errorf("expected no checks, got %v", checker.ListChecks())
			}
		})
	}
}

func TestChecker_CheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: "ready",
			wantChecks: map[string]string{},
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"store": func(ctx context.Context) error { return nil },
			},
			wantStatus: "ready",
			wantChecks: map[string]string{"store": StatusOK},
		},
		{
			name: "warning keeps readiness",
			checks: map[string]CheckFunc{
				"store":          func(ctx context.Context) error { return nil },
				"archive_config": func(ctx context.Context) error { return Warning("archiving is disabled") },
			},
			wantStatus: "ready",
			wantChecks: map[string]string{"store": StatusOK, "archive_config": StatusWarning},
		},
		{
			name: "wrapped warning",
			checks: map[string]CheckFunc{
				"queue": func(ctx context.Context) error {
					return errors.Join(errors.New("context"), Warning("queue closed"))
				},
			},
			wantStatus: "ready",
			wantChecks: map[string]string{"queue": StatusWarning},
		},
		{
			name: "unhealthy degrades",
			checks: map[string]CheckFunc{
				"store": func(ctx context.Context) error { return errors.New("connection refused") },
				"queue": func(ctx context.Context) error { return nil },
			},
			wantStatus: "degraded",
			wantChecks: map[string]string{"store": StatusUnhealthy, "queue": StatusOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.wantChecks) {
				t.Fatalf("got %d checks, want %d", len(status.Checks), len(tt.wantChecks))
			}
			for name, want := range tt.wantChecks {
				if got := status.Checks[name].Status; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestChecker_CheckReadinessTimeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy {
		t.Errorf("slow check status = %q, want unhealthy", result.Status)
	}
	if status.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", status.Status)
	}
}

func TestChecker_RegisterCheckReplaces(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("store", func(ctx context.Context) error { return errors.New("down") })
	checker.RegisterCheck("store", func(ctx context.Context) error { return nil })

	if n := len(checker.ListChecks()); n != 1 {
		t.Fatalf("ListChecks() has %d entries, want 1", n)
	}
	if got := checker.CheckReadiness(context.Background()).Checks["store"].Status; got != StatusOK {
		t.Errorf("store = %q, want ok", got)
	}
}

func TestLivenessHandler(t *testing.T) {
	handler := New(time.Second).LivenessHandler()

	tests := []struct {
		method     string
		wantStatus int
		checkBody  bool
	}{
		{http.MethodGet, http.StatusOK, true},
		{http.MethodHead, http.StatusOK, false},
		{http.MethodPost, http.StatusMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(tt.method, "/healthz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.checkBody {
				var status HealthStatus
				if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if status.Status != StatusOK {
					t.Errorf("status = %q, want ok", status.Status)
				}
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		wantStatus int
		wantHealth string
	}{
		{"healthy", func(ctx context.Context) error { return nil }, http.StatusOK, "ready"},
		{"warning", func(ctx context.Context) error { return Warning("disabled") }, http.StatusOK, "ready"},
		{"unhealthy", func(ctx context.Context) error { return errors.New("failed") }, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			checker.RegisterCheck("component", tt.check)

			rec := httptest.NewRecorder()
			checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var status HealthStatus
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if status.Status != tt.wantHealth {
				t.Errorf("health = %q, want %q", status.Status, tt.wantHealth)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.0", "abc123", "2026-03-01")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.0" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("VersionInfo = %+v", info)
	}
}
