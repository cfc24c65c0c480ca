package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/strata/pkg/archive"
	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
	"mercator-hq/strata/pkg/store/memory"
	"mercator-hq/strata/pkg/telemetry/health"
	"mercator-hq/strata/pkg/telemetry/metrics"
	"mercator-hq/strata/pkg/workflow"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fakeRunner struct {
	calls  int
	result archive.RunResult
	err    error
}

func (f *fakeRunner) Run(ctx context.Context) (archive.RunResult, error) {
	f.calls++
	return f.result, f.err
}

type fixture struct {
	engine  *archive.Engine
	runner  *fakeRunner
	store   *memory.Store
	handler http.Handler
}

func newFixture(t *testing.T, active bool) *fixture {
	t.Helper()
	period := 2
	status := config.ArchiveStatus{Active: true}
	if !active {
		status = config.ArchiveStatus{Warning: "Archive base path is not set: archiving is disabled"}
	}

	st := memory.New()
	engine := archive.NewEngine(st, workflow.New(nil), archive.Settings{
		Policy: archive.Policy{
			RetentionPeriod: &period,
			DateCriterion:   archive.CriterionCreated,
			Now:             func() time.Time { return testNow },
		},
		Status: status,
	}, archive.Options{})

	runner := &fakeRunner{result: archive.RunResult{Queued: true, Submitted: 3}}
	reg := prometheus.NewRegistry()
	srv := New(config.ServerConfig{}, Options{
		Engine:      engine,
		Runner:      runner,
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Version:     "1.0.0",
	})
	return &fixture{engine: engine, runner: runner, store: st, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedItems(t *testing.T, items ...*record.ArchiveItem) {
	t.Helper()
	err := f.store.RunInTransaction(context.Background(), func(tx store.Tx) error {
		for _, item := range items {
			if err := tx.CreateArchiveItem(context.Background(), item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/archive", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestServer_Status(t *testing.T) {
	tests := []struct {
		name        string
		active      bool
		wantWarning bool
	}{
		{"active", true, false},
		{"disabled", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.active)
			rec := f.do(t, httptest.NewRequest(http.MethodGet, "/archive/status", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}

			got := decode[statusResponse](t, rec)
			if got.Active != tt.active {
				t.Errorf("active = %v, want %v", got.Active, tt.active)
			}
			if (got.Warning != "") != tt.wantWarning {
				t.Errorf("warning = %q", got.Warning)
			}
			if got.RetentionPeriod == nil || *got.RetentionPeriod != 2 {
				t.Errorf("retention_period = %v, want 2", got.RetentionPeriod)
			}
			if got.DateCriterion != "created" {
				t.Errorf("date_criterion = %q", got.DateCriterion)
			}
			if got.EarliestYear == nil || *got.EarliestYear != 2023 {
				t.Errorf("earliest_year = %v, want 2023", got.EarliestYear)
			}
		})
	}
}

func TestServer_StatusNoRetention(t *testing.T) {
	f := newFixture(t, true)
	s := f.engine.Settings()
	s.Policy.RetentionPeriod = nil
	f.engine.Reconfigure(s)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/archive/status", nil))
	body := decode[map[string]any](t, rec)
	if body["retention_period"] != nil || body["earliest_year"] != nil {
		t.Errorf("status = %v, want null retention_period and earliest_year", body)
	}
}

func TestServer_ArchiveNow(t *testing.T) {
	tests := []struct {
		name        string
		active      bool
		form        url.Values
		runErr      error
		wantCode    int
		wantMessage string
		wantRuns    int
	}{
		{
			name:        "confirm",
			active:      true,
			form:        url.Values{"submitted": {"1"}, "button_confirm": {"Confirm"}},
			wantCode:    http.StatusOK,
			wantMessage: MessageFinished,
			wantRuns:    1,
		},
		{
			name:        "cancel",
			active:      true,
			form:        url.Values{"submitted": {"1"}, "button_cancel": {"Cancel"}},
			wantCode:    http.StatusOK,
			wantMessage: MessageCancelled,
		},
		{
			name:        "not submitted",
			active:      true,
			form:        url.Values{"button_confirm": {"Confirm"}},
			wantCode:    http.StatusOK,
			wantMessage: MessageConfirm,
		},
		{
			name:     "disabled",
			active:   false,
			form:     url.Values{"submitted": {"1"}, "button_confirm": {"Confirm"}},
			wantCode: http.StatusConflict,
		},
		{
			name:     "disabled by a reload during the pass",
			active:   true,
			form:     url.Values{"submitted": {"1"}, "button_confirm": {"Confirm"}},
			runErr:   archive.ErrArchiveDisabled,
			wantCode: http.StatusConflict,
			wantRuns: 1,
		},
		{
			name:     "run failure",
			active:   true,
			form:     url.Values{"submitted": {"1"}, "button_confirm": {"Confirm"}},
			runErr:   errors.New("store unavailable"),
			wantCode: http.StatusInternalServerError,
			wantRuns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.active)
			f.runner.err = tt.runErr

			rec := f.do(t, postForm(tt.form))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if f.runner.calls != tt.wantRuns {
				t.Errorf("runner called %d times, want %d", f.runner.calls, tt.wantRuns)
			}
			if tt.wantMessage != "" {
				if got := decode[archiveResponse](t, rec).Message; got != tt.wantMessage {
					t.Errorf("message = %q, want %q", got, tt.wantMessage)
				}
			}
		})
	}
}

func TestServer_ArchiveNowResult(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(t, postForm(url.Values{"submitted": {"1"}, "button_confirm": {"Confirm"}}))

	got := decode[archiveResponse](t, rec)
	if got.Result == nil || !got.Result.Queued || got.Result.Submitted != 3 {
		t.Errorf("result = %+v", got.Result)
	}
}

func TestServer_ArchiveDisabledWarning(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, postForm(url.Values{"submitted": {"1"}, "button_confirm": {"Confirm"}}))

	got := decode[errorResponse](t, rec)
	if !strings.Contains(got.Error, "archiving is disabled") {
		t.Errorf("error = %q, want the configuration warning", got.Error)
	}
}

func TestServer_Items(t *testing.T) {
	f := newFixture(t, true)
	f.seedItems(t,
		&record.ArchiveItem{ID: "a1", ItemUID: "s-1", ItemID: "W-0001", ItemType: record.KindSample,
			ItemModified: testNow.AddDate(-3, 0, 0), SearchText: "w-0001 happy hills water"},
		&record.ArchiveItem{ID: "a2", ItemUID: "s-2", ItemID: "W-0002", ItemType: record.KindSample,
			ItemModified: testNow.AddDate(-2, -6, 0), SearchText: "w-0002 blue lake water"},
		&record.ArchiveItem{ID: "a3", ItemUID: "b-1", ItemID: "B-0001", ItemType: record.KindBatch,
			ItemModified: testNow.AddDate(-4, 0, 0), SearchText: "b-0001 happy hills"},
	)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []string
	}{
		{"all newest first", "", http.StatusOK, []string{"a2", "a1", "a3"}},
		{"text", "?q=happy+hills", http.StatusOK, []string{"a1", "a3"}},
		{"type", "?type=Batch", http.StatusOK, []string{"a3"}},
		{"paged", "?limit=1&offset=1", http.StatusOK, []string{"a1"}},
		{"past the end", "?offset=10", http.StatusOK, []string{}},
		{"bad type", "?type=Car", http.StatusBadRequest, nil},
		{"bad limit", "?limit=zero", http.StatusBadRequest, nil},
		{"negative offset", "?offset=-1", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, httptest.NewRequest(http.MethodGet, "/archive/items"+tt.query, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantIDs == nil {
				return
			}
			got := decode[itemsResponse](t, rec)
			var ids []string
			for _, item := range got.Items {
				ids = append(ids, item.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("items = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestServer_Item(t *testing.T) {
	f := newFixture(t, true)
	f.seedItems(t, &record.ArchiveItem{ID: "a1", ItemUID: "s-1", ItemID: "W-0001",
		ItemType: record.KindSample, ArchivePath: "2021/22/clients/client-1/"})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/archive/items/a1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	item := decode[record.ArchiveItem](t, rec)
	if item.ItemID != "W-0001" || item.ArchivePath != "2021/22/clients/client-1/" {
		t.Errorf("item = %+v", item)
	}

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/archive/items/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing item status = %d, want 404", rec.Code)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/healthz", http.StatusOK, `"status":"ok"`},
		{"/readyz", http.StatusOK, `"status":"ready"`},
		{"/version", http.StatusOK, `"version":"1.0.0"`},
		{"/metrics", http.StatusOK, "strata_http_requests_total"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.contains)
			}
		})
	}
}

func TestServer_ReadyzArchiveWarning(t *testing.T) {
	f := newFixture(t, false)
	checker := health.New(time.Second)
	checker.RegisterCheck(health.CheckArchiveConfig, health.ArchiveConfigCheck(func() config.ArchiveStatus {
		return f.engine.Settings().Status
	}))
	handler := New(config.ServerConfig{}, Options{Engine: f.engine, Runner: f.runner, Checker: checker}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decode[health.HealthStatus](t, rec)
	check := got.Checks[health.CheckArchiveConfig]
	if check.Status != health.StatusWarning || !strings.Contains(check.Message, "archiving is disabled") {
		t.Errorf("archive_config = %+v", check)
	}
}

func TestServer_RequestID(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("no request ID generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = f.do(t, req)
	if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("request ID = %q, want req-42", got)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	f := newFixture(t, true)
	srv := New(config.ServerConfig{ListenAddress: "127.0.0.1:0", ShutdownTimeout: time.Second},
		Options{Engine: f.engine, Runner: f.runner})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	if srv.IsRunning() {
		t.Error("IsRunning() after shutdown")
	}
}
