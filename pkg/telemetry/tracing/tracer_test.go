package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/strata/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{"nil config", nil, true, false},
		{"disabled tracing", &config.TracingConfig{ServiceName: "strata"}, false, false},
		{
			name: "enabled otlp",
			config: &config.TracingConfig{
				Enabled: true, Endpoint: "localhost:4317", Insecure: true,
				ServiceName: "strata", SampleRatio: 0.5,
			},
			wantEnabled: true,
		},
		{
			name: "invalid ratio",
			config: &config.TracingConfig{
				Enabled: true, Endpoint: "localhost:4317", SampleRatio: 2,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := otel.GetTracerProvider()
			defer otel.SetTracerProvider(prev)

			tr, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tr.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tr.Enabled(), tt.wantEnabled)
			}

			_, span := tr.Start(context.Background(), "archive.record")
			span.End()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = tr.Shutdown(ctx)
		})
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		ratio   float64
		wantErr bool
	}{
		{0, false},
		{0.25, false},
		{1, false},
		{-0.1, true},
		{1.5, true},
	}
	for _, tt := range tests {
		s, err := createSampler(tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%v) error = %v, wantErr %v", tt.ratio, err, tt.wantErr)
		}
		if err == nil && s == nil {
			t.Errorf("createSampler(%v) returned nil sampler", tt.ratio)
		}
	}
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(empty) = %q", got)
	}

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if got := TraceID(ctx); got != span.SpanContext().TraceID().String() {
		t.Errorf("TraceID() = %q, want %q", got, span.SpanContext().TraceID())
	}
}

func TestSetStatus(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("test")

	_, ok := tracer.Start(context.Background(), "ok")
	SetStatus(ok, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	SetStatus(failed, errors.New("disk full"))
	failed.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if got := spans[1].Status().Description; got != "disk full" {
		t.Errorf("status description = %q, want %q", got, "disk full")
	}
	if len(spans[1].Events()) != 1 {
		t.Errorf("error not recorded as event: %v", spans[1].Events())
	}
}

func TestHTTPMiddleware(t *testing.T) {
	prevProp := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(prevProp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	var gotTrace string
	handler := HTTPMiddleware(tp.Tracer("test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/archive", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	const want = "4bf92f3577b34da6a3ce929d0e0e4736"
	if gotTrace != want {
		t.Errorf("handler trace id = %q, want %q", gotTrace, want)
	}
	if got := w.Header().Get("X-Trace-ID"); got != want {
		t.Errorf("X-Trace-ID = %q, want %q", got, want)
	}

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "POST /archive" {
		t.Fatalf("spans = %v", spans)
	}
}
