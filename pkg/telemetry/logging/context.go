package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	// RequestIDKey is the context key for the admin request ID.
	RequestIDKey contextKey = "request_id"

	// TaskIDKey is the context key for the queue task being processed.
	TaskIDKey contextKey = "task_id"

	// RecordUIDKey is the context key for the record being archived.
	RecordUIDKey contextKey = "record_uid"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithTaskID adds a queue task ID to the context.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, TaskIDKey, taskID)
}

// GetTaskID retrieves the queue task ID from the context.
func GetTaskID(ctx context.Context) string {
	id, _ := ctx.Value(TaskIDKey).(string)
	return id
}

// WithRecordUID adds the UID of the record being archived to the context.
func WithRecordUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, RecordUIDKey, uid)
}

// GetRecordUID retrieves the record UID from the context.
func GetRecordUID(ctx context.Context) string {
	uid, _ := ctx.Value(RecordUIDKey).(string)
	return uid
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr

	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, slog.String("request_id", id))
	}
	if id := GetTaskID(ctx); id != "" {
		fields = append(fields, slog.String("task_id", id))
	}
	if uid := GetRecordUID(ctx); uid != "" {
		fields = append(fields, slog.String("record_uid", uid))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return fields
}

// contextHandler adds context fields to every record logged with a context.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if fields := extractContextFields(ctx); len(fields) > 0 {
			r = r.Clone()
			r.AddAttrs(fields...)
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
