package log

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/requestid"
)

type (
	scheduleIDKey struct{}
	workerIDKey   struct{}
)

// WithScheduleID tags ctx so every record logged with it carries schedule_id.
func WithScheduleID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, scheduleIDKey{}, id)
}

// ScheduleIDFromContext returns the tagged schedule id, if any.
func ScheduleIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(scheduleIDKey{}).(int64)
	return id, ok
}

// WithWorkerID tags ctx with the overlay worker handling it.
func WithWorkerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workerIDKey{}, id)
}

// Extractor pulls one attribute out of a record's context.
type Extractor func(ctx context.Context) (slog.Attr, bool)

// DefaultExtractors add request_id, schedule_id and worker_id.
var DefaultExtractors = []Extractor{
	func(ctx context.Context) (slog.Attr, bool) {
		id := requestid.FromContext(ctx)
		return slog.String("request_id", id), id != ""
	},
	func(ctx context.Context) (slog.Attr, bool) {
		id, ok := ScheduleIDFromContext(ctx)
		return slog.Int64("schedule_id", id), ok
	},
	func(ctx context.Context) (slog.Attr, bool) {
		id, ok := ctx.Value(workerIDKey{}).(string)
		return slog.String("worker_id", id), ok && id != ""
	},
}

// ContextHandler wraps an slog.Handler and enriches each record with the
// attributes its extractors find in the record's context.
type ContextHandler struct {
	inner      slog.Handler
	extractors []Extractor
}

// NewContextHandler uses DefaultExtractors when none are given.
func NewContextHandler(inner slog.Handler, extractors ...Extractor) *ContextHandler {
	if len(extractors) == 0 {
		extractors = DefaultExtractors
	}
	return &ContextHandler{inner: inner, extractors: extractors}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, extract := range h.extractors {
		if attr, ok := extract(ctx); ok {
			r.AddAttrs(attr)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), extractors: h.extractors}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name), extractors: h.extractors}
}
