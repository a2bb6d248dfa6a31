package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	ctxlog "github.com/ErlanBelekov/app-launch-scheduler/internal/log"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/requestid"
)

func TestContextHandler_AddsContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ctxlog.NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := requestid.WithRequestID(context.Background(), "req-1")
	ctx = ctxlog.WithScheduleID(ctx, 42)
	logger.InfoContext(ctx, "launched")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", rec["request_id"])
	}
	if rec["schedule_id"] != float64(42) {
		t.Errorf("schedule_id = %v, want 42", rec["schedule_id"])
	}
}

func TestContextHandler_OmitsMissingAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ctxlog.NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "idle")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if _, ok := rec["request_id"]; ok {
		t.Error("unexpected request_id")
	}
	if _, ok := rec["schedule_id"]; ok {
		t.Error("unexpected schedule_id")
	}
}

func TestContextHandler_AddsWorkerID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ctxlog.NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	logger.With("component", "overlay").InfoContext(ctxlog.WithWorkerID(context.Background(), "w-1"), "attached")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["worker_id"] != "w-1" {
		t.Errorf("worker_id = %v, want w-1", rec["worker_id"])
	}
	if rec["component"] != "overlay" {
		t.Errorf("component = %v, want overlay", rec["component"])
	}
}

func TestContextHandler_CustomExtractors(t *testing.T) {
	var buf bytes.Buffer
	only := func(ctx context.Context) (slog.Attr, bool) { return slog.String("host", "device"), true }
	logger := slog.New(ctxlog.NewContextHandler(slog.NewJSONHandler(&buf, nil), only))

	ctx := requestid.WithRequestID(context.Background(), "req-1")
	logger.InfoContext(ctx, "booted")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["host"] != "device" {
		t.Errorf("host = %v, want device", rec["host"])
	}
	if _, ok := rec["request_id"]; ok {
		t.Error("default extractors should be replaced")
	}
}
