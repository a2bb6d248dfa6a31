package health_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockPinger struct {
	err   error
	block bool
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

func newTestChecker(deps map[string]health.Pinger) (*health.Checker, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return health.NewChecker(deps, slog.Default(), reg), reg
}

func TestLiveness_AlwaysUp(t *testing.T) {
	c, _ := newTestChecker(map[string]health.Pinger{"store": &mockPinger{err: errors.New("db down")}})

	result := c.Liveness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if result.Checks != nil {
		t.Fatalf("expected no checks, got %v", result.Checks)
	}
}

func TestReadiness_StoreUp(t *testing.T) {
	c, reg := newTestChecker(map[string]health.Pinger{"store": &mockPinger{}})

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if got := result.Checks["store"].Status; got != "up" {
		t.Fatalf("expected store up, got %s", got)
	}

	if got := gauge(t, reg, "store"); got != 1 {
		t.Fatalf("expected gauge 1, got %f", got)
	}
}

func TestReadiness_OneDependencyDownFailsReadiness(t *testing.T) {
	c, reg := newTestChecker(map[string]health.Pinger{
		"store":    &mockPinger{err: errors.New("connection refused")},
		"registry": &mockPinger{},
	})

	result := c.Readiness(context.Background())
	if result.Status != "down" {
		t.Fatalf("expected status down, got %s", result.Status)
	}
	store := result.Checks["store"]
	if store.Status != "down" || store.Error == "" {
		t.Fatalf("expected store down with error, got %+v", store)
	}
	if result.Checks["registry"].Status != "up" {
		t.Fatalf("expected registry up, got %+v", result.Checks["registry"])
	}

	if got := gauge(t, reg, "store"); got != 0 {
		t.Fatalf("expected gauge 0, got %f", got)
	}
}

func TestReadiness_HungDependencyTimesOut(t *testing.T) {
	c, reg := newTestChecker(map[string]health.Pinger{
		"store":    &mockPinger{block: true},
		"registry": &mockPinger{},
	})
	c.WithTimeout(50 * time.Millisecond)

	start := time.Now()
	result := c.Readiness(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("readiness took %v", elapsed)
	}
	if result.Status != "down" {
		t.Fatalf("expected status down, got %s", result.Status)
	}
	if !strings.Contains(result.Checks["store"].Error, "deadline") {
		t.Fatalf("expected deadline error, got %+v", result.Checks["store"])
	}
	if result.Checks["registry"].Status != "up" {
		t.Fatalf("expected registry up, got %+v", result.Checks["registry"])
	}
	if got := gauge(t, reg, "registry"); got != 1 {
		t.Fatalf("expected registry gauge 1, got %f", got)
	}
}

func gauge(t *testing.T, reg *prometheus.Registry, dep string) float64 {
	t.Helper()
	n, err := testutil.GatherAndCount(reg, "launcher_health_check_up")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if n == 0 {
		t.Fatal("launcher_health_check_up not registered")
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "launcher_health_check_up" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "dependency" && lp.GetValue() == dep {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("launcher_health_check_up{dependency=%q} not found", dep)
	return 0
}
