package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/health"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Timer metrics

	TimersArmedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "timers_armed_total",
		Help:      "Total wake timers armed, by precision.",
	}, []string{"precision"})

	TimersCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "timers_cancelled_total",
		Help:      "Total wake timer cancellations.",
	})

	AlarmDelay = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "launcher",
		Name:      "alarm_delay_seconds",
		Help:      "Time from the scheduled instant to the executor handling the firing.",
		Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300, 900},
	})

	// Launch metrics

	LaunchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "launches_total",
		Help:      "Total launch attempts finished, by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	LaunchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "launcher",
		Name:      "launch_duration_seconds",
		Help:      "Duration of a launch attempt from firing to terminal outcome.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"strategy"})

	DuplicateDeliveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "duplicate_deliveries_total",
		Help:      "Timer deliveries ignored because the schedule was terminal or re-armed.",
	})

	OverlayWorkersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "launcher",
		Name:      "overlay_workers_active",
		Help:      "Number of overlay launch workers currently alive.",
	})

	WorkInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "launcher",
		Name:      "work_in_flight",
		Help:      "Open lifetime tickets, by kind of work.",
	}, []string{"kind"})

	// Reconciliation metrics

	BootReconciledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "boot_reconciled_total",
		Help:      "Pending schedules handled by boot reconciliation, by action.",
	}, []string{"action"})

	ReaperRescuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "reaper_rescued_total",
		Help:      "Pending schedules handled by the reaper, by action.",
	}, []string{"action"})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "launcher",
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "notifications_total",
		Help:      "Result notifications posted, by outcome.",
	}, []string{"outcome"})

	// Process lifecycle

	StartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "launcher",
		Name:      "start_time_seconds",
		Help:      "Unix timestamp when the daemon started.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "launcher",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "launcher",
		Name:      "stream_clients",
		Help:      "Clients attached to the live schedule stream.",
	})

	StreamSessionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "launcher",
		Name:      "stream_session_seconds",
		Help:      "How long clients stayed attached to a live stream.",
		Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400},
	}, []string{"path"})
)

func Register() {
	prometheus.MustRegister(
		TimersArmedTotal,
		TimersCancelledTotal,
		AlarmDelay,
		LaunchesTotal,
		LaunchDuration,
		DuplicateDeliveriesTotal,
		OverlayWorkersActive,
		WorkInFlight,
		BootReconciledTotal,
		ReaperRescuedTotal,
		ReaperCycleDuration,
		NotificationsTotal,
		StartTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
		StreamClients,
		StreamSessionDuration,
	)
}

// NewServer serves /metrics plus the liveness and readiness probes.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func writeHealth(w http.ResponseWriter, res health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if res.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(res)
}
