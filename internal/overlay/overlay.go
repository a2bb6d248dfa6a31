// Package overlay launches a target application from the background by
// briefly holding an invisible window, which the platform requires before it
// honors an activity start from a background process.
package overlay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/lifecycle"
	ctxlog "github.com/ErlanBelekov/app-launch-scheduler/internal/log"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/notify"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/outcome"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
)

// DefaultGrace is how long the surface stays attached after a successful
// dispatch so the activation takes effect before the window goes away.
const DefaultGrace = 500 * time.Millisecond

type Request struct {
	Schedule *domain.Schedule
	// Untracked requests have no stored record to transition.
	Untracked bool
}

type Deps struct {
	Device     platform.Device
	Resolver   platform.LaunchResolver
	Starter    platform.ActivityStarter
	Windows    platform.WindowManager
	Foreground notify.ForegroundNotifier
	Recorder   *outcome.Recorder
	Tracker    *lifecycle.Tracker
	Grace      time.Duration
	Logger     *slog.Logger
}

// Service starts overlay workers and keeps track of the live ones.
type Service struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	workers map[string]*Worker
}

func NewService(deps Deps) *Service {
	if deps.Grace <= 0 {
		deps.Grace = DefaultGrace
	}
	return &Service{
		deps:    deps,
		logger:  deps.Logger.With("component", "overlay"),
		workers: make(map[string]*Worker),
	}
}

// Launch starts a worker for req and returns immediately.
func (s *Service) Launch(ctx context.Context, req Request) *Worker {
	w := &Worker{
		id:        uuid.NewString(),
		req:       req,
		svc:       s,
		ticket:    s.deps.Tracker.Begin("overlay"),
		destroyed: make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.logger = s.logger

	s.mu.Lock()
	s.workers[w.id] = w
	s.mu.Unlock()
	metrics.OverlayWorkersActive.Inc()

	go w.run(ctx)
	return w
}

// Active returns the number of live workers.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// DestroyAll tears down every live worker, as the platform does when it
// reclaims the host.
func (s *Service) DestroyAll() {
	s.mu.Lock()
	live := make([]*Worker, 0, len(s.workers))
	for _, w := range s.workers {
		live = append(live, w)
	}
	s.mu.Unlock()

	for _, w := range live {
		w.Destroy()
	}
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	delete(s.workers, id)
	s.mu.Unlock()
}

// Worker is one overlay launch. Teardown runs exactly once, whichever path
// ends the worker.
type Worker struct {
	id     string
	req    Request
	svc    *Service
	ticket *lifecycle.Ticket
	logger *slog.Logger

	mu      sync.Mutex
	surface platform.Surface
	torn    bool
	status  domain.Status

	destroyOnce  sync.Once
	teardownOnce sync.Once
	destroyed    chan struct{}
	done         chan struct{}
}

func (w *Worker) ID() string { return w.id }

// Done is closed after teardown.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Wait blocks until teardown or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status is the terminal status the worker recorded, or empty if it was
// destroyed before reaching one.
func (w *Worker) Status() domain.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Destroy tears the worker down immediately. Safe to call at any time and
// more than once.
func (w *Worker) Destroy() {
	w.destroyOnce.Do(func() { close(w.destroyed) })
	w.teardown(context.Background())
}

func (w *Worker) stopped() bool {
	select {
	case <-w.destroyed:
		return true
	default:
		return false
	}
}

func (w *Worker) run(ctx context.Context) {
	deps := w.svc.deps
	s := w.req.Schedule
	ctx = ctxlog.WithWorkerID(ctxlog.WithScheduleID(ctx, s.ID), w.id)
	defer w.teardown(ctx)

	if deps.Device.RequiresForegroundService() {
		if err := deps.Foreground.StartForeground(ctx, w.id, s.AppName); err != nil {
			w.logger.WarnContext(ctx, "post foreground notification", "error", err)
		}
		if w.isTorn() {
			deps.Foreground.StopForeground(ctx, w.id)
			w.fail(ctx, notify.ReasonLaunchError)
			return
		}
	}

	intent, err := deps.Resolver.LaunchIntent(ctx, s.PackageName)
	if err != nil {
		w.logger.ErrorContext(ctx, "resolve launch intent", "package", s.PackageName, "error", err)
	}
	if err != nil || intent == nil {
		w.fail(ctx, notify.ReasonAppNotFound)
		return
	}

	if w.stopped() {
		w.fail(ctx, notify.ReasonLaunchError)
		return
	}
	surface, err := deps.Windows.AddView(platform.InvisibleSurface(deps.Device))
	if err != nil {
		w.logger.ErrorContext(ctx, "attach overlay surface", "error", err)
		w.fail(ctx, notify.ReasonLaunchError)
		return
	}
	if !w.hold(surface) {
		// destroyed while attaching
		_ = deps.Windows.RemoveView(surface)
		w.fail(ctx, notify.ReasonLaunchError)
		return
	}

	if err := deps.Starter.StartActivity(ctx, intent.WithLaunchFlags()); err != nil {
		w.logger.ErrorContext(ctx, "dispatch activation", "package", s.PackageName, "error", err)
		w.fail(ctx, notify.ReasonLaunchError)
		return
	}

	w.record(ctx, domain.StatusExecuted, "")
	w.logger.InfoContext(ctx, "overlay launch dispatched", "package", s.PackageName)

	grace := time.NewTimer(deps.Grace)
	defer grace.Stop()
	select {
	case <-grace.C:
	case <-w.destroyed:
	}
}

func (w *Worker) isTorn() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.torn
}

func (w *Worker) hold(s platform.Surface) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.torn {
		return false
	}
	w.surface = s
	return true
}

func (w *Worker) fail(ctx context.Context, reason string) {
	w.record(ctx, domain.StatusFailed, reason)
}

func (w *Worker) record(ctx context.Context, status domain.Status, reason string) {
	s := w.req.Schedule
	w.svc.deps.Recorder.Record(ctx, outcome.Outcome{
		ScheduleID: s.ID,
		AppName:    s.AppName,
		Status:     status,
		Reason:     reason,
		Untracked:  w.req.Untracked,
	})
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}

func (w *Worker) teardown(ctx context.Context) {
	w.teardownOnce.Do(func() {
		w.mu.Lock()
		w.torn = true
		surface := w.surface
		w.surface = nil
		w.mu.Unlock()

		deps := w.svc.deps
		if surface != nil {
			if err := deps.Windows.RemoveView(surface); err != nil {
				w.logger.WarnContext(ctx, "detach overlay surface", "error", err)
			}
		}
		deps.Foreground.StopForeground(ctx, w.id)

		w.svc.forget(w.id)
		metrics.OverlayWorkersActive.Dec()
		close(w.done)
		w.ticket.Finish()
	})
}
