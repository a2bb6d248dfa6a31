package scheduler

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/alarm"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/lifecycle"
)

// Event is an inbound platform signal.
type Event interface {
	eventName() string
}

// AlarmFired is delivered by the alarm facility, possibly more than once.
type AlarmFired struct {
	Payload alarm.Payload
}

// BootCompleted is delivered once the host has started.
type BootCompleted struct{}

func (AlarmFired) eventName() string    { return "alarm_fired" }
func (BootCompleted) eventName() string { return "boot_completed" }

// Dispatcher is the single entry point for platform events. Each event turns
// into a synchronous decision plus background work covered by the returned ticket.
type Dispatcher struct {
	executor *Executor
	boot     *BootReconciler
	tracker  *lifecycle.Tracker
	logger   *slog.Logger
}

func NewDispatcher(executor *Executor, boot *BootReconciler, tracker *lifecycle.Tracker, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		boot:     boot,
		tracker:  tracker,
		logger:   logger.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) *lifecycle.Ticket {
	d.logger.DebugContext(ctx, "event received", "event", ev.eventName())

	switch ev := ev.(type) {
	case AlarmFired:
		return d.executor.HandleAlarm(ctx, ev.Payload)
	case BootCompleted:
		ticket := d.tracker.Begin("boot")
		ctx = context.WithoutCancel(ctx)
		go func() {
			defer ticket.Finish()
			if _, err := d.boot.Reconcile(ctx); err != nil {
				d.logger.ErrorContext(ctx, "boot reconciliation", "error", err)
			}
		}()
		return ticket
	default:
		d.logger.WarnContext(ctx, "unknown event", "event", ev.eventName())
		return lifecycle.Finished("unknown")
	}
}
