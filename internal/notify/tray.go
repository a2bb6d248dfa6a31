package notify

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
)

// Entry is one posted notification.
type Entry struct {
	Key      string    `json:"key"`
	Channel  string    `json:"channel"`
	Title    string    `json:"title"`
	Text     string    `json:"text"`
	Success  bool      `json:"success"`
	PostedAt time.Time `json:"posted_at"`
}

// Tray is the device notification shade. Result entries are keyed by schedule
// id, so a later result replaces an earlier one for the same schedule.
type Tray struct {
	mu         sync.Mutex
	enabled    func() bool
	results    map[int64]Entry
	foreground map[string]Entry
	now        func() time.Time
	logger     *slog.Logger
}

// NewTray returns a tray. enabled reports the notification grant; while it is
// false posts are dropped.
func NewTray(enabled func() bool, logger *slog.Logger) *Tray {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Tray{
		enabled:    enabled,
		results:    make(map[int64]Entry),
		foreground: make(map[string]Entry),
		now:        time.Now,
		logger:     logger.With("component", "tray"),
	}
}

func (t *Tray) NotifyResult(_ context.Context, r Result) error {
	if !t.enabled() {
		t.logger.Debug("notifications disabled, dropping result", "schedule_id", r.ScheduleID)
		return nil
	}

	at := r.At
	if at.IsZero() {
		at = t.now()
	}

	t.mu.Lock()
	t.results[r.ScheduleID] = Entry{
		Key:      fmt.Sprintf("schedule-%d", r.ScheduleID),
		Channel:  ChannelLaunchResult,
		Title:    r.Title(),
		Text:     r.Text(),
		Success:  r.Success,
		PostedAt: at,
	}
	t.mu.Unlock()

	outcome := "failure"
	if r.Success {
		outcome = "success"
	}
	metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
	return nil
}

func (t *Tray) StartForeground(_ context.Context, workerID, appName string) error {
	if !t.enabled() {
		return nil
	}
	t.mu.Lock()
	t.foreground[workerID] = Entry{
		Key:      "worker-" + workerID,
		Channel:  ChannelForeground,
		Title:    fmt.Sprintf("Launching %s", appName),
		Text:     "Opening the scheduled app",
		PostedAt: t.now(),
	}
	t.mu.Unlock()
	return nil
}

func (t *Tray) StopForeground(_ context.Context, workerID string) {
	t.mu.Lock()
	delete(t.foreground, workerID)
	t.mu.Unlock()
}

// Results returns the launch-result entries, newest first.
func (t *Tray) Results() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.results))
	for _, e := range t.results {
		out = append(out, e)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b Entry) int {
		if c := b.PostedAt.Compare(a.PostedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// Result returns the entry posted for a schedule.
func (t *Tray) Result(scheduleID int64) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.results[scheduleID]
	return e, ok
}

// Foreground returns the live foreground-worker entries.
func (t *Tray) Foreground() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.foreground))
	for _, e := range t.foreground {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Key, b.Key) })
	return out
}
