// Package notify posts launch results and the overlay worker's foreground
// notice to the user.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Channels a notification is posted on.
const (
	ChannelLaunchResult = "app_launch_record_channel"
	ChannelForeground   = "overlay_service_channel"
)

// Reasons attached to failures raised outside the launch itself.
const (
	ReasonMissed      = "Missed schedule"
	ReasonAppNotFound = "App not found"
	ReasonLaunchError = "Error launching app"
)

// Result is the outcome of one schedule, reported once per terminal transition.
type Result struct {
	ScheduleID int64
	AppName    string
	Success    bool
	Reason     string
	At         time.Time
}

func (r Result) Title() string {
	if r.Success {
		return fmt.Sprintf("%s launched", r.AppName)
	}
	return fmt.Sprintf("%s launch failed", r.AppName)
}

func (r Result) Text() string {
	if r.Success {
		return fmt.Sprintf("%s was opened at its scheduled time", r.AppName)
	}
	if r.Reason != "" {
		return r.Reason
	}
	return fmt.Sprintf("%s could not be opened at its scheduled time", r.AppName)
}

// ResultNotifier reports launch results.
type ResultNotifier interface {
	NotifyResult(ctx context.Context, r Result) error
}

// ForegroundNotifier posts the low-importance notice that keeps a launch
// worker alive while it runs.
type ForegroundNotifier interface {
	StartForeground(ctx context.Context, workerID, appName string) error
	StopForeground(ctx context.Context, workerID string)
}

// Multi fans a result out to every notifier and joins their errors.
type Multi []ResultNotifier

func (m Multi) NotifyResult(ctx context.Context, r Result) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyResult(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
