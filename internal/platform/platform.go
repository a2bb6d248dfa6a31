// Package platform declares the device capabilities the scheduler consumes.
// Implementations are injected; nothing here reaches for a global service handle.
package platform

import (
	"context"
	"errors"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
)

// SDK levels that change launch behaviour.
const (
	// SDKForegroundService is the first level that requires a worker to post
	// a foreground notification to stay alive.
	SDKForegroundService = 26
	// SDKBackgroundStartRestriction is the first level that drops activity
	// starts from a background process without a visible window.
	SDKBackgroundStartRestriction = 29
)

var (
	ErrBackgroundActivityStart = errors.New("background activity start not allowed")
	ErrPackageNotFound         = errors.New("package not found")
)

type IntentFlag uint32

const (
	FlagActivityNewTask IntentFlag = 1 << iota
	FlagActivityClearTop
)

// Intent activates one entry point of a package.
type Intent struct {
	PackageName string
	Activity    string
	Flags       IntentFlag
}

// WithLaunchFlags returns a copy carrying the new-task, clear-top flags every
// scheduled activation uses.
func (i Intent) WithLaunchFlags() Intent {
	i.Flags |= FlagActivityNewTask | FlagActivityClearTop
	return i
}

// Device describes the running platform.
type Device struct {
	SDK int
}

func (d Device) RestrictsBackgroundStarts() bool {
	return d.SDK >= SDKBackgroundStartRestriction
}

func (d Device) RequiresForegroundService() bool {
	return d.SDK >= SDKForegroundService
}

// AppCatalog enumerates launchable installed applications.
type AppCatalog interface {
	InstalledApps(ctx context.Context) ([]domain.InstalledApp, error)
}

// LaunchResolver resolves a package's launchable entry point. It returns
// nil, nil when the package is missing or exposes no entry point.
type LaunchResolver interface {
	LaunchIntent(ctx context.Context, packageName string) (*Intent, error)
}

// ActivityStarter dispatches an activation. Implementations may reject it
// with ErrBackgroundActivityStart.
type ActivityStarter interface {
	StartActivity(ctx context.Context, intent Intent) error
}

// ForegroundProbe reports whether the host process is currently in the foreground.
type ForegroundProbe interface {
	IsForeground(ctx context.Context) bool
}

// Permissions reports the grants that select degraded paths.
type Permissions interface {
	CanDrawOverlays() bool
	CanScheduleExactAlarms() bool
}
