package local

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
)

// CommandSource maps an intent to the process that implements it.
type CommandSource interface {
	Command(ctx context.Context, intent platform.Intent) ([]string, error)
}

// VisibleWindowProbe reports whether the host holds an attached surface.
type VisibleWindowProbe interface {
	HasVisibleWindow() bool
}

// Starter launches target applications as detached processes. On devices
// with the background-start restriction it drops starts from a host that is
// neither in the foreground nor holding a visible window.
type Starter struct {
	device     platform.Device
	commands   CommandSource
	foreground platform.ForegroundProbe
	windows    VisibleWindowProbe
	logger     *slog.Logger
}

func NewStarter(device platform.Device, commands CommandSource, foreground platform.ForegroundProbe, windows VisibleWindowProbe, logger *slog.Logger) *Starter {
	return &Starter{
		device:     device,
		commands:   commands,
		foreground: foreground,
		windows:    windows,
		logger:     logger.With("component", "starter"),
	}
}

func (s *Starter) StartActivity(ctx context.Context, intent platform.Intent) error {
	if s.device.RestrictsBackgroundStarts() && !s.foreground.IsForeground(ctx) && !s.windows.HasVisibleWindow() {
		return fmt.Errorf("start %s: %w", intent.PackageName, platform.ErrBackgroundActivityStart)
	}

	argv, err := s.commands.Command(ctx, intent)
	if err != nil {
		return err
	}

	// not bound to ctx: the launched app outlives the request that started it
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", intent.PackageName, err)
	}
	s.logger.InfoContext(ctx, "activity started", "package", intent.PackageName, "activity", intent.Activity, "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			s.logger.Debug("launched process exited", "package", intent.PackageName, "error", err)
		}
	}()
	return nil
}
