package local

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
)

var (
	ErrOverlayNotPermitted = errors.New("overlay permission not granted")
	ErrUnknownSurface      = errors.New("surface not attached")
)

type surface struct{ id string }

func (s surface) ID() string { return s.id }

// WindowManager keeps the set of surfaces the host has attached.
type WindowManager struct {
	perms platform.Permissions

	mu       sync.Mutex
	attached map[string]platform.SurfaceSpec
}

func NewWindowManager(perms platform.Permissions) *WindowManager {
	return &WindowManager{perms: perms, attached: make(map[string]platform.SurfaceSpec)}
}

func (w *WindowManager) AddView(spec platform.SurfaceSpec) (platform.Surface, error) {
	if !w.perms.CanDrawOverlays() {
		return nil, fmt.Errorf("add view: %w", ErrOverlayNotPermitted)
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("add view: invalid size %dx%d", spec.Width, spec.Height)
	}

	s := surface{id: uuid.NewString()}
	w.mu.Lock()
	w.attached[s.id] = spec
	w.mu.Unlock()
	return s, nil
}

func (w *WindowManager) RemoveView(s platform.Surface) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.attached[s.ID()]; !ok {
		return fmt.Errorf("remove view %s: %w", s.ID(), ErrUnknownSurface)
	}
	delete(w.attached, s.ID())
	return nil
}

func (w *WindowManager) HasVisibleWindow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.attached) > 0
}

// Attached reports how many surfaces are currently attached.
func (w *WindowManager) Attached() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.attached)
}
