// Package fake provides in-memory platform capabilities for tests.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/alarm"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
)

// Apps is an installed-package table. Packages with a nil intent are
// installed but not launchable.
type Apps struct {
	mu         sync.Mutex
	apps       []domain.InstalledApp
	intents    map[string]*platform.Intent
	ResolveErr error
}

func NewApps() *Apps {
	return &Apps{intents: make(map[string]*platform.Intent)}
}

// Install adds a launchable package.
func (a *Apps) Install(pkg, label string) *Apps {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apps = append(a.apps, domain.InstalledApp{PackageName: pkg, AppName: label})
	a.intents[pkg] = &platform.Intent{PackageName: pkg, Activity: "Main"}
	return a
}

// Uninstall removes the package.
func (a *Apps) Uninstall(pkg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.intents, pkg)
	for i, app := range a.apps {
		if app.PackageName == pkg {
			a.apps = append(a.apps[:i], a.apps[i+1:]...)
			break
		}
	}
}

func (a *Apps) InstalledApps(context.Context) ([]domain.InstalledApp, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.InstalledApp(nil), a.apps...), nil
}

func (a *Apps) LaunchIntent(_ context.Context, pkg string) (*platform.Intent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ResolveErr != nil {
		return nil, a.ResolveErr
	}
	in, ok := a.intents[pkg]
	if !ok || in == nil {
		return nil, nil
	}
	c := *in
	return &c, nil
}

// Starter records dispatched intents. Gate, when set, decides each start.
type Starter struct {
	mu      sync.Mutex
	started []platform.Intent
	Gate    func(platform.Intent) error
}

func (s *Starter) StartActivity(_ context.Context, intent platform.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Gate != nil {
		if err := s.Gate(intent); err != nil {
			return err
		}
	}
	s.started = append(s.started, intent)
	return nil
}

func (s *Starter) Started() []platform.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]platform.Intent(nil), s.started...)
}

// RejectBackground is a Gate that only admits starts while visible reports true.
func RejectBackground(visible func() bool) func(platform.Intent) error {
	return func(platform.Intent) error {
		if !visible() {
			return platform.ErrBackgroundActivityStart
		}
		return nil
	}
}

type Foreground struct{ v atomic.Bool }

func (f *Foreground) Set(v bool)                        { f.v.Store(v) }
func (f *Foreground) IsForeground(context.Context) bool { return f.v.Load() }

type Permissions struct {
	Overlay     atomic.Bool
	ExactAlarms atomic.Bool
}

func (p *Permissions) CanDrawOverlays() bool        { return p.Overlay.Load() }
func (p *Permissions) CanScheduleExactAlarms() bool { return p.ExactAlarms.Load() }

type surface string

func (s surface) ID() string { return string(s) }

// Windows records attached surfaces.
type Windows struct {
	mu       sync.Mutex
	seq      int
	attached map[string]platform.SurfaceSpec
	Added    []platform.SurfaceSpec
	Removed  int
	AddErr   error
}

func (w *Windows) AddView(spec platform.SurfaceSpec) (platform.Surface, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.AddErr != nil {
		return nil, w.AddErr
	}
	if w.attached == nil {
		w.attached = make(map[string]platform.SurfaceSpec)
	}
	w.seq++
	id := fmt.Sprintf("surface-%d", w.seq)
	w.attached[id] = spec
	w.Added = append(w.Added, spec)
	return surface(id), nil
}

func (w *Windows) RemoveView(s platform.Surface) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.attached[s.ID()]; !ok {
		return errors.New("surface not attached")
	}
	delete(w.attached, s.ID())
	w.Removed++
	return nil
}

func (w *Windows) HasVisibleWindow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.attached) > 0
}

// Stats returns the number of surfaces ever added, removed and still attached.
func (w *Windows) Stats() (added, removed, attached int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Added), w.Removed, len(w.attached)
}

// Armed is one registration on the fake alarm facility.
type Armed struct {
	At      time.Time
	Payload alarm.Payload
	Exact   bool
}

// Alarms is an alarm.Facility that never fires on its own; tests call Fire.
type Alarms struct {
	mu      sync.Mutex
	armed   map[int64]Armed
	sets    int
	cancels int
	Exact   atomic.Bool
}

func NewAlarms(exact bool) *Alarms {
	a := &Alarms{armed: make(map[int64]Armed)}
	a.Exact.Store(exact)
	return a
}

func (a *Alarms) CanScheduleExact() bool { return a.Exact.Load() }

func (a *Alarms) SetExact(at time.Time, p alarm.Payload) error {
	if !a.Exact.Load() {
		return alarm.ErrExactNotPermitted
	}
	a.set(Armed{At: at, Payload: p, Exact: true})
	return nil
}

func (a *Alarms) SetInexact(at time.Time, p alarm.Payload) error {
	a.set(Armed{At: at, Payload: p})
	return nil
}

func (a *Alarms) set(r Armed) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.armed[r.Payload.ScheduleID]; dup {
		panic(fmt.Sprintf("schedule %d armed twice without cancel", r.Payload.ScheduleID))
	}
	a.armed[r.Payload.ScheduleID] = r
	a.sets++
}

func (a *Alarms) Cancel(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.armed, id)
	a.cancels++
}

func (a *Alarms) Pending(id int64) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.armed[id]
	return r.At, ok
}

// Get returns the registration for id.
func (a *Alarms) Get(id int64) (Armed, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.armed[id]
	return r, ok
}

// Len is the number of live registrations.
func (a *Alarms) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.armed)
}

// Fire removes the registration for id and returns its payload, as the
// platform does when delivering it.
func (a *Alarms) Fire(id int64) (alarm.Payload, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.armed[id]
	if ok {
		delete(a.armed, id)
	}
	return r.Payload, ok
}
