// Package local implements the platform capabilities on a plain host: a TOML
// package registry, process launching and an in-memory window manager.
package local

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
)

// Package is one entry of the registry file.
type Package struct {
	Name     string   `toml:"name"`
	Label    string   `toml:"label"`
	Icon     string   `toml:"icon"`
	Activity string   `toml:"activity"`
	Command  []string `toml:"command"`
}

// Launchable reports whether the package exposes an entry point.
func (p Package) Launchable() bool {
	return p.Activity != "" && len(p.Command) > 0
}

type registryFile struct {
	Packages []Package `toml:"package"`
}

// Registry is the installed-package table, read from a TOML file. The file is
// re-read whenever its modification time changes, so packages can be
// installed or removed while the daemon runs.
type Registry struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	byName  map[string]Package
}

// LoadRegistry reads the registry at path.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	if _, err := r.snapshot(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) snapshot() (map[string]Package, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return nil, fmt.Errorf("stat registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byName != nil && info.ModTime().Equal(r.modTime) {
		return r.byName, nil
	}

	var f registryFile
	if _, err := toml.DecodeFile(r.path, &f); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.path, err)
	}

	byName := make(map[string]Package, len(f.Packages))
	for _, p := range f.Packages {
		if p.Name == "" {
			continue
		}
		byName[p.Name] = p
	}
	r.byName = byName
	r.modTime = info.ModTime()
	return byName, nil
}

// InstalledApps lists launchable packages sorted by display name. A package
// without a label is shown under its package name.
func (r *Registry) InstalledApps(_ context.Context) ([]domain.InstalledApp, error) {
	pkgs, err := r.snapshot()
	if err != nil {
		return nil, err
	}

	apps := make([]domain.InstalledApp, 0, len(pkgs))
	for _, p := range pkgs {
		if !p.Launchable() {
			continue
		}
		app := domain.InstalledApp{PackageName: p.Name, AppName: p.Label}
		if app.AppName == "" {
			app.AppName = p.Name
		}
		if p.Icon != "" {
			icon := p.Icon
			app.IconPath = &icon
		}
		apps = append(apps, app)
	}

	slices.SortFunc(apps, func(a, b domain.InstalledApp) int {
		if c := cmp.Compare(a.AppName, b.AppName); c != 0 {
			return c
		}
		return cmp.Compare(a.PackageName, b.PackageName)
	})
	return apps, nil
}

func (r *Registry) LaunchIntent(_ context.Context, packageName string) (*platform.Intent, error) {
	pkgs, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	p, ok := pkgs[packageName]
	if !ok || !p.Launchable() {
		return nil, nil
	}
	return &platform.Intent{PackageName: p.Name, Activity: p.Activity}, nil
}

// Command returns the process to run for an intent.
func (r *Registry) Command(_ context.Context, intent platform.Intent) ([]string, error) {
	pkgs, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	p, ok := pkgs[intent.PackageName]
	if !ok || !p.Launchable() || p.Activity != intent.Activity {
		return nil, fmt.Errorf("%s/%s: %w", intent.PackageName, intent.Activity, platform.ErrPackageNotFound)
	}
	return slices.Clone(p.Command), nil
}

// Ping reports whether the registry file is readable.
func (r *Registry) Ping(_ context.Context) error {
	_, err := r.snapshot()
	return err
}
