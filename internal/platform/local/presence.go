package local

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
)

// Presence counts clients currently viewing the schedule list. The host is
// in the foreground while at least one is attached.
type Presence struct {
	n atomic.Int64
}

// Attach registers a viewer and returns its release func.
func (p *Presence) Attach() (detach func()) {
	p.n.Add(1)
	metrics.StreamClients.Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			p.n.Add(-1)
			metrics.StreamClients.Dec()
		})
	}
}

func (p *Presence) IsForeground(_ context.Context) bool {
	return p.n.Load() > 0
}

// Permissions is a fixed set of grants read from configuration.
type Permissions struct {
	Overlay     bool
	ExactAlarms bool
}

func (p Permissions) CanDrawOverlays() bool        { return p.Overlay }
func (p Permissions) CanScheduleExactAlarms() bool { return p.ExactAlarms }
