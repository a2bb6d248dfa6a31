// Package lifecycle tracks asynchronous work started from inbound platform
// events so the host can delay teardown until it completes.
package lifecycle

import (
	"context"
	"sync"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
)

// Ticket is the handle for one unit of in-flight work. Finish is idempotent.
type Ticket struct {
	name    string
	tracker *Tracker
	once    sync.Once
	done    chan struct{}
}

func (t *Ticket) Name() string { return t.name }

// Finish releases the ticket. Safe to call more than once.
func (t *Ticket) Finish() {
	t.once.Do(func() {
		close(t.done)
		if t.tracker != nil {
			t.tracker.wg.Done()
			metrics.WorkInFlight.WithLabelValues(t.name).Dec()
		}
	})
}

// Done is closed once Finish has been called.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the ticket finishes or ctx is done.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tracker counts outstanding tickets.
type Tracker struct {
	wg sync.WaitGroup
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin opens a ticket named after the kind of work it covers.
func (tr *Tracker) Begin(name string) *Ticket {
	tr.wg.Add(1)
	metrics.WorkInFlight.WithLabelValues(name).Inc()
	return &Ticket{name: name, tracker: tr, done: make(chan struct{})}
}

// Wait blocks until every open ticket finishes or ctx is done.
func (tr *Tracker) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		tr.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finished returns a ticket that is already done, for paths that had no async work.
func Finished(name string) *Ticket {
	t := &Ticket{name: name, done: make(chan struct{})}
	t.Finish()
	return t
}
