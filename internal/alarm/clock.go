package alarm

import (
	"container/heap"
	"context"
	"log/slog"
	"time"
)

// maxSleepCap bounds every sleep so wall-clock steps (NTP, suspend, DST) are
// noticed within a minute.
const maxSleepCap = 60 * time.Second

type ClockOptions struct {
	// ExactAllowed gates SetExact. Nil means always allowed.
	ExactAllowed func() bool
	// InexactSlack is the batching granularity for inexact timers: they fire
	// at the first multiple of InexactSlack at or after the requested instant.
	InexactSlack time.Duration
	Logger       *slog.Logger
}

type commandKind int

const (
	cmdSet commandKind = iota
	cmdCancel
	cmdQuery
)

// Every operation goes through one channel so a caller's Cancel, Set and
// Pending are applied in the order they were issued.
type command struct {
	kind  commandKind
	ev    event
	id    int64
	reply chan event
}

// Clock is an in-process Facility. A single goroutine owns a min-heap of
// registrations and sleeps until the earliest one is due, then hands its
// payload to the fire callback on a fresh goroutine.
type Clock struct {
	ctx    context.Context
	opts   ClockOptions
	logger *slog.Logger

	cmds chan command
}

// NewClock starts the clock goroutine; it stops when ctx is done.
func NewClock(ctx context.Context, fire func(Payload), opts ClockOptions) *Clock {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Clock{
		ctx:    ctx,
		opts:   opts,
		logger: logger.With("component", "alarm_clock"),
		cmds:   make(chan command, 64),
	}
	go c.run(fire)
	return c
}

func (c *Clock) CanScheduleExact() bool {
	return c.opts.ExactAllowed == nil || c.opts.ExactAllowed()
}

func (c *Clock) SetExact(at time.Time, p Payload) error {
	if !c.CanScheduleExact() {
		return ErrExactNotPermitted
	}
	return c.set(event{triggerAt: at, payload: p})
}

func (c *Clock) SetInexact(at time.Time, p Payload) error {
	return c.set(event{triggerAt: inexactTrigger(at, c.opts.InexactSlack), payload: p})
}

func (c *Clock) Cancel(id int64) {
	_ = c.send(command{kind: cmdCancel, id: id})
}

func (c *Clock) Pending(id int64) (time.Time, bool) {
	reply := make(chan event, 1)
	if err := c.send(command{kind: cmdQuery, id: id, reply: reply}); err != nil {
		return time.Time{}, false
	}
	select {
	case ev, ok := <-reply:
		return ev.triggerAt, ok
	case <-c.ctx.Done():
		return time.Time{}, false
	}
}

func (c *Clock) set(ev event) error {
	return c.send(command{kind: cmdSet, ev: ev})
}

func (c *Clock) send(cmd command) error {
	select {
	case c.cmds <- cmd:
		return nil
	case <-c.ctx.Done():
		return ErrStopped
	}
}

func (c *Clock) run(fire func(Payload)) {
	h := &eventHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			return nil
		}
		dur := time.Until((*h)[0].triggerAt)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-c.ctx.Done():
			if h.Len() > 0 {
				c.logger.Info("alarm clock stopped with registrations outstanding", "count", h.Len())
			}
			return

		case cmd := <-c.cmds:
			switch cmd.kind {
			case cmdSet:
				h.removeByID(cmd.ev.payload.ScheduleID)
				heap.Push(h, cmd.ev)
				timerCh = resetTimer()
			case cmdCancel:
				if h.removeByID(cmd.id) {
					timerCh = resetTimer()
				}
			case cmdQuery:
				if ev, ok := h.find(cmd.id); ok {
					cmd.reply <- ev
				}
				close(cmd.reply)
			}

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].triggerAt.After(now) {
				ev := heap.Pop(h).(event)
				c.logger.Debug("alarm fired",
					"schedule_id", ev.payload.ScheduleID,
					"package", ev.payload.PackageName,
					"late_by", now.Sub(ev.triggerAt),
				)
				go fire(ev.payload)
			}
			timerCh = resetTimer()
		}
	}
}

func inexactTrigger(at time.Time, slack time.Duration) time.Time {
	if slack <= 0 {
		return at
	}
	t := at.Truncate(slack)
	if t.Before(at) {
		t = t.Add(slack)
	}
	return t
}
