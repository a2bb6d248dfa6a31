// Package stream has channel operators for coalescing bursty snapshot feeds.
package stream

import (
	"context"
	"time"
)

// Debounce forwards a value from in only after quiet has elapsed with no newer
// value. A pending value is flushed when in closes. The output closes when in
// closes or ctx is done.
func Debounce[T any](ctx context.Context, in <-chan T, quiet time.Duration) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)

		var (
			latest  T
			pending bool
			timer   *time.Timer
			fire    <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case v, ok := <-in:
				if !ok {
					if pending {
						select {
						case out <- latest:
						case <-ctx.Done():
						}
					}
					return
				}
				latest, pending = v, true
				if timer == nil {
					timer = time.NewTimer(quiet)
				} else {
					timer.Reset(quiet)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				if !pending {
					continue
				}
				pending = false
				select {
				case out <- latest:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Distinct drops values equal to the previously forwarded one.
func Distinct[T any](ctx context.Context, in <-chan T, equal func(a, b T) bool) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)

		var (
			last T
			seen bool
		)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				if seen && equal(last, v) {
					continue
				}
				last, seen = v, true
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
