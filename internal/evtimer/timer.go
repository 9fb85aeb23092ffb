// Package evtimer implements the single repeating/one-shot timer type that
// Transport builds its resend and connection-timeout deadlines on top of.
// A Timer is always bound to one eventloop.EventLoop: its callback always
// runs as a thunk on that loop, so it never races with the rest of the
// owning component's state.
package evtimer

import (
	"context"
	"time"

	"github.com/kulve/pleco-go/internal/eventloop"
)

// Timer fires a callback on its owning EventLoop after an interval,
// optionally repeating. It is not safe to share a Timer between
// EventLoops; create one Timer per owner per concern (e.g. one per resend
// slot, one for the connection timeout).
type Timer struct {
	loop     *eventloop.EventLoop
	callback func()
	interval time.Duration
	repeat   bool

	cancel  context.CancelFunc
	genChan chan int
	gen     int
	active  bool
}

// New creates a Timer bound to loop. It is inactive until Start is called.
func New(loop *eventloop.EventLoop) *Timer {
	return &Timer{loop: loop, genChan: make(chan int, 1)}
}

// Start (re)arms the timer to fire callback after interval, repeating if
// repeating is true. Calling Start on an already-active timer restarts the
// deadline from now, per spec.md's "restart resets the deadline" rule.
func (t *Timer) Start(interval time.Duration, callback func(), repeating bool) {
	if t.cancel != nil {
		t.cancel()
	}
	t.interval = interval
	t.callback = callback
	t.repeat = repeating
	t.active = true
	t.gen++
	gen := t.gen

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.run(ctx, gen, interval)
}

// run sleeps for interval then posts the fire to the owning loop. It
// checks gen after waking so a Stop/Start that happened while sleeping
// does not cause a stale fire.
func (t *Timer) run(ctx context.Context, gen int, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		t.loop.Post(func() { t.fire(gen) })
	}
}

// fire runs on the owning EventLoop. It re-arms itself for repeating
// timers from the fire instant, not from when the callback finishes.
func (t *Timer) fire(gen int) {
	if gen != t.gen || !t.active {
		return
	}
	cb := t.callback
	if t.repeat {
		ctx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		go t.run(ctx, gen, t.interval)
	} else {
		t.active = false
	}
	if cb != nil {
		cb()
	}
}

// Stop disarms the timer. Safe to call on an inactive timer.
func (t *Timer) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.active = false
	t.gen++
}

// Active reports whether the timer is currently armed. Must be called
// from the owning loop's goroutine, like every other Timer method besides
// Start/Stop/New which only touch loop-confined state from that same
// goroutine in this codebase's usage pattern.
func (t *Timer) Active() bool { return t.active }
