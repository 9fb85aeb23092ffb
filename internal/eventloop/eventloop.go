// Package eventloop implements the cooperative, single-goroutine scheduler
// that every other component (Timer, UdpEndpoint, Transport) runs on top
// of. All state owned by a component bound to one EventLoop is touched
// only from thunks run on that loop's goroutine, so components never need
// their own locking: activations never overlap.
package eventloop

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kulve/pleco-go/internal/logger"
)

// defaultQueueDepth bounds the pending-thunk channel so a runaway producer
// blocks instead of growing memory without limit.
const defaultQueueDepth = 4096

// EventLoop drains a FIFO queue of thunks on a single goroutine. Post is
// safe to call from any goroutine; the thunks themselves always run on the
// loop's own goroutine, in the order they were posted.
type EventLoop struct {
	queue  chan func()
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
	cancel context.CancelFunc
}

// New creates an EventLoop with the default queue depth. Run must be
// called (typically in its own goroutine) before posted thunks execute.
func New() *EventLoop {
	return &EventLoop{
		queue: make(chan func(), defaultQueueDepth),
		done:  make(chan struct{}),
		log:   logger.Logger(),
	}
}

// Post enqueues fn to run on the loop's goroutine. Post never blocks the
// caller on fn's execution; it only blocks if the queue is full, which
// indicates the loop is falling behind. Post on a stopped loop is a no-op.
func (l *EventLoop) Post(fn func()) {
	if l == nil || fn == nil {
		return
	}
	select {
	case l.queue <- fn:
	case <-l.done:
		l.log.Debug("eventloop: dropped post after stop")
	}
}

// Run drains the queue until ctx is cancelled or Stop is called. Run
// blocks; callers run it in a dedicated goroutine. Thunks are executed in
// the order they were posted, one at a time, with no reentrancy: a thunk
// that calls Post merely enqueues another thunk for a later turn.
func (l *EventLoop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.stopOnce()
			return
		case <-l.done:
			return
		case fn := <-l.queue:
			if l.Stopped() {
				return
			}
			fn()
		}
	}
}

// Stop halts the loop. Safe to call multiple times and from any goroutine.
// Thunks already posted but not yet run are discarded.
func (l *EventLoop) Stop() {
	if l == nil {
		return
	}
	l.stopOnce()
}

func (l *EventLoop) stopOnce() {
	l.once.Do(func() {
		close(l.done)
	})
}

// Stopped reports whether Stop has been called.
func (l *EventLoop) Stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
