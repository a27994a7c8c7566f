package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrLoopStopped = errors.New("event loop stopped")

// Loop runs posted funcs one at a time on the goroutine that calls Run.
// Everything that touches a Machine goes through it.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once

	pending atomic.Bool
}

func NewLoop(buffer int) *Loop {
	return &Loop{tasks: make(chan func(), buffer), done: make(chan struct{})}
}

// Post queues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// PostLatest queues fn unless a PostLatest task is already waiting, in
// which case fn is dropped. All callers share that one slot, so it only
// suits a single idempotent task such as Machine's reconcile. It never
// blocks and may be called from the loop itself.
func (l *Loop) PostLatest(fn func()) {
	if !l.pending.CompareAndSwap(false, true) {
		return
	}
	task := func() {
		l.pending.Store(false)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.done:
	default:
		go l.Post(task)
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.tasks <- wrapped:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes tasks until ctx is done. Tasks still queued are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
