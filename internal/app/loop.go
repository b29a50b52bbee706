package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrLoopStopped = errors.New("event loop stopped")

// Loop runs submitted tasks one at a time on a single goroutine.
// Everything that touches room membership goes through it, which is what
// lets Registry and core.Multiplexer go without locks. Tasks from one
// submitter run in submission order.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

func NewLoop(queue int) *Loop {
	if queue < 0 {
		queue = 0
	}
	return &Loop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until ctx is done. Call it once.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	log.Info().Str("module", "app.loop").Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.loop").Msg("event loop stopped")
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "app.loop").Interface("panic", r).Msg("task panicked")
		}
	}()
	fn()
}

// Submit enqueues fn. It blocks while the queue is full and returns false
// once the loop has stopped.
func (l *Loop) Submit(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	ok := l.Submit(func() {
		defer close(finished)
		fn()
	})
	if !ok {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

func (l *Loop) Done() <-chan struct{} { return l.done }
