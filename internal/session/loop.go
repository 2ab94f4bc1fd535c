package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLoopStopped is returned when an event is posted to a stopped loop.
var ErrLoopStopped = errors.New("event loop stopped")

// Scheduler delivers work onto the goroutine that owns a Controller.
type Scheduler interface {
	// Post queues fn. It reports false when the loop no longer accepts events.
	Post(fn func()) bool
	// After queues fn once d has elapsed.
	After(d time.Duration, fn func())
	// Go runs work off the loop and queues the closure it returns.
	Go(work func() func())
}

// Loop runs events one at a time, in the order they were posted.
type Loop struct {
	events chan func()
	quit   chan struct{}
	once   sync.Once

	// OnEvent runs on the loop after every event, typically to render.
	OnEvent func()
}

func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}

	return &Loop{
		events: make(chan func(), buffer),
		quit:   make(chan struct{}),
	}
}

func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case <-l.quit:
		return false
	case l.events <- fn:
		return true
	}
}

func (l *Loop) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		l.Post(fn)
	})
}

func (l *Loop) Go(work func() func()) {
	go func() {
		done := work()
		if done != nil {
			l.Post(done)
		}
	}()
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrLoopStopped
	case <-done:
		return nil
	}
}

// Run processes events until the context is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.quit:
			return nil
		case fn := <-l.events:
			fn()
			if l.OnEvent != nil {
				l.OnEvent()
			}
		}
	}
}

func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.quit)
	})
}
