package service

import (
	"context"
	"sync"
)

// controlQueueSize bounds queued operations before post blocks.
const controlQueueSize = 256

// control runs queued operations one at a time on a single goroutine.
type control struct {
	ops      chan func()
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newControl() *control {
	c := &control{
		ops:     make(chan func(), controlQueueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *control) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.quit:
			return
		case op := <-c.ops:
			op()
		}
	}
}

// post queues fn, waiting for room if the queue is full. It reports false
// once the loop has stopped.
func (c *control) post(fn func()) bool {
	select {
	case <-c.stopped:
		return false
	default:
	}
	select {
	case c.ops <- fn:
		return true
	case <-c.stopped:
		return false
	}
}

// tryPost queues fn unless the queue is full or the loop has stopped.
func (c *control) tryPost(fn func()) bool {
	select {
	case <-c.stopped:
		return false
	default:
	}
	select {
	case c.ops <- fn:
		return true
	default:
		return false
	}
}

// do runs fn on the loop and waits for its result. If ctx ends first, fn
// may still run later.
func (c *control) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !c.post(func() { done <- fn() }) {
		return ErrNotStarted
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		select {
		case err := <-done:
			return err
		default:
			return ErrNotStarted
		}
	}
}

// stop ends the loop after the operation in progress. Queued operations
// are dropped.
func (c *control) stop() {
	c.stopOnce.Do(func() { close(c.quit) })
	<-c.stopped
}
