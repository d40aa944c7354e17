// Package lifecycle scopes background work and teardown to an owner such as
// an open claim view. Closing the scope cancels its context and runs the
// registered teardown hooks in reverse registration order.
package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Coordinator manages the background goroutines and teardown hooks of one scope.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	hooks  []func()
	closed bool
}

// New creates a Coordinator whose context derives from parent.
func New(parent context.Context) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the scope's context, cancelled on Close.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Go runs fn on its own goroutine with the scope's context. Shutdown waits
// for it to return.
func (c *Coordinator) Go(fn func(ctx context.Context)) {
	c.wg.Go(func() { fn(c.ctx) })
}

// OnClose registers a teardown hook. Hooks registered after Close run
// immediately.
func (c *Coordinator) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Closed reports whether Close has been called.
func (c *Coordinator) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close cancels the context and runs teardown hooks, last registered first.
// It is safe to call more than once; only the first call runs hooks.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	c.cancel()
	for _, fn := range slices.Backward(hooks) {
		fn()
	}
}

// Shutdown closes the scope and waits for goroutines started with Go to
// return within the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
