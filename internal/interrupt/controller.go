// Package interrupt implements the two-stage stop signal shared by the
// dispatcher, the tasks and the attack workers.
//
// The first interrupt asks every component to stop starting new work; the
// second tells the dispatcher to stop waiting for in-flight work. Nothing is
// ever killed: running probes finish on their own.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// State is the controller's position in running -> stop -> force_stop
type State int32

const (
	Running State = iota
	Stop
	ForceStop
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stop:
		return "stop"
	case ForceStop:
		return "force_stop"
	default:
		return "unknown"
	}
}

// Controller holds the stop state. It is safe for concurrent use; the zero
// value is not usable, create one with New.
type Controller struct {
	state     atomic.Int32
	mu        sync.Mutex
	stopCh    chan struct{}
	forceCh   chan struct{}
	listeners []func(State)
}

// New creates a controller in the running state
func New() *Controller {
	return &Controller{
		stopCh:  make(chan struct{}),
		forceCh: make(chan struct{}),
	}
}

// State returns the current state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Running reports whether no interrupt has been received yet
func (c *Controller) Running() bool {
	return c.State() == Running
}

// StopRequested is closed on the first interrupt
func (c *Controller) StopRequested() <-chan struct{} {
	return c.stopCh
}

// ForceStopRequested is closed on the second interrupt
func (c *Controller) ForceStopRequested() <-chan struct{} {
	return c.forceCh
}

// OnChange registers fn to be called after every state transition
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Interrupt advances the state by one step. Further interrupts after
// force_stop are ignored. It returns the new state.
func (c *Controller) Interrupt() State {
	c.mu.Lock()
	cur := c.State()
	if cur == ForceStop {
		c.mu.Unlock()
		return cur
	}

	next := cur + 1
	c.state.Store(int32(next))
	switch next {
	case Stop:
		close(c.stopCh)
	case ForceStop:
		close(c.forceCh)
	}
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// Notify calls Interrupt for every SIGINT or SIGTERM the process receives
// until ctx is done. The returned function stops listening.
func (c *Controller) Notify(ctx context.Context) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-sigCh:
				c.Interrupt()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		cancel()
		<-done
	}
}
