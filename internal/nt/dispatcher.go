package nt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/ntcore/internal/engine"
)

// pollerOps binds a dispatcher to one engine listener category.
type pollerOps[N any] struct {
	create  func() engine.PollerHandle
	poll    func(engine.PollerHandle) ([]N, error)
	cancel  func(engine.PollerHandle)
	destroy func(engine.PollerHandle)

	// key routes a notification to the callback registered under it.
	key func(N) uint32
}

// dispatcher runs callbacks for one listener category of one instance.
//
// State machine: NotStarted -> Running on the first add; Running ->
// Stopping -> Stopped on stop; Running -> Stopped when the engine reports a
// hard failure. add in Stopped starts a new worker with a new poller.
//
// mu is held while registering with the engine and storing the callback,
// and the worker takes mu to look callbacks up, so a notification raised
// during registration is never dispatched before its callback is stored.
type dispatcher[N any] struct {
	cat    Category
	inst   engine.InstanceHandle
	ops    pollerOps[N]
	logger *slog.Logger

	mu        sync.Mutex
	state     ListenerState
	closed    bool
	poller    engine.PollerHandle
	done      chan struct{}
	stopped   chan struct{}
	callbacks map[uint32]func(N)
}

func newDispatcher[N any](cat Category, inst engine.InstanceHandle, ops pollerOps[N]) *dispatcher[N] {
	return &dispatcher[N]{
		cat:       cat,
		inst:      inst,
		ops:       ops,
		logger:    slog.Default().With("category", cat.String(), "instance", inst),
		callbacks: make(map[uint32]func(N)),
	}
}

// State returns the current lifecycle state.
func (d *dispatcher[N]) State() ListenerState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// add starts the worker if needed, then registers cb under the key returned
// by register. register receives the category's poller.
func (d *dispatcher[N]) add(op string, register func(engine.PollerHandle) (uint32, error), cb func(N)) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, errClosed(op)
	}
	if d.state == Stopping {
		return 0, &Error{Code: ErrCodeInvalidState, Op: op, Message: fmt.Sprintf("%s listeners are stopping", d.cat)}
	}
	if d.state != Running {
		if err := d.startLocked(op); err != nil {
			return 0, err
		}
	}

	key, err := register(d.poller)
	if err != nil {
		return 0, err
	}
	d.callbacks[key] = cb
	return key, nil
}

// remove forgets the callback under key and unregisters it from the engine.
func (d *dispatcher[N]) remove(key uint32, unregister func(uint32)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.callbacks[key]; !ok {
		return
	}
	delete(d.callbacks, key)
	if unregister != nil {
		unregister(key)
	}
}

func (d *dispatcher[N]) startLocked(op string) error {
	p := d.ops.create()
	if p == 0 {
		return &Error{Code: ErrCodeEngineFailure, Op: op, Err: engine.ErrInvalidHandle}
	}
	d.poller = p
	d.done = make(chan struct{})
	d.state = Running
	d.logger.Info("listener loop started", "poller", p)

	go d.run(p, d.done)
	return nil
}

func (d *dispatcher[N]) run(p engine.PollerHandle, done chan struct{}) {
	defer close(done)

	for {
		events, err := d.ops.poll(p)
		if err != nil {
			if d.finish(p, err) {
				return
			}
			continue
		}
		for _, ev := range events {
			d.mu.Lock()
			cb := d.callbacks[d.ops.key(ev)]
			d.mu.Unlock()
			if cb != nil {
				d.invoke(cb, ev)
			}
		}
	}
}

// finish handles a poll error and reports whether the worker must exit.
// A cancel that stop did not ask for is ignored. A hard failure moves the
// category to Stopped; the application must re-subscribe to restart it.
func (d *dispatcher[N]) finish(p engine.PollerHandle, err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == Stopping {
		return true
	}
	if errors.Is(err, engine.ErrPollCancelled) {
		d.logger.Debug("spurious poll cancel ignored", "poller", p)
		return false
	}

	d.logger.Error("listener loop failed", "poller", p, "error", err)
	d.ops.destroy(p)
	d.state = Stopped
	d.poller = 0
	d.callbacks = make(map[uint32]func(N))
	return true
}

func (d *dispatcher[N]) invoke(cb func(N), ev N) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener callback panicked", "panic", r)
		}
	}()
	cb(ev)
}

// stop cancels the worker's poll, joins it and destroys the poller, which
// drops every listener of the category. A stop that finds another stop in
// progress waits for it to finish. In every case the last worker has exited
// when stop returns.
func (d *dispatcher[N]) stop() {
	d.mu.Lock()
	switch d.state {
	case Stopping:
		stopped := d.stopped
		d.mu.Unlock()
		<-stopped
		return
	case Running:
	default:
		done := d.done
		d.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	d.state = Stopping
	d.stopped = make(chan struct{})
	p, done, stopped := d.poller, d.done, d.stopped
	d.mu.Unlock()

	d.ops.cancel(p)
	<-done
	d.ops.destroy(p)

	d.mu.Lock()
	d.state = Stopped
	d.poller = 0
	d.callbacks = make(map[uint32]func(N))
	d.mu.Unlock()
	close(stopped)

	d.logger.Info("listener loop stopped", "poller", p)
}

// close stops the worker and rejects later registrations.
func (d *dispatcher[N]) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.stop()
}
