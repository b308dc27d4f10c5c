package transport

import (
	"context"
	"sync"
)

// dispatcher runs queued functions one at a time, in the order they were queued. Queuing never
// blocks, so functions may be queued from within a running one.
type dispatcher struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{wake: make(chan struct{}, 1)}
}

func (d *dispatcher) enqueue(fns ...func()) {
	if len(fns) == 0 {
		return
	}
	d.mu.Lock()
	d.pending = append(d.pending, fns...)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) next() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil, false
	}
	fn := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	return fn, true
}

func (d *dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}
		for {
			if ctx.Err() != nil {
				return
			}
			fn, ok := d.next()
			if !ok {
				break
			}
			fn()
		}
	}
}
