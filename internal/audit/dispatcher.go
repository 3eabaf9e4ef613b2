package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls the relay between the session manager and a sink.
type Config struct {
	Enabled bool
	// BufferSize is the number of session events that may wait for the
	// sink. Values below one mean one.
	BufferSize int
	// DropIfFull loses events instead of stalling the session operation
	// that emitted them when the buffer is full.
	DropIfFull bool
}

// Dispatcher relays session events to one sink from a single goroutine.
// Events reach the sink in the order the manager emitted them.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	// mu is held shared by emitters and exclusively by Close, so the
	// queue is never closed under a sender.
	mu      sync.RWMutex
	queue   chan Event
	closing chan struct{}
	drained chan struct{}
	closed  atomic.Bool
	once    sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts the relay goroutine. A disabled cfg yields a nil
// Dispatcher, whose methods are all no-ops.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		closing:    make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go d.relay()
	return d
}

// relay runs until Close closes the queue and everything queued before it
// has reached the sink.
func (d *Dispatcher) relay() {
	defer close(d.drained)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
		d.delivered.Add(1)
	}
}

// Emit queues event for the sink. When the buffer is full it either drops
// the event (DropIfFull) or waits until there is room, ctx ends or the
// dispatcher closes; the last two count as drops. Emit after Close is
// ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return
	}

	select {
	case d.queue <- event:
		return
	default:
	}
	if d.dropIfFull {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.closing:
		d.dropped.Add(1)
	}
}

// Close rejects further events, releases emitters waiting for room and
// returns once every queued event has been handed to the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.closing)
		d.mu.Lock()
		close(d.queue)
		d.mu.Unlock()
	})
	<-d.drained
}

// Dropped returns the number of events that never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns the number of events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
