package lighting

import (
	"sync"
)

// FlushQueue serializes a host's flushes on one worker goroutine. Frames submitted
// while a send is in progress are merged per device, the newest frame winning, and go
// out together in the next send. A device therefore always ends on the frame of the
// last submit that touched it.
type FlushQueue[T any] struct {
	send func(batch map[DeviceID]T) error

	mu      sync.Mutex
	pending map[DeviceID]T
	waiters []func(error)
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewFlushQueue starts the worker. send is only ever called from the worker goroutine.
func NewFlushQueue[T any](send func(batch map[DeviceID]T) error) *FlushQueue[T] {
	q := &FlushQueue[T]{
		send:    send,
		pending: make(map[DeviceID]T),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit queues frames and returns immediately. done, if not nil, is called from
// another goroutine with the result of the send that carried them.
func (q *FlushQueue[T]) Submit(frames map[DeviceID]T, done func(error)) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		if done != nil {
			go done(NewTransportError("flush", CodeNotConnected, nil))
		}
		return
	}
	for id, f := range frames {
		q.pending[id] = f
	}
	if done != nil {
		q.waiters = append(q.waiters, done)
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *FlushQueue[T]) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			q.fail()
			return
		case <-q.wake:
		}

		q.mu.Lock()
		batch := q.pending
		waiters := q.waiters
		q.pending = make(map[DeviceID]T)
		q.waiters = nil
		q.mu.Unlock()

		err := q.send(batch)
		for _, w := range waiters {
			w(err)
		}
	}
}

// fail reports not connected to everyone still waiting at shutdown.
func (q *FlushQueue[T]) fail() {
	q.mu.Lock()
	waiters := q.waiters
	q.waiters = nil
	q.pending = make(map[DeviceID]T)
	q.mu.Unlock()

	err := NewTransportError("flush", CodeNotConnected, nil)
	for _, w := range waiters {
		w(err)
	}
}

// Close stops the worker after the send in progress. Frames not yet sent are
// dropped. Close is idempotent.
func (q *FlushQueue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stop)
	<-q.done
}
