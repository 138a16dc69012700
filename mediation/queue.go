package mediation

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"midi-bridge/midi"
)

// DefaultQueueSize is the inbound queue capacity.
const DefaultQueueSize = 1024

// Queue merges events from every port listener into one stream for the
// engine. Push never blocks: when the queue is full the oldest queued event
// is dropped so device input threads never stall.
type Queue struct {
	ch      chan midi.PortEvent
	mu      sync.Mutex // serializes producers
	closed  bool
	dropped atomic.Uint64

	log      *zap.Logger
	overflow rate.Sometimes
	onDrop   func()
}

// NewQueue creates a queue. onDrop, if set, is called for every dropped event.
func NewQueue(capacity int, logger *zap.Logger, onDrop func()) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		ch:       make(chan midi.PortEvent, capacity),
		log:      logger,
		overflow: rate.Sometimes{First: 1, Interval: time.Second},
		onDrop:   onDrop,
	}
}

// Push enqueues ev. It is safe for concurrent use. Pushing after Close is a no-op.
func (q *Queue) Push(ev midi.PortEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	select {
	case q.ch <- ev:
		return
	default:
	}

	// Full. Only the consumer removes items, so after taking one out
	// there is room for ev.
	select {
	case <-q.ch:
		q.drop()
	default:
	}
	select {
	case q.ch <- ev:
	default:
		q.drop()
	}
}

func (q *Queue) drop() {
	n := q.dropped.Add(1)
	if q.onDrop != nil {
		q.onDrop()
	}
	q.overflow.Do(func() {
		q.log.Warn("inbound queue full, dropping oldest event",
			zap.Int("capacity", cap(q.ch)), zap.Uint64("dropped_total", n))
	})
}

// C is the consumer side.
func (q *Queue) C() <-chan midi.PortEvent {
	return q.ch
}

// Dropped counts events lost to overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) Len() int {
	return len(q.ch)
}

// Close ends the stream. Call it once the listeners have stopped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
