// Package throttle implements ThrottlingQueue: a bounded FIFO drained by a
// single worker at a minimum inter-item interval, the way the teacher's
// eth/handler.go feeds broadcast work through bounded channels drained by
// one goroutine per peer rather than one goroutine per message.
package throttle

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Handler processes one dequeued item. Handlers never run concurrently
// with each other on the same Queue.
type Handler func(item interface{})

// Queue is ThrottlingQueue. Enqueue never blocks: once length reaches
// Capacity, the oldest queued item is dropped to make room (drop-oldest,
// per the implementer's-choice contract — chosen here because a stalled
// peer should see its most recent requests served, not starved behind
// requests it may have already abandoned).
type Queue struct {
	mu       sync.Mutex
	items    []interface{}
	capacity int
	interval time.Duration
	handler  Handler
	log      log.Logger

	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// New builds a Queue and starts its drain worker. capacity <= 0 means
// unbounded (no shedding). Callers must call Close when the owning Peer
// is destroyed.
func New(interval time.Duration, capacity int, handler Handler, logger log.Logger) *Queue {
	if logger == nil {
		logger = log.Root()
	}
	q := &Queue{
		capacity: capacity,
		interval: interval,
		handler:  handler,
		log:      logger,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue appends item, dropping the oldest queued item first if the
// queue is already at capacity.
func (q *Queue) Enqueue(item interface{}) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		dropped := q.items[0]
		q.items = q.items[1:]
		q.log.Warn("throttling queue full, dropping oldest item", "dropped", dropped, "interval", common.PrettyDuration(q.interval))
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the drain worker. Items still queued are discarded without
// being handled.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	close(q.done)
}

func (q *Queue) run() {
	var lastStart time.Time
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}

		for {
			item, ok := q.dequeue()
			if !ok {
				break
			}
			if !lastStart.IsZero() {
				if wait := q.interval - time.Since(lastStart); wait > 0 {
					select {
					case <-time.After(wait):
					case <-q.done:
						return
					}
				}
			}
			lastStart = time.Now()
			q.handler(item)
		}
	}
}

func (q *Queue) dequeue() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}
