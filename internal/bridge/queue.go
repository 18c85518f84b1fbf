package bridge

import (
	"sync"
	"sync/atomic"

	"icc.tech/pktbridge/internal/core"
)

// DefaultQueueSize bounds the capture queue when no size is configured.
const DefaultQueueSize = 10000

// Queue is the bounded FIFO buffer between the fast-path producers and
// the sender task. Enqueue never blocks: at capacity the record is
// rejected and the overflow counter incremented. Drain swaps the whole
// backlog out in one short critical section so producers keep enqueuing
// while the sender encodes.
type Queue struct {
	mu      sync.Mutex
	records []core.CaptureRecord
	bound   int

	overflows atomic.Uint64

	// notify wakes the sender; capacity 1 so a slow drain coalesces
	// signals instead of blocking producers.
	notify chan struct{}
}

// NewQueue creates a queue bounded at size records. Non-positive sizes
// fall back to DefaultQueueSize.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		records: make([]core.CaptureRecord, 0, size),
		bound:   size,
		notify:  make(chan struct{}, 1),
	}
}

// TryEnqueue appends rec and reports success. At capacity the record is
// dropped, the overflow counter incremented, and false returned without
// blocking.
func (q *Queue) TryEnqueue(rec core.CaptureRecord) bool {
	q.mu.Lock()
	if len(q.records) >= q.bound {
		q.mu.Unlock()
		q.overflows.Add(1)
		return false
	}
	q.records = append(q.records, rec)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Drain atomically removes and returns all queued records in enqueue
// order, handing ownership to the caller. The internal buffer is
// replaced so producers continue unimpeded.
func (q *Queue) Drain() []core.CaptureRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) == 0 {
		return nil
	}
	out := q.records
	q.records = make([]core.CaptureRecord, 0, q.bound)
	return out
}

// Clear discards any queued records. Used when the transport is torn
// down or reconfigured: the queue is not a replay log.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.records = q.records[:0]
	q.mu.Unlock()
}

// Notify returns the channel the sender task waits on for new work.
// The sender must still re-check its stop flag on a timeout.
func (q *Queue) Notify() <-chan struct{} { return q.notify }

// Len returns the current backlog length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Bound returns the configured capacity.
func (q *Queue) Bound() int { return q.bound }

// Overflows returns the monotonically non-decreasing overflow counter.
func (q *Queue) Overflows() uint64 { return q.overflows.Load() }
