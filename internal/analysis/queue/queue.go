// Package queue holds the bounded hand-off between audio capture and
// classification.
package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/myaudio"
	"github.com/tphakala/birdnet-listener/internal/observability/metrics"
)

// ErrClosed is returned by Pop once the queue is closed and drained.
var ErrClosed = errors.NewStd("window queue closed")

// WindowQueue is a FIFO of fixed capacity. Push never blocks: when the
// queue is full the oldest window is evicted so that capture always
// keeps the most recent audio.
type WindowQueue struct {
	mu       sync.Mutex
	items    []myaudio.Window
	capacity int
	dropped  uint64
	closed   bool
	ready    chan struct{}

	metrics *metrics.PipelineMetrics
	dropLog *rate.Limiter
	log     logger.Logger
}

// New returns a queue holding at most capacity windows.
func New(capacity int, m *metrics.PipelineMetrics) *WindowQueue {
	capacity = max(capacity, 1)
	return &WindowQueue{
		items:    make([]myaudio.Window, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		metrics:  m,
		dropLog:  rate.NewLimiter(rate.Every(10*time.Second), 1),
		log:      logger.Global().Module("analysis").Module("queue"),
	}
}

// Push adds w and reports whether an older window had to be dropped.
// Windows pushed after Close are discarded.
func (q *WindowQueue) Push(w myaudio.Window) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	var evicted *myaudio.Window
	if len(q.items) == q.capacity {
		old := q.items[0]
		evicted = &old
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
	}
	q.items = append(q.items, w)
	depth, dropped := len(q.items), q.dropped
	q.mu.Unlock()

	q.signal()
	q.metrics.RecordWindowCaptured()
	q.metrics.SetQueueDepth(depth)

	if evicted == nil {
		return false
	}
	q.metrics.RecordWindowDropped(metrics.StageQueue)
	if q.dropLog.Allow() {
		q.log.Warn("analysis queue full, dropped oldest window",
			logger.String("window_id", evicted.ID.String()),
			logger.Time("window_start", evicted.Start),
			logger.Uint64("dropped_total", dropped))
	}
	return true
}

// Pop blocks until a window is available, the queue is closed and empty,
// or ctx is done.
func (q *WindowQueue) Pop(ctx context.Context) (myaudio.Window, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			w := q.items[0]
			copy(q.items, q.items[1:])
			q.items = q.items[:len(q.items)-1]
			depth := len(q.items)
			q.mu.Unlock()

			if depth > 0 {
				q.signal()
			}
			q.metrics.SetQueueDepth(depth)
			return w, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return myaudio.Window{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return myaudio.Window{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Close stops accepting windows. Windows already queued can still be popped.
func (q *WindowQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of queued windows.
func (q *WindowQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many windows were evicted since the queue was created.
func (q *WindowQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *WindowQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
