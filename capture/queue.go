package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/envutil"
	"go2tv.app/screencap/internal/logger"
)

const defaultQueueWarnDepth = 120

// frameQueue is the unbounded FIFO between a backend's producer thread and
// the consumer calling GetNextFrame. push never blocks; a slow consumer makes
// the backlog grow, which is logged but never capped.
type frameQueue struct {
	mu     sync.Mutex
	items  []frame.Frame
	closed bool
	err    error

	notify chan struct{}
	done   chan struct{}

	warnDepth int
	log       *zerolog.Logger

	pushed      atomic.Uint64
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	lastWarnLog atomic.Int64
	lastDropLog atomic.Int64
}

func newFrameQueue(log *zerolog.Logger) *frameQueue {
	if log == nil {
		log = logger.WithComponent("queue")
	}
	return &frameQueue{
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		warnDepth: envutil.Int(envutil.KnobQueueWarn, defaultQueueWarnDepth, 1, 1<<20),
		log:       log,
	}
}

// push appends f. It reports false once the queue has been closed.
func (q *frameQueue) push(f frame.Frame) bool {
	if f == nil {
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, f)
	depth := len(q.items)
	q.mu.Unlock()

	q.pushed.Add(1)
	select {
	case q.notify <- struct{}{}:
	default:
	}

	if depth >= q.warnDepth && logger.ShouldLog(&q.lastWarnLog, time.Second) {
		q.log.Warn().
			Int("depth", depth).
			Uint64("pushed", q.pushed.Load()).
			Uint64("delivered", q.delivered.Load()).
			Msg("frame backlog growing; consumer is slower than capture")
	}
	return true
}

// discard counts a frame rejected at the backend boundary.
func (q *frameQueue) discard(reason string, err error) {
	total := q.dropped.Add(1)
	if logger.ShouldLog(&q.lastDropLog, time.Second) {
		q.log.Debug().Err(err).Str("reason", reason).Uint64("total", total).Msg("dropped_frame")
	}
}

// fail records an asynchronous stream error and ends the session. Frames
// already queued are still delivered before the error.
func (q *frameQueue) fail(err error) {
	if err == nil {
		return
	}
	q.close(err)
}

// close ends the session. The first non-nil err is kept.
func (q *frameQueue) close(err error) {
	q.mu.Lock()
	if err != nil && q.err == nil {
		q.err = err
	}
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
}

// failure returns the recorded stream error, if any.
func (q *frameQueue) failure() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// next blocks until a frame is available, the queue is closed and drained,
// or ctx is done.
func (q *frameQueue) next(ctx context.Context) (frame.Frame, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			f := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			q.delivered.Add(1)
			return f, nil
		}
		if q.closed {
			err := q.err
			q.mu.Unlock()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCaptureEnded, err)
			}
			return nil, ErrCaptureEnded
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *frameQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
