package input

import (
	"log/slog"
	"sync"
)

// Queue is a Dispatcher backed by a single worker goroutine. Posted
// functions run one at a time in post order.
type Queue struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewQueue starts the worker.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Post enqueues fn. Functions posted after Close are dropped.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Sync blocks until every function posted before it has run.
func (q *Queue) Sync() {
	ch := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.pending = append(q.pending, func() { close(ch) })
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-ch
}

// Close runs what is already queued and stops the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for range q.wake {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			q.invoke(fn)
		}
		if closed {
			return
		}
	}
}

func (q *Queue) invoke(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			q.logger.Error("dispatched function panicked", "panic", rec)
		}
	}()
	fn()
}
