package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"subflow/internal/faults"
	"subflow/internal/logging"
)

// stageQueue couples one bounded channel with its fixed worker pool. The
// channel capacity is the backpressure boundary: enqueue blocks when the
// downstream phase cannot keep up.
type stageQueue struct {
	phase    Phase
	in       chan *Item
	next     *stageQueue
	handler  Handler
	workers  int
	retry    RetryPolicy
	signal   *Signal
	logger   *slog.Logger
	terminal func(*Item)

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup

	inflight  atomic.Int64
	processed atomic.Int64
}

func newStageQueue(phase Phase, capacity, workers int, handler Handler, retry RetryPolicy, signal *Signal, logger *slog.Logger, terminal func(*Item)) *stageQueue {
	if capacity < 1 {
		capacity = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &stageQueue{
		phase:    phase,
		in:       make(chan *Item, capacity),
		handler:  handler,
		workers:  workers,
		retry:    retry,
		signal:   signal,
		logger:   logging.NewComponentLogger(logger, "queue."+string(phase)),
		terminal: terminal,
		quit:     make(chan struct{}),
	}
}

// enqueue blocks until the queue accepts the item or cancellation is
// requested. A cancelled enqueue marks the item terminal so submitters and
// forwarding workers never strand an item.
func (q *stageQueue) enqueue(item *Item) {
	select {
	case q.in <- item:
	case <-q.signal.Done():
		item.MarkCancelled(q.phase, q.signal.Reason())
		q.terminal(item)
	}
}

func (q *stageQueue) start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// stop asks workers to exit after their current item and waits up to
// timeout for them. Returns false if a worker was still busy at the
// deadline.
func (q *stageQueue) stop(timeout time.Duration) bool {
	q.quitOnce.Do(func() { close(q.quit) })
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// drainCancelled empties items still buffered after the workers stopped,
// marking each cancelled so the run's accounting closes out.
func (q *stageQueue) drainCancelled(reason string) {
	for {
		select {
		case item := <-q.in:
			item.MarkCancelled(q.phase, reason)
			q.terminal(item)
		default:
			return
		}
	}
}

func (q *stageQueue) queued() int64 {
	return int64(len(q.in))
}

func (q *stageQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case <-q.signal.Done():
			return
		case item := <-q.in:
			q.process(ctx, item)
		}
	}
}

// process drives one item through the phase: invoke the handler, retry
// within the category budget, and either forward the item or settle it.
func (q *stageQueue) process(ctx context.Context, item *Item) {
	q.inflight.Add(1)
	defer q.inflight.Add(-1)

	if q.signal.Triggered() {
		item.MarkCancelled(q.phase, q.signal.Reason())
		q.terminal(item)
		return
	}

	log := q.logger.With(
		logging.String(logging.FieldItemID, item.ID()),
		logging.String(logging.FieldPhase, string(q.phase)),
		logging.String(logging.FieldBatchID, item.BatchID),
	)

	for {
		attempt := item.RecordAttempt(q.phase)
		err := q.invoke(ctx, item, log)
		if err == nil {
			if item.Terminal() {
				// Handler settled the item itself (skip).
				q.terminal(item)
				return
			}
			q.processed.Add(1)
			q.forward(item)
			return
		}

		if faults.IsCancelled(err) || q.signal.Triggered() {
			reason := q.signal.Reason()
			if reason == "" {
				reason = err.Error()
			}
			item.MarkCancelled(q.phase, reason)
			q.terminal(item)
			return
		}

		cat := faults.CategoryOf(err)
		budget := faults.RetryBudget(cat, q.retry.MaxAttempts)
		if attempt >= budget {
			log.Error("phase failed",
				logging.String(logging.FieldCategory, string(cat)),
				logging.Int("attempts", attempt),
				logging.Error(err))
			item.MarkFailed(q.phase, cat, err.Error())
			q.terminal(item)
			return
		}

		delay := q.retry.Delay(attempt, err)
		log.Warn("attempt failed, retrying",
			logging.String(logging.FieldCategory, string(cat)),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		select {
		case <-q.signal.Done():
			item.MarkCancelled(q.phase, q.signal.Reason())
			q.terminal(item)
			return
		case <-q.quit:
			item.MarkCancelled(q.phase, "pipeline stopping")
			q.terminal(item)
			return
		case <-time.After(delay):
		}
	}
}

// invoke runs the handler with panic containment: a panicking handler
// poisons one attempt, not the worker pool.
func (q *stageQueue) invoke(ctx context.Context, item *Item, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
			err = faults.New(faults.Unknown, fmt.Sprintf("%s handler panic: %v", q.phase, r))
		}
	}()
	return q.handler.Process(ctx, item)
}

func (q *stageQueue) forward(item *Item) {
	if q.next == nil {
		item.MarkSucceeded(q.phase)
		q.terminal(item)
		return
	}
	q.next.enqueue(item)
}
