package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"subflow/internal/archive"
	"subflow/internal/journal"
	"subflow/internal/logging"
)

// Handlers supplies one handler per phase. All five are required.
type Handlers struct {
	Detect    Handler
	Fetch     Handler
	Translate Handler
	Summarize Handler
	Publish   Handler
}

// Options configures one pipeline run. Zero values fall back to safe
// defaults; FailureLog and Tracker are optional but a production run wires
// both.
type Options struct {
	QueueCapacity    int
	DetectWorkers    int
	FetchWorkers     int
	TranslateWorkers int
	SummarizeWorkers int
	PublishWorkers   int
	Retry            RetryPolicy
	StopTimeout      time.Duration
	WorkDir          string
	// Force disables the idempotence check at submission: items are
	// processed even when the archive says they already completed.
	Force bool

	FailureLog *journal.FailureLog
	Tracker    *archive.Tracker
	Logger     *slog.Logger
	// OnEvent observes terminal outcomes. It runs on a single dispatcher
	// goroutine and must not block on slow I/O; when the event buffer
	// fills, further events are dropped with a warning.
	OnEvent func(Event)
}

const eventBuffer = 256

// Orchestrator owns one run of the five-phase pipeline. It is single-use:
// after Stop or a completed drain, build a new one for the next run.
type Orchestrator struct {
	opts   Options
	signal *Signal
	logger *slog.Logger

	queues []*stageQueue
	first  *stageQueue

	pending sync.WaitGroup
	tally   *tally

	events       chan Event
	dispatchQuit chan struct{}
	dispatchWG   sync.WaitGroup

	mu    sync.Mutex
	state RunState

	startOnce  sync.Once
	finishOnce sync.Once
}

// New wires the five queues in pipeline order.
func New(handlers Handlers, opts Options) (*Orchestrator, error) {
	if handlers.Detect == nil || handlers.Fetch == nil || handlers.Translate == nil ||
		handlers.Summarize == nil || handlers.Publish == nil {
		return nil, errors.New("pipeline: all five phase handlers are required")
	}
	if opts.QueueCapacity < 1 {
		opts.QueueCapacity = 1
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	o := &Orchestrator{
		opts:         opts,
		signal:       NewSignal(),
		logger:       logging.NewComponentLogger(opts.Logger, "pipeline"),
		tally:        newTally(),
		events:       make(chan Event, eventBuffer),
		dispatchQuit: make(chan struct{}),
		state:        StateNotStarted,
	}

	specs := []struct {
		phase   Phase
		workers int
		handler Handler
	}{
		{PhaseDetect, opts.DetectWorkers, handlers.Detect},
		{PhaseFetch, opts.FetchWorkers, handlers.Fetch},
		{PhaseTranslate, opts.TranslateWorkers, handlers.Translate},
		{PhaseSummarize, opts.SummarizeWorkers, handlers.Summarize},
		{PhasePublish, opts.PublishWorkers, handlers.Publish},
	}
	o.queues = make([]*stageQueue, len(specs))
	for idx := len(specs) - 1; idx >= 0; idx-- {
		spec := specs[idx]
		q := newStageQueue(spec.phase, opts.QueueCapacity, spec.workers,
			spec.handler, opts.Retry, o.signal, opts.Logger, o.terminalize)
		if idx < len(specs)-1 {
			q.next = o.queues[idx+1]
		}
		o.queues[idx] = q
	}
	o.first = o.queues[0]
	return o, nil
}

// Signal exposes the run's cancellation signal so callers can trigger a
// stop from signal handlers or watchdogs.
func (o *Orchestrator) Signal() *Signal {
	return o.signal
}

// Start launches the worker pools and the event dispatcher. ctx is handed
// to every handler invocation; cancelling it triggers a pipeline stop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.getState() != StateNotStarted {
		return errors.New("pipeline: already started")
	}
	o.startOnce.Do(func() {
		o.setState(StateRunning)
		o.dispatchWG.Add(1)
		go o.dispatch()
		for _, q := range o.queues {
			q.start(ctx)
		}
		go func() {
			select {
			case <-ctx.Done():
				o.Stop("context cancelled")
			case <-o.signal.Done():
			}
		}()
	})
	return nil
}

// Submit registers items for processing and enqueues them into the detect
// phase. It blocks when the detect queue is full; that is the backpressure
// boundary for producers. Items already recorded as done are skipped here
// unless Force is set.
func (o *Orchestrator) Submit(items []*Item) error {
	state := o.getState()
	if state == StateStopped {
		return errors.New("pipeline: stopped")
	}

	for _, item := range items {
		item.SetWorkDir(o.opts.WorkDir)
		o.tally.addSubmitted(1)
		o.pending.Add(1)

		if !o.opts.Force && o.opts.Tracker != nil {
			done, err := o.opts.Tracker.IsDone(item.ArchiveSource(), item.ID())
			if err != nil {
				o.logger.Warn("archive check failed, processing anyway",
					logging.String(logging.FieldItemID, item.ID()),
					logging.Error(err))
			} else if done {
				item.MarkSkipped(PhaseDetect, "completed in a previous run")
				o.terminalize(item)
				continue
			}
		}
		o.first.enqueue(item)
	}
	return nil
}

// WaitForDrain blocks until every submitted item reaches a terminal
// outcome, then shuts the run down cleanly. Returns ctx.Err if the caller
// gives up first; the run keeps going in that case.
func (o *Orchestrator) WaitForDrain(ctx context.Context) error {
	if o.getState() == StateNotStarted {
		return errors.New("pipeline: not started")
	}
	o.setStateIf(StateRunning, StateDraining)

	drained := make(chan struct{})
	go func() {
		o.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	// All items settled; workers are idle. Shut the pools down.
	o.signal.Trigger("run complete")
	for _, q := range o.queues {
		q.stop(time.Second)
	}
	o.finish()
	return nil
}

// Stop cancels the run: no new items are taken up, mid-flight items finish
// their current handler invocation, queued items are settled as cancelled.
// Bounded by StopTimeout.
func (o *Orchestrator) Stop(reason string) {
	if o.getState() == StateNotStarted {
		o.setState(StateStopped)
		return
	}
	o.signal.Trigger(reason)
	o.logger.Info("stopping pipeline", logging.String("reason", o.signal.Reason()))

	deadline := time.Now().Add(o.opts.StopTimeout)
	for _, q := range o.queues {
		remaining := time.Until(deadline)
		if remaining < 10*time.Millisecond {
			remaining = 10 * time.Millisecond
		}
		if !q.stop(remaining) {
			o.logger.Warn("workers still busy at stop deadline",
				logging.String(logging.FieldPhase, string(q.phase)))
		}
	}
	reasonText := o.signal.Reason()
	for _, q := range o.queues {
		q.drainCancelled(reasonText)
	}
	o.finish()
}

// Stats returns a snapshot of run progress.
func (o *Orchestrator) Stats() Stats {
	stats := Stats{
		State:     o.getState(),
		InFlight:  make(map[Phase]int64, len(o.queues)),
		Queued:    make(map[Phase]int64, len(o.queues)),
		Processed: make(map[Phase]int64, len(o.queues)),
	}
	o.tally.snapshot(&stats)
	for _, q := range o.queues {
		stats.InFlight[q.phase] = q.inflight.Load()
		stats.Queued[q.phase] = q.queued()
		stats.Processed[q.phase] = q.processed.Load()
	}
	return stats
}

// terminalize is the single exit point for items. It journals failures,
// marks archive completion on success, releases scratch space, updates
// counters, and emits the terminal event. Runs at most once per item.
func (o *Orchestrator) terminalize(item *Item) {
	item.settle(func() {
		out := item.Outcome()

		switch out.Kind {
		case OutcomeFailed:
			if o.opts.FailureLog != nil {
				rec := journal.FailureRecord{
					Timestamp: time.Now(),
					BatchID:   item.BatchID,
					ItemID:    item.ID(),
					SourceURL: item.Video.URL,
					Phase:     string(out.Phase),
					Category:  out.Category,
					Message:   out.Reason,
				}
				if err := o.opts.FailureLog.Record(rec); err != nil {
					o.logger.Error("failure log write failed",
						logging.String(logging.FieldItemID, item.ID()),
						logging.Error(err))
				}
			}
		case OutcomeSucceeded:
			if o.opts.Tracker != nil {
				if err := o.opts.Tracker.MarkDone(item.ArchiveSource(), item.ID()); err != nil {
					o.logger.Error("archive mark failed",
						logging.String(logging.FieldItemID, item.ID()),
						logging.Error(err))
				}
			}
		}

		if err := item.ReleaseScratch(); err != nil {
			o.logger.Warn("scratch cleanup failed",
				logging.String(logging.FieldItemID, item.ID()),
				logging.Error(err))
		}

		o.tally.addOutcome(out)
		o.emit(eventFor(item))
		o.pending.Done()
	})
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.logger.Warn("event buffer full, dropping event",
			logging.String(logging.FieldItemID, ev.ItemID),
			logging.String(logging.FieldEventType, string(ev.Kind)))
	}
}

// dispatch delivers events to the progress callback from one goroutine.
func (o *Orchestrator) dispatch() {
	defer o.dispatchWG.Done()
	for {
		select {
		case ev := <-o.events:
			o.deliver(ev)
		case <-o.dispatchQuit:
			for {
				select {
				case ev := <-o.events:
					o.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (o *Orchestrator) deliver(ev Event) {
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(ev)
	}
}

func (o *Orchestrator) finish() {
	o.finishOnce.Do(func() {
		close(o.dispatchQuit)
		o.dispatchWG.Wait()
		o.setState(StateStopped)
	})
}

func (o *Orchestrator) getState() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(state RunState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) setStateIf(from, to RunState) {
	o.mu.Lock()
	if o.state == from {
		o.state = to
	}
	o.mu.Unlock()
}
