package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"subflow/internal/archive"
	"subflow/internal/faults"
	"subflow/internal/journal"
	"subflow/internal/media"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		QueueCapacity:    10,
		DetectWorkers:    2,
		FetchWorkers:     2,
		TranslateWorkers: 2,
		SummarizeWorkers: 2,
		PublishWorkers:   2,
		Retry:            RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond},
		StopTimeout:      5 * time.Second,
		WorkDir:          t.TempDir(),
	}
}

func passHandler() Handler {
	return HandlerFunc(func(context.Context, *Item) error { return nil })
}

func allHandlers(h Handler) Handlers {
	return Handlers{Detect: h, Fetch: h, Translate: h, Summarize: h, Publish: h}
}

// handlersWith starts from pass-through handlers and overrides one phase.
func handlersWith(phase Phase, h Handler) Handlers {
	handlers := allHandlers(passHandler())
	switch phase {
	case PhaseDetect:
		handlers.Detect = h
	case PhaseFetch:
		handlers.Fetch = h
	case PhaseTranslate:
		handlers.Translate = h
	case PhaseSummarize:
		handlers.Summarize = h
	case PhasePublish:
		handlers.Publish = h
	}
	return handlers
}

func newItems(n int) []*Item {
	items := make([]*Item, n)
	for i := range items {
		id := fmt.Sprintf("vid%03d", i)
		items[i] = NewItem(media.Video{
			ID:        id,
			URL:       "https://example.com/watch?v=" + id,
			ChannelID: "UCtest",
		}, "batch1")
	}
	return items
}

func startAndDrain(t *testing.T, o *Orchestrator, items []*Item) {
	t.Helper()
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := o.Submit(items); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.WaitForDrain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestAuthFailuresGetSingleAttempt(t *testing.T) {
	opts := testOptions(t)
	logPath := filepath.Join(t.TempDir(), "failures.log")
	opts.FailureLog = journal.NewFailureLog(logPath, nil)

	var invocations atomic.Int64
	failing := HandlerFunc(func(context.Context, *Item) error {
		invocations.Add(1)
		return faults.New(faults.Auth, "api key rejected")
	})
	o, err := New(handlersWith(PhaseDetect, failing), opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	items := newItems(100)
	startAndDrain(t, o, items)

	if got := invocations.Load(); got != 100 {
		t.Fatalf("handler invocations = %d, want exactly 100 (no retries on auth)", got)
	}
	for _, item := range items {
		out := item.Outcome()
		if out.Kind != OutcomeFailed || out.Category != faults.Auth {
			t.Fatalf("item %s outcome %+v, want auth failure", item.ID(), out)
		}
		if got := item.Attempts(PhaseDetect); got != 1 {
			t.Fatalf("item %s attempts = %d, want 1", item.ID(), got)
		}
	}

	records, err := journal.ReadFailures(logPath)
	if err != nil {
		t.Fatalf("read failures: %v", err)
	}
	if len(records) != 100 {
		t.Fatalf("failure records = %d, want 100", len(records))
	}
	for _, rec := range records {
		if rec.Category != faults.Auth || rec.Phase != string(PhaseDetect) {
			t.Fatalf("unexpected record: %+v", rec)
		}
	}

	stats := o.Stats()
	if stats.Failed != 100 || stats.FailedByCategory[faults.Auth] != 100 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestNetworkFailuresRetryThenSucceed(t *testing.T) {
	opts := testOptions(t)
	logPath := filepath.Join(t.TempDir(), "failures.log")
	opts.FailureLog = journal.NewFailureLog(logPath, nil)
	opts.Tracker = archive.NewTracker(t.TempDir(), nil)

	var mu sync.Mutex
	fails := make(map[string]int)
	flaky := HandlerFunc(func(_ context.Context, item *Item) error {
		mu.Lock()
		defer mu.Unlock()
		if fails[item.ID()] < 2 {
			fails[item.ID()]++
			return faults.New(faults.Network, "connection reset by peer")
		}
		return nil
	})
	o, err := New(handlersWith(PhaseFetch, flaky), opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	items := newItems(5)
	startAndDrain(t, o, items)

	for _, item := range items {
		if out := item.Outcome(); out.Kind != OutcomeSucceeded {
			t.Fatalf("item %s outcome %+v, want success", item.ID(), out)
		}
		if got := item.Attempts(PhaseFetch); got != 3 {
			t.Fatalf("item %s fetch attempts = %d, want 3", item.ID(), got)
		}
		done, err := opts.Tracker.IsDone(item.ArchiveSource(), item.ID())
		if err != nil || !done {
			t.Fatalf("item %s not archived: done=%v err=%v", item.ID(), done, err)
		}
	}

	records, err := journal.ReadFailures(logPath)
	if err != nil {
		t.Fatalf("read failures: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("recovered items must not appear in the failure log, got %d records", len(records))
	}
}

func TestHandlerSkipStopsForwarding(t *testing.T) {
	opts := testOptions(t)
	var downstream atomic.Int64
	skipper := HandlerFunc(func(_ context.Context, item *Item) error {
		item.MarkSkipped(PhaseDetect, "no subtitles available")
		return nil
	})
	counting := HandlerFunc(func(context.Context, *Item) error {
		downstream.Add(1)
		return nil
	})
	handlers := handlersWith(PhaseDetect, skipper)
	handlers.Fetch = counting

	o, err := New(handlers, opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	items := newItems(4)
	startAndDrain(t, o, items)

	if downstream.Load() != 0 {
		t.Fatal("skipped items must not reach later phases")
	}
	for _, item := range items {
		out := item.Outcome()
		if out.Kind != OutcomeSkipped || out.Reason != "no subtitles available" {
			t.Fatalf("item %s outcome %+v", item.ID(), out)
		}
	}
	if stats := o.Stats(); stats.Skipped != 4 {
		t.Fatalf("stats.Skipped = %d, want 4", stats.Skipped)
	}
}

func TestPanicBecomesUnknownFailure(t *testing.T) {
	opts := testOptions(t)
	logPath := filepath.Join(t.TempDir(), "failures.log")
	opts.FailureLog = journal.NewFailureLog(logPath, nil)

	panicky := HandlerFunc(func(_ context.Context, item *Item) error {
		if item.ID() == "vid000" {
			panic("index out of range")
		}
		return nil
	})
	o, err := New(handlersWith(PhaseTranslate, panicky), opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	items := newItems(3)
	startAndDrain(t, o, items)

	out := items[0].Outcome()
	if out.Kind != OutcomeFailed || out.Category != faults.Unknown {
		t.Fatalf("panicking item outcome %+v, want unknown failure", out)
	}
	// Unknown gets a reduced budget of two attempts.
	if got := items[0].Attempts(PhaseTranslate); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
	// The pool survives: the other items still complete.
	for _, item := range items[1:] {
		if out := item.Outcome(); out.Kind != OutcomeSucceeded {
			t.Fatalf("item %s outcome %+v, want success", item.ID(), out)
		}
	}
}

func TestSkipOnResumeAndForce(t *testing.T) {
	archiveDir := t.TempDir()
	tracker := archive.NewTracker(archiveDir, nil)

	run := func(force bool, handlers Handlers) []*Item {
		opts := testOptions(t)
		opts.Tracker = tracker
		opts.Force = force
		o, err := New(handlers, opts)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		items := newItems(3)
		startAndDrain(t, o, items)
		return items
	}

	// First run completes everything.
	first := run(false, allHandlers(passHandler()))
	for _, item := range first {
		if out := item.Outcome(); out.Kind != OutcomeSucceeded {
			t.Fatalf("first run item %s outcome %+v", item.ID(), out)
		}
	}

	// Second run skips at submission without invoking any handler.
	var invoked atomic.Int64
	counting := HandlerFunc(func(context.Context, *Item) error {
		invoked.Add(1)
		return nil
	})
	second := run(false, allHandlers(counting))
	if invoked.Load() != 0 {
		t.Fatalf("resume invoked handlers %d times, want 0", invoked.Load())
	}
	for _, item := range second {
		if out := item.Outcome(); out.Kind != OutcomeSkipped {
			t.Fatalf("resume item %s outcome %+v, want skipped", item.ID(), out)
		}
	}

	// Force pushes items through regardless of the archive.
	third := run(true, allHandlers(counting))
	if invoked.Load() == 0 {
		t.Fatal("force run must invoke handlers")
	}
	for _, item := range third {
		if out := item.Outcome(); out.Kind != OutcomeSucceeded {
			t.Fatalf("force item %s outcome %+v, want success", item.ID(), out)
		}
	}
}

func TestBackpressureBlocksSubmit(t *testing.T) {
	opts := testOptions(t)
	opts.QueueCapacity = 2
	opts.DetectWorkers = 1

	gate := make(chan struct{})
	blocked := HandlerFunc(func(context.Context, *Item) error {
		<-gate
		return nil
	})
	o, err := New(handlersWith(PhaseDetect, blocked), opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	items := newItems(6)
	submitted := make(chan struct{})
	go func() {
		if err := o.Submit(items); err != nil {
			t.Errorf("submit: %v", err)
		}
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("submit returned while the detect queue was saturated")
	case <-time.After(100 * time.Millisecond):
	}

	close(gate)
	select {
	case <-submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("submit never unblocked after the queue drained")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.WaitForDrain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestStopCancelsOutstandingItems(t *testing.T) {
	opts := testOptions(t)
	opts.QueueCapacity = 4
	opts.FetchWorkers = 1
	logPath := filepath.Join(t.TempDir(), "failures.log")
	opts.FailureLog = journal.NewFailureLog(logPath, nil)

	gate := make(chan struct{})
	var scratchDirs sync.Map
	slow := HandlerFunc(func(_ context.Context, item *Item) error {
		dir, err := item.Scratch()
		if err != nil {
			return faults.Wrap(faults.FileIO, "scratch", err)
		}
		scratchDirs.Store(item.ID(), dir)
		<-gate
		return nil
	})
	o, err := New(handlersWith(PhaseFetch, slow), opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	items := newItems(8)
	if err := o.Submit(items); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Let the fetch worker block on its first item, then stop the run and
	// release the handler so the mid-flight invocation can finish.
	time.Sleep(50 * time.Millisecond)
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(gate)
	}()
	o.Stop("user requested stop")

	terminal := map[OutcomeKind]int{}
	for _, item := range items {
		out := item.Outcome()
		if out.Kind == OutcomePending {
			t.Fatalf("item %s still pending after stop", item.ID())
		}
		terminal[out.Kind]++
		if out.Kind == OutcomeCancelled && out.Reason == "" {
			t.Fatalf("cancelled item %s carries no reason", item.ID())
		}
	}
	if terminal[OutcomeCancelled] == 0 {
		t.Fatalf("expected cancelled items, got %v", terminal)
	}

	// Cancellation is not failure: the log stays empty and scratch space
	// is reclaimed.
	records, err := journal.ReadFailures(logPath)
	if err != nil {
		t.Fatalf("read failures: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("cancelled items must never reach the failure log, got %d", len(records))
	}
	scratchDirs.Range(func(_, value any) bool {
		if _, err := os.Stat(value.(string)); !os.IsNotExist(err) {
			t.Errorf("scratch dir %s not removed", value)
		}
		return true
	})

	if got := o.Stats().State; got != StateStopped {
		t.Fatalf("state = %s, want stopped", got)
	}
}

func TestEventsEmittedPerTerminalItem(t *testing.T) {
	opts := testOptions(t)
	var mu sync.Mutex
	events := make(map[EventKind]int)
	opts.OnEvent = func(ev Event) {
		mu.Lock()
		events[ev.Kind]++
		mu.Unlock()
	}

	failOne := HandlerFunc(func(_ context.Context, item *Item) error {
		if item.ID() == "vid000" {
			return faults.New(faults.Content, "video removed")
		}
		return nil
	})
	o, err := New(handlersWith(PhasePublish, failOne), opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	items := newItems(5)
	startAndDrain(t, o, items)

	mu.Lock()
	defer mu.Unlock()
	if events[EventFailed] != 1 || events[EventSucceeded] != 4 {
		t.Fatalf("events = %v, want 1 failed / 4 succeeded", events)
	}
}

func TestNewRejectsMissingHandlers(t *testing.T) {
	handlers := allHandlers(passHandler())
	handlers.Summarize = nil
	if _, err := New(handlers, testOptions(t)); err == nil {
		t.Fatal("expected error for missing handler")
	}
}
