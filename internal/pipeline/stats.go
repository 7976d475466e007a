package pipeline

import (
	"sync"

	"subflow/internal/faults"
)

// RunState is the orchestrator lifecycle state.
type RunState string

const (
	StateNotStarted RunState = "not_started"
	StateRunning    RunState = "running"
	StateDraining   RunState = "draining"
	StateStopped    RunState = "stopped"
)

// Stats is a point-in-time snapshot of run progress.
type Stats struct {
	State            RunState
	Submitted        int64
	Skipped          int64
	Succeeded        int64
	Failed           int64
	Cancelled        int64
	FailedByCategory map[faults.Category]int64
	InFlight         map[Phase]int64
	Queued           map[Phase]int64
	Processed        map[Phase]int64
}

// Pending reports how many submitted items have not reached a terminal
// outcome yet.
func (s Stats) Pending() int64 {
	return s.Submitted - s.Skipped - s.Succeeded - s.Failed - s.Cancelled
}

// tally accumulates terminal outcomes. Counter writes are serialized
// through the orchestrator's terminalize path.
type tally struct {
	mu        sync.Mutex
	submitted int64
	skipped   int64
	succeeded int64
	failed    int64
	cancelled int64
	byCat     map[faults.Category]int64
}

func newTally() *tally {
	return &tally{byCat: make(map[faults.Category]int64)}
}

func (t *tally) addSubmitted(n int64) {
	t.mu.Lock()
	t.submitted += n
	t.mu.Unlock()
}

func (t *tally) addOutcome(out Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch out.Kind {
	case OutcomeSkipped:
		t.skipped++
	case OutcomeSucceeded:
		t.succeeded++
	case OutcomeCancelled:
		t.cancelled++
	case OutcomeFailed:
		t.failed++
		t.byCat[out.Category]++
	}
}

func (t *tally) snapshot(stats *Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats.Submitted = t.submitted
	stats.Skipped = t.skipped
	stats.Succeeded = t.succeeded
	stats.Failed = t.failed
	stats.Cancelled = t.cancelled
	stats.FailedByCategory = make(map[faults.Category]int64, len(t.byCat))
	for cat, n := range t.byCat {
		stats.FailedByCategory[cat] = n
	}
}
