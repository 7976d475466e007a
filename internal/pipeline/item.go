package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"subflow/internal/faults"
	"subflow/internal/media"
)

// Phase names one pipeline stage. Values double as log fields and failure
// record fields, so they stay short and lowercase.
type Phase string

const (
	PhaseDetect    Phase = "detect"
	PhaseFetch     Phase = "fetch"
	PhaseTranslate Phase = "translate"
	PhaseSummarize Phase = "summarize"
	PhasePublish   Phase = "publish"
)

// Phases returns all phases in pipeline order.
func Phases() []Phase {
	return []Phase{PhaseDetect, PhaseFetch, PhaseTranslate, PhaseSummarize, PhasePublish}
}

// OutcomeKind is the terminal state of an item. Pending is the only
// non-terminal kind; transitions away from it are one-way.
type OutcomeKind string

const (
	OutcomePending   OutcomeKind = "pending"
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeSucceeded OutcomeKind = "succeeded"
)

// Outcome records how an item finished.
type Outcome struct {
	Kind     OutcomeKind
	Phase    Phase
	Category faults.Category
	Reason   string
}

// Item is one unit of work travelling through the pipeline. Identity fields
// are immutable after creation. Result slots are written by exactly one
// handler each; ownership passes from phase to phase with the item, so the
// slots need no locking. The outcome and attempt trace are guarded because
// Stop can race with a worker.
type Item struct {
	Video   media.Video
	BatchID string

	// archiveSource is frozen at creation so the idempotence check at
	// submission and the archive mark at success always hit the same file,
	// even when later phases enrich the channel metadata.
	archiveSource string

	// Result slots, one per phase.
	Detection    *media.Detection
	Download     *media.Download
	Translations map[string]media.Translation
	Summary      *media.Summary
	Published    *media.Published

	workDir string

	mu       sync.Mutex
	outcome  Outcome
	attempts map[Phase]int

	scratchOnce sync.Once
	scratchDir  string
	scratchErr  error
	releaseOnce sync.Once
	settleOnce  sync.Once
}

// NewItem creates a pending item for one video.
func NewItem(video media.Video, batchID string) *Item {
	source := video.ChannelID
	if source == "" {
		source = "adhoc"
	}
	return &Item{
		Video:         video,
		BatchID:       batchID,
		archiveSource: source,
		outcome:       Outcome{Kind: OutcomePending},
		attempts:      make(map[Phase]int),
	}
}

// ID returns the stable item identifier used for idempotence and logging.
func (i *Item) ID() string { return i.Video.ID }

// SetWorkDir points the item's scratch space at dir. The orchestrator sets
// this at submission.
func (i *Item) SetWorkDir(dir string) { i.workDir = dir }

// ArchiveSource scopes completion tracking. Items from the same channel
// share an archive; ad-hoc URLs share a catch-all one.
func (i *Item) ArchiveSource() string {
	return i.archiveSource
}

// settle runs fn exactly once per item, no matter how many terminal paths
// race to finish it.
func (i *Item) settle(fn func()) {
	i.settleOnce.Do(fn)
}

// Outcome returns a snapshot of the item's current outcome.
func (i *Item) Outcome() Outcome {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.outcome
}

// Terminal reports whether the item has reached a terminal outcome.
func (i *Item) Terminal() bool {
	return i.Outcome().Kind != OutcomePending
}

// MarkSkipped transitions pending -> skipped. Handlers call this to drop an
// item without error (already processed, nothing to do). Returns false if
// the item was already terminal.
func (i *Item) MarkSkipped(phase Phase, reason string) bool {
	return i.transition(Outcome{Kind: OutcomeSkipped, Phase: phase, Reason: reason})
}

// MarkFailed transitions pending -> failed after the retry budget for the
// failure category is exhausted.
func (i *Item) MarkFailed(phase Phase, category faults.Category, reason string) bool {
	return i.transition(Outcome{Kind: OutcomeFailed, Phase: phase, Category: category, Reason: reason})
}

// MarkCancelled transitions pending -> cancelled. Cancellation is not a
// failure: it carries no category and is never written to the failure log.
func (i *Item) MarkCancelled(phase Phase, reason string) bool {
	return i.transition(Outcome{Kind: OutcomeCancelled, Phase: phase, Reason: reason})
}

// MarkSucceeded transitions pending -> succeeded after the final phase.
func (i *Item) MarkSucceeded(phase Phase) bool {
	return i.transition(Outcome{Kind: OutcomeSucceeded, Phase: phase})
}

func (i *Item) transition(next Outcome) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.outcome.Kind != OutcomePending {
		return false
	}
	i.outcome = next
	return true
}

// RecordAttempt bumps the attempt counter for a phase and returns the new
// count. The trace survives into the terminal outcome for diagnostics.
func (i *Item) RecordAttempt(phase Phase) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.attempts[phase]++
	return i.attempts[phase]
}

// Attempts returns how many handler invocations a phase consumed.
func (i *Item) Attempts(phase Phase) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attempts[phase]
}

// Scratch returns the item's private scratch directory, creating it on
// first use. Later calls return the same directory until ReleaseScratch.
func (i *Item) Scratch() (string, error) {
	i.scratchOnce.Do(func() {
		if i.workDir == "" {
			i.scratchErr = fmt.Errorf("item %s: no work directory configured", i.ID())
			return
		}
		dir := filepath.Join(i.workDir, i.BatchID, i.ID())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			i.scratchErr = fmt.Errorf("create scratch dir: %w", err)
			return
		}
		i.scratchDir = dir
	})
	return i.scratchDir, i.scratchErr
}

// ReleaseScratch removes the scratch directory if one was created. It runs
// exactly once per item, on every terminal path including cancellation.
// Removal failure is reported to the caller for logging but never changes
// the item's outcome.
func (i *Item) ReleaseScratch() error {
	var err error
	i.releaseOnce.Do(func() {
		if i.scratchDir == "" {
			return
		}
		err = os.RemoveAll(i.scratchDir)
	})
	return err
}
