package pipeline

import (
	"time"

	"subflow/internal/faults"
)

// EventKind mirrors the terminal outcome kinds.
type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventSkipped   EventKind = "skipped"
	EventCancelled EventKind = "cancelled"
)

// Event describes one item reaching a terminal outcome. Events are emitted
// to a single dispatcher goroutine, so the progress callback never runs
// concurrently with itself.
type Event struct {
	Kind      EventKind
	ItemID    string
	SourceURL string
	Title     string
	BatchID   string
	Phase     Phase
	Category  faults.Category
	Reason    string
	Attempts  int
	Time      time.Time
}

func eventFor(item *Item) Event {
	out := item.Outcome()
	return Event{
		Kind:      EventKind(out.Kind),
		ItemID:    item.ID(),
		SourceURL: item.Video.URL,
		Title:     item.Video.Title,
		BatchID:   item.BatchID,
		Phase:     out.Phase,
		Category:  out.Category,
		Reason:    out.Reason,
		Attempts:  item.Attempts(out.Phase),
		Time:      time.Now(),
	}
}
