package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndReadBack(t *testing.T) {
	store := openTestStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := Run{
		BatchID:    "batch1",
		Source:     "https://example.com/channel/UCx",
		Status:     "completed",
		Submitted:  10,
		Succeeded:  7,
		Failed:     1,
		Skipped:    2,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Minute),
	}
	if err := store.RecordRun(context.Background(), run); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := store.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.BatchID != "batch1" || got.Succeeded != 7 || got.Failed != 1 {
		t.Fatalf("run = %+v", got)
	}
	if got.Duration() != 3*time.Minute {
		t.Fatalf("duration = %v, want 3m", got.Duration())
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := Run{
			BatchID:    "batch" + string(rune('a'+i)),
			Source:     "s",
			Status:     "completed",
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
		}
		if err := store.RecordRun(context.Background(), run); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	runs, err := store.RecentRuns(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].BatchID != "batchc" || runs[1].BatchID != "batchb" {
		t.Fatalf("order = %s, %s", runs[0].BatchID, runs[1].BatchID)
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	first, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	run := Run{BatchID: "b", Source: "s", Status: "completed",
		StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC()}
	if err := first.RecordRun(context.Background(), run); err != nil {
		t.Fatalf("record: %v", err)
	}
	first.Close()

	second, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	runs, err := second.RecentRuns(context.Background(), 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs after reopen = %v, %v", runs, err)
	}
}
