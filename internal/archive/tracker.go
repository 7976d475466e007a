package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"subflow/internal/journal"
)

// entryPrefix keeps the archive files interchangeable with yt-dlp's
// --download-archive format: "youtube <id>", with a completion timestamp
// appended as a third field that yt-dlp tolerates and ignores.
const entryPrefix = "youtube"

// Tracker records completed item ids per logical source.
type Tracker struct {
	dir    string
	writer *journal.AppendWriter

	mu   sync.Mutex
	done map[string]map[string]struct{} // source -> completed ids
}

// NewTracker creates a tracker rooted at dir. The shared append writer
// serializes archive writes with the rest of the bookkeeping files.
func NewTracker(dir string, writer *journal.AppendWriter) *Tracker {
	if writer == nil {
		writer = journal.NewAppendWriter()
	}
	return &Tracker{
		dir:    dir,
		writer: writer,
		done:   make(map[string]map[string]struct{}),
	}
}

// ArchivePath returns the archive file backing one logical source.
func (t *Tracker) ArchivePath(source string) string {
	return filepath.Join(t.dir, sanitizeSource(source)+".txt")
}

// IsDone reports whether itemID completed successfully in a prior run of
// the same source. A missing or unreadable archive reads as "not done".
func (t *Tracker) IsDone(source, itemID string) (bool, error) {
	set, err := t.doneSet(source)
	if err != nil {
		return false, err
	}
	_, ok := set[itemID]
	return ok, nil
}

// MarkDone appends itemID to the source archive. Called exactly once per
// item, only after the final phase fully succeeds.
func (t *Tracker) MarkDone(source, itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errors.New("archive: empty item id")
	}
	line := fmt.Sprintf("%s %s %s", entryPrefix, itemID, time.Now().UTC().Format(time.RFC3339))
	if err := t.writer.Append(t.ArchivePath(source), line); err != nil {
		return fmt.Errorf("archive append: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.done[source]; ok {
		set[itemID] = struct{}{}
	}
	return nil
}

// Clear removes the archive for a source, forcing reprocessing on the next
// run. Used by the CLI, never by the pipeline itself.
func (t *Tracker) Clear(source string) error {
	t.mu.Lock()
	delete(t.done, source)
	t.mu.Unlock()

	err := os.Remove(t.ArchivePath(source))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("archive clear: %w", err)
	}
	return nil
}

func (t *Tracker) doneSet(source string) (map[string]struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if set, ok := t.done[source]; ok {
		return set, nil
	}
	set, err := readArchive(t.ArchivePath(source))
	if err != nil {
		return nil, err
	}
	t.done[source] = set
	return set, nil
}

func readArchive(path string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == entryPrefix {
			set[fields[1]] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return set, nil
}

func sanitizeSource(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return "default"
	}
	var b strings.Builder
	b.Grow(len(source))
	for _, r := range source {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
