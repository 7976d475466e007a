package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"subflow/internal/faults"
)

const failureTimeFormat = "2006-01-02 15:04:05"

// FailureRecord is one terminal per-item failure.
type FailureRecord struct {
	Timestamp time.Time
	BatchID   string
	ItemID    string
	SourceURL string
	Phase     string
	Category  faults.Category
	Message   string
}

// FailureLog appends terminal failures, one line per record:
//
//	[ts] [batch:B] [item:I] <url> phase=<p> error=<category> msg=<quoted>
//
// Cancelled items are never recorded here; that is enforced by the caller
// (the pipeline worker), not by this type.
type FailureLog struct {
	path   string
	writer *AppendWriter
}

// NewFailureLog binds a failure log to path using the shared append writer.
func NewFailureLog(path string, writer *AppendWriter) *FailureLog {
	if writer == nil {
		writer = NewAppendWriter()
	}
	return &FailureLog{path: path, writer: writer}
}

// Path returns the backing file path.
func (l *FailureLog) Path() string {
	return l.path
}

// Record appends one failure line. The write is atomic with respect to
// concurrent Record calls on the same log.
func (l *FailureLog) Record(rec FailureRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	category := rec.Category
	if category == "" {
		category = faults.Unknown
	}
	line := fmt.Sprintf("[%s] [batch:%s] [item:%s] %s phase=%s error=%s msg=%s",
		ts.UTC().Format(failureTimeFormat),
		rec.BatchID,
		rec.ItemID,
		rec.SourceURL,
		rec.Phase,
		category,
		strconv.Quote(rec.Message),
	)
	return l.writer.Append(l.path, line)
}

// ReadFailures parses a failure log back into records. Malformed lines are
// skipped rather than failing the whole read; a missing file yields an
// empty slice.
func ReadFailures(path string) ([]FailureRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open failure log: %w", err)
	}
	defer file.Close()

	var records []FailureRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if rec, ok := parseFailureLine(scanner.Text()); ok {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read failure log: %w", err)
	}
	return records, nil
}

func parseFailureLine(line string) (FailureRecord, bool) {
	var rec FailureRecord
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return rec, false
	}

	end := strings.Index(line, "]")
	if end < 0 {
		return rec, false
	}
	ts, err := time.Parse(failureTimeFormat, line[1:end])
	if err != nil {
		return rec, false
	}
	rec.Timestamp = ts
	rest := strings.TrimSpace(line[end+1:])

	var ok bool
	if rec.BatchID, rest, ok = cutBracketField(rest, "batch:"); !ok {
		return rec, false
	}
	if rec.ItemID, rest, ok = cutBracketField(rest, "item:"); !ok {
		return rec, false
	}

	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return rec, false
	}
	rec.SourceURL = fields[0]

	for _, field := range fields[1:] {
		switch {
		case strings.HasPrefix(field, "phase="):
			rec.Phase = strings.TrimPrefix(field, "phase=")
		case strings.HasPrefix(field, "error="):
			if cat, known := faults.ParseCategory(strings.TrimPrefix(field, "error=")); known {
				rec.Category = cat
			} else {
				rec.Category = faults.Unknown
			}
		}
	}

	if idx := strings.Index(rest, "msg="); idx >= 0 {
		if msg, err := strconv.Unquote(strings.TrimSpace(rest[idx+len("msg="):])); err == nil {
			rec.Message = msg
		}
	}
	return rec, true
}

func cutBracketField(s, prefix string) (value, rest string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "["+prefix) {
		return "", s, false
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return "", s, false
	}
	return s[1+len(prefix) : end], strings.TrimSpace(s[end+1:]), true
}
