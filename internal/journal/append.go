package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// AppendWriter appends single lines to files, serializing writers per path.
// Each append is one write syscall in append mode, so a crash mid-append can
// truncate at most the line being written, never earlier content.
type AppendWriter struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAppendWriter constructs an empty writer.
func NewAppendWriter() *AppendWriter {
	return &AppendWriter{locks: make(map[string]*sync.Mutex)}
}

// Append writes line (a trailing newline is added if missing) to path,
// creating the file and parent directory as needed.
func (w *AppendWriter) Append(path, line string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("append: empty path")
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	lock := w.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}

	fileLock := flock.New(path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open append target: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("append line: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync append target: %w", err)
	}
	return nil
}

func (w *AppendWriter) pathLock(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[path] = lock
	}
	return lock
}
