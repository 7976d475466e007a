package ytdlp

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes binary with args, streaming stdout lines to onStdout.
	// It returns captured stderr alongside the process error.
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) (string, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &tailWriter{builder: &stderr}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", binary, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 256*1024), 16*1024*1024)
		for scanner.Scan() {
			if onStdout != nil {
				onStdout(scanner.Text())
			}
		}
	}()
	wg.Wait()

	runErr := cmd.Wait()
	return stderr.String(), runErr
}

// tailWriter keeps the most recent stderr output; yt-dlp can be chatty and
// only the tail matters for classification.
type tailWriter struct {
	builder *strings.Builder
}

const stderrTailLimit = 16 * 1024

func (w *tailWriter) Write(p []byte) (int, error) {
	if w.builder.Len()+len(p) > stderrTailLimit {
		keep := stderrTailLimit / 2
		current := w.builder.String()
		if len(current) > keep {
			trimmed := current[len(current)-keep:]
			w.builder.Reset()
			w.builder.WriteString(trimmed)
		}
	}
	w.builder.Write(p)
	return len(p), nil
}
