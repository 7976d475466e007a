package stages

import (
	"context"
	"os"
	"path/filepath"

	"subflow/internal/faults"
	"subflow/internal/fileutil"
	"subflow/internal/media"
	"subflow/internal/pipeline"
)

// Summarize writes an optional Markdown digest of the source subtitle.
// When disabled it is a pass-through.
type Summarize struct {
	llm     Completer
	enabled bool
}

func NewSummarize(llm Completer, enabled bool) *Summarize {
	return &Summarize{llm: llm, enabled: enabled}
}

func (s *Summarize) Process(ctx context.Context, item *pipeline.Item) error {
	if !s.enabled {
		return nil
	}
	if item.Summary != nil {
		return nil
	}
	if item.Download == nil {
		return faults.New(faults.InvalidInput, "summarize: item has no downloaded subtitle")
	}
	source, err := os.ReadFile(item.Download.SubtitlePath)
	if err != nil {
		return faults.Wrap(faults.FileIO, "summarize: read source subtitle", err)
	}
	dir, err := item.Scratch()
	if err != nil {
		return faults.Wrap(faults.FileIO, "summarize: scratch dir", err)
	}

	digest, err := s.llm.Complete(ctx, summaryPrompt, string(source))
	if err != nil {
		return err
	}
	path := filepath.Join(dir, item.ID()+".summary.md")
	if err := fileutil.WriteFileAtomic(path, []byte(digest), 0o644); err != nil {
		return faults.Wrap(faults.FileIO, "summarize: write digest", err)
	}
	item.Summary = &media.Summary{Path: path}
	return nil
}
