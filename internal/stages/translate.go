package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"subflow/internal/faults"
	"subflow/internal/fileutil"
	"subflow/internal/language"
	"subflow/internal/media"
	"subflow/internal/pipeline"
)

// Completer issues one chat completion call.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Translate produces one subtitle variant per target language. Variants are
// independent sub-results: a retry of the phase only redoes the ones that
// have not succeeded yet, and a variant matching the source language reuses
// the source track untranslated.
type Translate struct {
	llm     Completer
	targets []language.Target
}

func NewTranslate(llm Completer, targets []language.Target) *Translate {
	return &Translate{llm: llm, targets: targets}
}

func (t *Translate) Process(ctx context.Context, item *pipeline.Item) error {
	if item.Download == nil {
		return faults.New(faults.InvalidInput, "translate: item has no downloaded subtitle")
	}
	if len(t.targets) == 0 {
		return faults.New(faults.InvalidInput, "translate: no target languages configured")
	}
	source, err := os.ReadFile(item.Download.SubtitlePath)
	if err != nil {
		return faults.Wrap(faults.FileIO, "translate: read source subtitle", err)
	}
	dir, err := item.Scratch()
	if err != nil {
		return faults.Wrap(faults.FileIO, "translate: scratch dir", err)
	}
	if item.Translations == nil {
		item.Translations = make(map[string]media.Translation, len(t.targets))
	}

	var failed []string
	var firstErr error
	for _, target := range t.targets {
		if _, done := item.Translations[target.Code]; done {
			continue
		}
		if target.Matches(item.Download.Language) {
			item.Translations[target.Code] = media.Translation{
				Language: target.Code,
				Path:     item.Download.SubtitlePath,
			}
			continue
		}

		translated, err := t.llm.Complete(ctx, translationPrompt(target), string(source))
		if err != nil {
			if faults.IsCancelled(err) {
				return err
			}
			failed = append(failed, target.Code)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		path := filepath.Join(dir, item.ID()+"."+target.Code+".srt")
		if err := fileutil.WriteFileAtomic(path, []byte(translated), 0o644); err != nil {
			failed = append(failed, target.Code)
			if firstErr == nil {
				firstErr = faults.Wrap(faults.FileIO, "translate: write variant", err)
			}
			continue
		}
		item.Translations[target.Code] = media.Translation{Language: target.Code, Path: path}
	}

	if len(failed) > 0 {
		// Keep the underlying category so the retry budget follows the
		// real cause; completed variants stay recorded on the item.
		return faults.Wrap(faults.CategoryOf(firstErr),
			fmt.Sprintf("translate: %d of %d variants failed (%s)",
				len(failed), len(t.targets), strings.Join(failed, ", ")),
			firstErr)
	}
	return nil
}
