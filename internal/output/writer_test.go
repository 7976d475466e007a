package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"subflow/internal/faults"
	"subflow/internal/media"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestPublishFullArtifactSet(t *testing.T) {
	scratch := t.TempDir()
	outDir := t.TempDir()
	writer := NewWriter(outDir)

	published, err := writer.Publish(Request{
		Video:      media.Video{ID: "vid1", URL: "https://example.com/v/1", Title: "T", ChannelID: "UCx"},
		BatchID:    "batch1",
		SourceLang: "en",
		Translations: []media.Translation{
			{Language: "zh", Path: writeTemp(t, scratch, "zh.srt", "translated zh")},
			{Language: "ja", Path: writeTemp(t, scratch, "ja.srt", "translated ja")},
		},
		Summary: &media.Summary{Path: writeTemp(t, scratch, "summary.md", "# Summary")},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	wantDir := filepath.Join(outDir, "UCx", "vid1")
	if published.Dir != wantDir {
		t.Fatalf("dir = %s, want %s", published.Dir, wantDir)
	}
	// Two translations, one summary, one metadata sidecar.
	if len(published.Paths) != 4 {
		t.Fatalf("paths = %v, want 4 entries", published.Paths)
	}

	data, err := os.ReadFile(filepath.Join(wantDir, "vid1.zh.srt"))
	if err != nil || string(data) != "translated zh" {
		t.Fatalf("zh artifact: %q, %v", data, err)
	}

	metaRaw, err := os.ReadFile(filepath.Join(wantDir, "metadata.json"))
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.VideoID != "vid1" || !meta.HasSummary || len(meta.Languages) != 2 {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestPublishWithoutSummary(t *testing.T) {
	scratch := t.TempDir()
	writer := NewWriter(t.TempDir())

	published, err := writer.Publish(Request{
		Video:   media.Video{ID: "vid1"},
		BatchID: "batch1",
		Translations: []media.Translation{
			{Language: "zh", Path: writeTemp(t, scratch, "zh.srt", "x")},
		},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(published.Paths) != 2 {
		t.Fatalf("paths = %v, want translation + metadata", published.Paths)
	}
	// Ad-hoc items land under the catch-all source directory.
	if filepath.Base(filepath.Dir(published.Dir)) != "adhoc" {
		t.Fatalf("dir = %s, want adhoc parent", published.Dir)
	}
}

func TestPublishMissingTranslationFileIsFileIO(t *testing.T) {
	writer := NewWriter(t.TempDir())
	_, err := writer.Publish(Request{
		Video:        media.Video{ID: "vid1"},
		Translations: []media.Translation{{Language: "zh", Path: "/nonexistent/zh.srt"}},
	})
	if got := faults.CategoryOf(err); got != faults.FileIO {
		t.Fatalf("category = %s, want file_io", got)
	}
}
