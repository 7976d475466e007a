package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"subflow/internal/faults"
	"subflow/internal/fileutil"
	"subflow/internal/media"
)

// Request bundles everything the writer needs for one item.
type Request struct {
	Video        media.Video
	BatchID      string
	SourceLang   string
	Translations []media.Translation
	Summary      *media.Summary
}

// Metadata is the sidecar JSON written next to the artifacts.
type Metadata struct {
	VideoID     string    `json:"video_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	ChannelID   string    `json:"channel_id,omitempty"`
	ChannelName string    `json:"channel_name,omitempty"`
	BatchID     string    `json:"batch_id"`
	SourceLang  string    `json:"source_lang,omitempty"`
	Languages   []string  `json:"languages"`
	HasSummary  bool      `json:"has_summary"`
	PublishedAt time.Time `json:"published_at"`
}

// Writer publishes item artifacts under outputDir/<source>/<video id>/.
type Writer struct {
	outputDir string
}

func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// Publish copies every artifact into the item's output directory. Failures
// are classified as file_io so the pipeline treats them as non-retryable.
func (w *Writer) Publish(req Request) (media.Published, error) {
	var published media.Published
	if req.Video.ID == "" {
		return published, faults.New(faults.InvalidInput, "publish: item has no video id")
	}

	source := req.Video.ChannelID
	if source == "" {
		source = "adhoc"
	}
	dir := filepath.Join(w.outputDir, sanitizePathComponent(source), sanitizePathComponent(req.Video.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return published, faults.Wrap(faults.FileIO, "publish: create output dir", err)
	}
	published.Dir = dir

	languages := make([]string, 0, len(req.Translations))
	for _, tr := range req.Translations {
		data, err := os.ReadFile(tr.Path)
		if err != nil {
			return media.Published{}, faults.Wrap(faults.FileIO,
				fmt.Sprintf("publish: read %s translation", tr.Language), err)
		}
		dest := filepath.Join(dir, req.Video.ID+"."+tr.Language+".srt")
		if err := fileutil.WriteFileAtomic(dest, data, 0o644); err != nil {
			return media.Published{}, faults.Wrap(faults.FileIO,
				fmt.Sprintf("publish: write %s translation", tr.Language), err)
		}
		published.Paths = append(published.Paths, dest)
		languages = append(languages, tr.Language)
	}
	sort.Strings(languages)

	if req.Summary != nil {
		data, err := os.ReadFile(req.Summary.Path)
		if err != nil {
			return media.Published{}, faults.Wrap(faults.FileIO, "publish: read summary", err)
		}
		dest := filepath.Join(dir, req.Video.ID+".summary.md")
		if err := fileutil.WriteFileAtomic(dest, data, 0o644); err != nil {
			return media.Published{}, faults.Wrap(faults.FileIO, "publish: write summary", err)
		}
		published.Paths = append(published.Paths, dest)
	}

	meta := Metadata{
		VideoID:     req.Video.ID,
		URL:         req.Video.URL,
		Title:       req.Video.Title,
		ChannelID:   req.Video.ChannelID,
		ChannelName: req.Video.ChannelName,
		BatchID:     req.BatchID,
		SourceLang:  req.SourceLang,
		Languages:   languages,
		HasSummary:  req.Summary != nil,
		PublishedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return media.Published{}, faults.Wrap(faults.Parse, "publish: encode metadata", err)
	}
	dest := filepath.Join(dir, "metadata.json")
	if err := fileutil.WriteFileAtomic(dest, data, 0o644); err != nil {
		return media.Published{}, faults.Wrap(faults.FileIO, "publish: write metadata", err)
	}
	published.Paths = append(published.Paths, dest)
	return published, nil
}

func sanitizePathComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
