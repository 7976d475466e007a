package stages

import (
	"context"

	"subflow/internal/faults"
	"subflow/internal/language"
	"subflow/internal/media"
	"subflow/internal/pipeline"
)

// SubtitleDownloader fetches one subtitle track into a directory.
type SubtitleDownloader interface {
	DownloadSubtitles(ctx context.Context, videoURL, lang, destDir string, automatic bool) (string, error)
}

// Fetch downloads the source subtitle track into the item's scratch
// directory, preferring English when several tracks exist.
type Fetch struct {
	downloader SubtitleDownloader
}

func NewFetch(downloader SubtitleDownloader) *Fetch {
	return &Fetch{downloader: downloader}
}

func (f *Fetch) Process(ctx context.Context, item *pipeline.Item) error {
	if item.Detection == nil {
		return faults.New(faults.InvalidInput, "fetch: item has no detection result")
	}
	dir, err := item.Scratch()
	if err != nil {
		return faults.Wrap(faults.FileIO, "fetch: scratch dir", err)
	}

	lang := chooseSourceLanguage(item.Detection.Languages)
	path, err := f.downloader.DownloadSubtitles(ctx, item.Video.URL, lang, dir, item.Detection.Automatic)
	if err != nil {
		return err
	}
	item.Download = &media.Download{SubtitlePath: path, Language: lang}
	return nil
}

// chooseSourceLanguage prefers an English track, then falls back to the
// first available one.
func chooseSourceLanguage(available []string) string {
	if len(available) == 0 {
		return "en"
	}
	english, err := language.Parse("en")
	if err == nil {
		for _, code := range available {
			if english.Matches(code) {
				return code
			}
		}
	}
	return available[0]
}
