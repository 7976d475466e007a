package stages

import (
	"context"
	"sort"

	"subflow/internal/faults"
	"subflow/internal/media"
	"subflow/internal/output"
	"subflow/internal/pipeline"
)

// Publisher lays down the final artifact set for one item.
type Publisher interface {
	Publish(req output.Request) (media.Published, error)
}

// Publish moves the item's artifacts out of scratch space into the output
// tree. Only after this handler succeeds is the item marked done in the
// archive.
type Publish struct {
	writer Publisher
}

func NewPublish(writer Publisher) *Publish {
	return &Publish{writer: writer}
}

func (p *Publish) Process(_ context.Context, item *pipeline.Item) error {
	if len(item.Translations) == 0 {
		return faults.New(faults.InvalidInput, "publish: item has no translations")
	}

	translations := make([]media.Translation, 0, len(item.Translations))
	for _, tr := range item.Translations {
		translations = append(translations, tr)
	}
	sort.Slice(translations, func(i, j int) bool {
		return translations[i].Language < translations[j].Language
	})

	sourceLang := ""
	if item.Download != nil {
		sourceLang = item.Download.Language
	}
	published, err := p.writer.Publish(output.Request{
		Video:        item.Video,
		BatchID:      item.BatchID,
		SourceLang:   sourceLang,
		Translations: translations,
		Summary:      item.Summary,
	})
	if err != nil {
		return err
	}
	item.Published = &published
	return nil
}
