package stages

import (
	"context"
	"log/slog"

	"subflow/internal/logging"
	"subflow/internal/media"
	"subflow/internal/pipeline"
)

// Prober fetches video metadata and available subtitle tracks.
type Prober interface {
	Probe(ctx context.Context, videoURL string) (media.Video, media.Detection, error)
}

// Detect resolves what subtitle material exists for an item. Items without
// any track are skipped, not failed.
type Detect struct {
	probe  Prober
	logger *slog.Logger
}

func NewDetect(probe Prober, logger *slog.Logger) *Detect {
	return &Detect{probe: probe, logger: logging.NewComponentLogger(logger, "stage.detect")}
}

func (d *Detect) Process(ctx context.Context, item *pipeline.Item) error {
	video, detection, err := d.probe.Probe(ctx, item.Video.URL)
	if err != nil {
		return err
	}

	// Fill in metadata the flat listing did not carry.
	if item.Video.Title == "" {
		item.Video.Title = video.Title
	}
	if item.Video.ChannelID == "" {
		item.Video.ChannelID = video.ChannelID
		item.Video.ChannelName = video.ChannelName
	}

	if !detection.HasSubtitles {
		item.MarkSkipped(pipeline.PhaseDetect, "no subtitle tracks available")
		return nil
	}
	item.Detection = &detection
	d.logger.Debug("subtitles detected",
		logging.String(logging.FieldItemID, item.ID()),
		logging.Bool("automatic", detection.Automatic),
		logging.Int("languages", len(detection.Languages)))
	return nil
}
