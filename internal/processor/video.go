package processor

import (
	"context"

	"github.com/bobmcallan/mediaqueue/internal/models"
)

// VideoProcessor simulates video compression. Output path suffix
// "_compressed" is taken from the original Rust worker's
// video_processor.rs naming convention.
type VideoProcessor struct {
	cfg Config
}

func (p *VideoProcessor) Process(ctx context.Context, media models.MediaFile, progressFn ProgressFunc, cancel CancelFlag) (string, error) {
	if err := runTicks(ctx, p.cfg, progressFn, cancel); err != nil {
		return "", err
	}
	return outputPath(media.FilePath, "_compressed"), nil
}
