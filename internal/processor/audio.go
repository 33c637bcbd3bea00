package processor

import (
	"context"

	"github.com/bobmcallan/mediaqueue/internal/models"
)

// AudioProcessor simulates audio transcoding. Output path suffix
// "_processed" mirrors the original Rust worker's audio_processor.rs.
type AudioProcessor struct {
	cfg Config
}

func (p *AudioProcessor) Process(ctx context.Context, media models.MediaFile, progressFn ProgressFunc, cancel CancelFlag) (string, error) {
	if err := runTicks(ctx, p.cfg, progressFn, cancel); err != nil {
		return "", err
	}
	return outputPath(media.FilePath, "_processed"), nil
}
