package processor

import (
	"context"

	"github.com/bobmcallan/mediaqueue/internal/models"
)

// ImageProcessor simulates image optimization. Output path suffix
// "_optimized" mirrors the original Rust worker's image_processor.rs.
type ImageProcessor struct {
	cfg Config
}

func (p *ImageProcessor) Process(ctx context.Context, media models.MediaFile, progressFn ProgressFunc, cancel CancelFlag) (string, error) {
	if err := runTicks(ctx, p.cfg, progressFn, cancel); err != nil {
		return "", err
	}
	return outputPath(media.FilePath, "_optimized"), nil
}
