// Package processor implements the three placeholder codec processors
// spec.md §4.4 describes: deterministic timed loops standing in for real
// video/audio/image compute, dispatched by task_type.
package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/models"
)

// ErrCancelled is returned by Process when the cancel flag was observed
// set before completion. The engine treats this identically to any other
// processor error for the non-raced case; in the raced case (the common
// case) the cancel path has already decided to finalize as Cancelled
// before the processor's error is even consulted.
var ErrCancelled = fmt.Errorf("task cancelled")

// CancelFlag is polled by a processor at each internal step. It must only
// be set by the engine after the engine has committed to finalizing the
// attempt as Cancelled (spec.md §4.4's "implementers should ensure the
// cancel-flag is only set by the engine after it has decided to finalize
// as Cancelled").
type CancelFlag interface {
	Cancelled() bool
}

// ProgressFunc reports progress in [0,1]; callers clamp via
// models.ClampProgress before persisting.
type ProgressFunc func(progress float64)

// Processor executes one task_type's simulated compute loop.
type Processor interface {
	// Process runs the simulated work for media, reporting progress via
	// progressFn and polling cancel at each tick. Returns the output path
	// on success, or ErrCancelled / a processing error.
	Process(ctx context.Context, media models.MediaFile, progressFn ProgressFunc, cancel CancelFlag) (outputPath string, err error)
}

// Config tunes the shared simulated-compute loop every processor uses.
type Config struct {
	Ticks        int
	TickInterval time.Duration
}

// For returns the processor registered for taskType, or (nil, false) if
// unrecognized.
func For(taskType models.TaskType, cfg Config) (Processor, bool) {
	switch taskType {
	case models.TaskTypeVideo:
		return &VideoProcessor{cfg: cfg}, true
	case models.TaskTypeAudio:
		return &AudioProcessor{cfg: cfg}, true
	case models.TaskTypeImage:
		return &ImageProcessor{cfg: cfg}, true
	default:
		return nil, false
	}
}

// runTicks drives the shared simulated-compute loop: cfg.Ticks steps,
// sleeping cfg.TickInterval between each, checking cancel and reporting
// progress every step. Returns ErrCancelled if cancel flips before all
// ticks complete.
func runTicks(ctx context.Context, cfg Config, progressFn ProgressFunc, cancel CancelFlag) error {
	ticks := cfg.Ticks
	if ticks <= 0 {
		ticks = 10
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	for i := 1; i <= ticks; i++ {
		if cancel.Cancelled() {
			return ErrCancelled
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		if cancel.Cancelled() {
			return ErrCancelled
		}

		progressFn(models.ClampProgress(float64(i) / float64(ticks)))
	}
	return nil
}

// outputPath derives the processed file's path from its input path by
// inserting suffix before the extension, e.g. "a.mp4" + "_compressed" →
// "a_compressed.mp4".
func outputPath(inputPath, suffix string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	return base + suffix + ext
}
