package task

import (
	"fmt"
	"strconv"

	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/go-playground/validator/v10"
)

// CreateTaskInput is the submission DTO validated via struct tags, the
// declarative equivalent of spec.md §4.1's prose validation rules.
type CreateTaskInput struct {
	TaskType     string            `json:"task_type" validate:"required,oneof=video audio image"`
	FilePath     string            `json:"file_path" validate:"required"`
	FileSize     int64             `json:"file_size" validate:"min=0"`
	OriginalName string            `json:"original_name"`
	MimeType     string            `json:"mime_type"`
	Options      map[string]string `json:"options"`
	MaxRetries   *uint             `json:"max_retries,omitempty"`
}

// recognizedOptionKeys enumerates the option keys spec.md §4.1 names as
// carried through to Task.Media.Metadata; anything else is ignored.
var recognizedOptionKeys = map[string]bool{
	"video_codec":  true,
	"resolution":   true,
	"bitrate":      true,
	"audio_format": true,
	"sample_rate":  true,
	"image_format": true,
	"quality":      true,
	"max_width":    true,
	"max_height":   true,
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v
}()

// Validate checks structural rules via go-playground/validator, then the
// image-quality-≤100 rule the struct tags can't express declaratively
// (it depends on task_type).
func (in *CreateTaskInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	if in.TaskType == string(models.TaskTypeImage) {
		if raw, ok := in.Options["quality"]; ok {
			q, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%w: quality must be an integer", ErrInvalidInput)
			}
			if q > 100 {
				return fmt.Errorf("%w: image quality must be <= 100, got %d", ErrInvalidInput, q)
			}
		}
	}
	return nil
}

// metadata filters Options down to the recognized keys, mirroring spec.md
// §4.1's "unrecognized keys are ignored" rule.
func (in *CreateTaskInput) metadata() map[string]string {
	if len(in.Options) == 0 {
		return nil
	}
	out := make(map[string]string, len(in.Options))
	for k, v := range in.Options {
		if recognizedOptionKeys[k] {
			out[k] = v
		}
	}
	return out
}
