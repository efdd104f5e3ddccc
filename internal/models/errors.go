package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrJobIDRequired indicates a required job id field is empty.
	ErrJobIDRequired = errors.New("job_id is required")

	// ErrSourceRequired indicates neither a source URL nor an uploaded file was given.
	ErrSourceRequired = errors.New("youtube_url or video_url is required")

	// ErrInvalidURL indicates a malformed URL.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrInvalidLayout indicates an unknown layout mode.
	ErrInvalidLayout = errors.New("invalid layout: must be 'fit', 'fill', 'square' or 'auto'")

	// ErrInvalidLengths indicates an inconsistent clip length triple.
	ErrInvalidLengths = errors.New("clip lengths must satisfy 0 < min <= target <= max")

	// ErrInvalidTimeframe indicates timeframe end is not after timeframe start.
	ErrInvalidTimeframe = errors.New("timeframe_end must be after timeframe_start")

	// ErrInvalidClipDuration indicates a non-positive clip duration.
	ErrInvalidClipDuration = errors.New("clip_duration must be positive")

	// ErrTemplateNotFound indicates an unknown caption template name.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrOutputPathRequired indicates a required output path field is empty.
	ErrOutputPathRequired = errors.New("output path is required")

	// ErrInvalidTimeRange indicates end time is before start time.
	ErrInvalidTimeRange = errors.New("end time must be after start time")
)

// IsValidationError reports whether err is a request validation failure, so
// callers can map it to a client error instead of an internal one.
func IsValidationError(err error) bool {
	var ve ErrValidation
	if errors.As(err, &ve) {
		return true
	}
	for _, sentinel := range []error{
		ErrJobIDRequired, ErrSourceRequired, ErrInvalidURL, ErrInvalidLayout,
		ErrInvalidLengths, ErrInvalidTimeframe, ErrInvalidClipDuration,
		ErrTemplateNotFound, ErrOutputPathRequired, ErrInvalidTimeRange,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
