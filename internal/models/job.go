package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Layout identifies a vertical re-framing mode.
type Layout string

const (
	// LayoutFit letterboxes the source over a blurred background.
	LayoutFit Layout = "fit"
	// LayoutFill scales to cover the canvas and center-crops.
	LayoutFill Layout = "fill"
	// LayoutSquare overlays a square-ish inset on a blurred background.
	LayoutSquare Layout = "square"
	// LayoutAuto crops a zoomed window centered on the detected face.
	LayoutAuto Layout = "auto"
)

// ValidLayouts lists the accepted layout modes.
var ValidLayouts = []Layout{LayoutFit, LayoutFill, LayoutSquare, LayoutAuto}

// IsValid reports whether the layout is one of the accepted modes.
func (l Layout) IsValid() bool {
	switch l {
	case LayoutFit, LayoutFill, LayoutSquare, LayoutAuto:
		return true
	}
	return false
}

// JobState represents the lifecycle state of a job on the broker.
type JobState string

const (
	// JobStateQueued means the job is enqueued but not yet claimed.
	JobStateQueued JobState = "QUEUED"
	// JobStateProcessing means a worker has claimed the job.
	JobStateProcessing JobState = "PROCESSING"
	// JobStateCompleted means the job finished and a result is available.
	JobStateCompleted JobState = "COMPLETED"
	// JobStateFailed means the job ended with an error.
	JobStateFailed JobState = "FAILED"
	// JobStateNotFound is the sentinel state reported for unknown job ids.
	// Readers treat it as an answer, not an error.
	JobStateNotFound JobState = "not_found"
)

// IsTerminal reports whether the state is a final one.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Public maps broker-internal states onto the three states the status API
// exposes. Queued jobs report as PROCESSING so that pollers see a single
// in-flight state from submission to completion.
func (s JobState) Public() JobState {
	if s == JobStateQueued {
		return JobStateProcessing
	}
	return s
}

// Default clip length parameters, in seconds.
const (
	DefaultClipDuration = 30.0
	DefaultMinLength    = 15.0
	DefaultMaxLength    = 90.0
)

// JobRequest is the payload a client submits for one generation job.
// It travels to the worker as JSON inside the broker job hash.
type JobRequest struct {
	JobID            string  `json:"job_id"`
	SourceURL        string  `json:"source_url,omitempty"`
	SourcePath       string  `json:"source_path,omitempty"`
	OriginalFilename string  `json:"original_filename,omitempty"`
	Template         string  `json:"template,omitempty"`
	TemplateOverride string  `json:"template_override,omitempty"`
	ClipDuration     float64 `json:"clip_duration,omitempty"`
	Layout           Layout  `json:"layout,omitempty"`
	TimeframeStart   float64 `json:"timeframe_start,omitempty"`
	TimeframeEnd     float64 `json:"timeframe_end,omitempty"`
	MinClipLength    float64 `json:"min_clip_length,omitempty"`
	MaxClipLength    float64 `json:"max_clip_length,omitempty"`
	TargetClipLength float64 `json:"target_clip_length,omitempty"`
	MaxClips         int     `json:"max_clips,omitempty"`
	MinScore         float64 `json:"min_score,omitempty"`
	Language         string  `json:"language,omitempty"`
	TranslateCaption bool    `json:"translate_captions,omitempty"`
	CaptionLanguage  string  `json:"caption_language,omitempty"`
	OutputDir        string  `json:"output_dir,omitempty"`
	EnqueuedAt       Time    `json:"enqueued_at,omitempty"`
}

// ApplyDefaults fills zero-valued tunables with their documented defaults.
func (r *JobRequest) ApplyDefaults() {
	if r.Layout == "" {
		r.Layout = LayoutFit
	}
	if r.ClipDuration <= 0 {
		r.ClipDuration = DefaultClipDuration
	}
	if r.MinClipLength <= 0 {
		r.MinClipLength = DefaultMinLength
	}
	if r.MaxClipLength <= 0 {
		r.MaxClipLength = DefaultMaxLength
	}
	if r.TargetClipLength <= 0 {
		r.TargetClipLength = r.ClipDuration
	}
}

// Validate checks the request for structural problems. Defaults are not
// applied here so that callers can distinguish "absent" from "invalid".
func (r *JobRequest) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return ErrJobIDRequired
	}
	if r.SourceURL == "" && r.SourcePath == "" {
		return ErrSourceRequired
	}
	if r.SourceURL != "" {
		u, err := url.Parse(r.SourceURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidURL, r.SourceURL)
		}
	}
	if r.Layout != "" && !r.Layout.IsValid() {
		return ErrInvalidLayout
	}
	if r.ClipDuration < 0 {
		return ErrInvalidClipDuration
	}
	min, max, target := r.MinClipLength, r.MaxClipLength, r.TargetClipLength
	if min != 0 || max != 0 || target != 0 {
		if min < 0 || max < 0 || target < 0 {
			return ErrInvalidLengths
		}
		if min != 0 && max != 0 && min > max {
			return ErrInvalidLengths
		}
		if target != 0 {
			if min != 0 && target < min {
				return ErrInvalidLengths
			}
			if max != 0 && target > max {
				return ErrInvalidLengths
			}
		}
	}
	if r.TimeframeEnd != 0 && r.TimeframeEnd <= r.TimeframeStart {
		return ErrInvalidTimeframe
	}
	return nil
}

// ProgressSnapshot is one point-in-time progress report for a running job.
type ProgressSnapshot struct {
	Percent   int          `json:"progress"`
	Stage     string       `json:"stage"`
	Message   string       `json:"message,omitempty"`
	Clips     []ClipRecord `json:"clips,omitempty"`
	Timestamp float64      `json:"timestamp"`
}

// NewProgress builds a snapshot stamped with the current time.
func NewProgress(percent int, stage, message string) ProgressSnapshot {
	return ProgressSnapshot{
		Percent:   percent,
		Stage:     stage,
		Message:   message,
		Timestamp: NowUnix(),
	}
}

// JobError carries the structured failure report stored on the broker.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// JobResult is the terminal payload of a completed job.
type JobResult struct {
	JobID      string       `json:"job_id"`
	Clips      []ClipRecord `json:"clips"`
	TotalClips int          `json:"total_clips"`
	Analysis   string       `json:"analysis_file,omitempty"`
	DurationMs int64        `json:"duration_ms,omitempty"`
}

// JobStatus is the broker-side view of one job, as returned by Get.
type JobStatus struct {
	JobID      string           `json:"job_id"`
	State      JobState         `json:"state"`
	Progress   ProgressSnapshot `json:"progress"`
	Result     *JobResult       `json:"result,omitempty"`
	Error      *JobError        `json:"error,omitempty"`
	Worker     string           `json:"worker,omitempty"`
	EnqueuedAt Time             `json:"enqueued_at,omitempty"`
	StartedAt  Time             `json:"started_at,omitempty"`
	EndedAt    Time             `json:"ended_at,omitempty"`
}
