// Package handlers provides HTTP API handlers for cliparr.
package handlers

import (
	"github.com/jmylchreest/cliparr/internal/models"
)

// JobView is the public representation of one job, as polled by clients.
// Queued jobs report as PROCESSING so pollers see a single in-flight state.
type JobView struct {
	ID       string            `json:"id,omitempty"`
	State    string            `json:"state" doc:"PROCESSING, COMPLETED, FAILED or not_found"`
	Progress int               `json:"progress"`
	Stage    string            `json:"stage,omitempty"`
	Message  string            `json:"message,omitempty"`
	Result   *models.JobResult `json:"result,omitempty"`
	Error    *JobErrorView     `json:"error,omitempty"`
}

// JobErrorView carries the failure report of a failed job.
type JobErrorView struct {
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

// JobViewFromStatus maps a broker job status onto the public view.
func JobViewFromStatus(status *models.JobStatus) JobView {
	view := JobView{
		ID:       status.JobID,
		State:    string(status.State.Public()),
		Progress: status.Progress.Percent,
		Stage:    status.Progress.Stage,
		Message:  status.Progress.Message,
	}

	switch status.State {
	case models.JobStateNotFound:
		view.ID = ""
	case models.JobStateQueued:
		if view.Stage == "" {
			view.Stage = "Queued"
		}
		if view.Message == "" {
			view.Message = "Job is waiting to be processed."
		}
	case models.JobStateCompleted:
		view.Progress = 100
		if view.Stage == "" {
			view.Stage = "Complete"
		}
		if view.Message == "" {
			view.Message = "Processing complete."
		}
		view.Result = status.Result
	case models.JobStateFailed:
		if status.Error != nil {
			view.Message = status.Error.Message
			view.Error = &JobErrorView{
				Kind:      status.Error.Kind,
				Message:   status.Error.Message,
				Traceback: status.Error.Trace,
			}
		}
		if view.Stage == "" {
			view.Stage = "Failed"
		}
	}

	return view
}

// ClipEntry is one downloadable clip in the clips listing.
type ClipEntry struct {
	Filename  string  `json:"filename"`
	URL       string  `json:"url"`
	JobID     string  `json:"job_id,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Layout    string  `json:"layout,omitempty"`
	Template  string  `json:"template,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	SizeBytes int64   `json:"size_bytes,omitempty"`
}

// TemplateEntry is one caption style in the templates listing.
type TemplateEntry struct {
	Name         string `json:"name"`
	Recipe       string `json:"recipe"`
	FontName     string `json:"font_name"`
	FontSize     int    `json:"font_size"`
	WordsPerLine int    `json:"words_per_line"`
	AllCaps      bool   `json:"all_caps"`
}

// VideoInfoResponse is the remote metadata probe payload.
type VideoInfoResponse struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	ViewCount  int64   `json:"view_count"`
	UploadDate string  `json:"upload_date,omitempty"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// CPUInfo describes system load.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo describes system and process memory usage.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessMemoryMB   float64 `json:"process_memory_mb"`
}

// WorkerView is one registered worker in the system report.
type WorkerView struct {
	Name      string `json:"name"`
	Host      string `json:"host,omitempty"`
	PID       int    `json:"pid,omitempty"`
	Queue     string `json:"queue,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	LastBeat  string `json:"last_beat,omitempty"`
	Alive     bool   `json:"alive"`
}

// SystemResponse is the system status payload.
type SystemResponse struct {
	Version    string       `json:"version"`
	GoVersion  string       `json:"go_version"`
	Goroutines int          `json:"goroutines"`
	CPU        CPUInfo      `json:"cpu"`
	Memory     MemoryInfo   `json:"memory"`
	QueueDepth int64        `json:"queue_depth"`
	Workers    []WorkerView `json:"workers"`
}
