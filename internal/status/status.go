// Package status maintains the per-job sidecar snapshot file. The sidecar
// mirrors the broker's progress view into `{output_dir}/{job_id}_status.json`
// so downstream tooling can watch a job without broker access. Writes are
// atomic replacements; readers never observe a half-written file.
package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/observability"
)

// Sidecar status values. The file speaks a coarser language than the
// broker: everything before a terminal state is simply "processing".
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Snapshot is the sidecar file schema.
type Snapshot struct {
	JobID     string              `json:"jobId"`
	Status    string              `json:"status"`
	Progress  int                 `json:"progress"`
	Stage     string              `json:"stage"`
	Message   string              `json:"message"`
	Timestamp float64             `json:"timestamp"`
	Clips     []models.ClipRecord `json:"clips,omitempty"`
}

// Writer maintains the sidecar for one job. The sidecar is an auxiliary
// channel: write failures are logged and swallowed so they can never fail
// the job they describe.
type Writer struct {
	jobID  string
	path   string
	logger *slog.Logger
}

// NewWriter builds a writer targeting {outputDir}/{jobID}_status.json.
func NewWriter(outputDir, jobID string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		jobID:  jobID,
		path:   filepath.Join(outputDir, jobID+"_status.json"),
		logger: observability.WithComponent(logger, "status"),
	}
}

// Path returns the sidecar file location.
func (w *Writer) Path() string { return w.path }

// Update records an in-flight progress snapshot.
func (w *Writer) Update(percent int, stage, message string) {
	w.write(Snapshot{
		Status:   StatusProcessing,
		Progress: percent,
		Stage:    stage,
		Message:  message,
	})
}

// Complete records the terminal success snapshot with the produced clips.
func (w *Writer) Complete(message string, clips []models.ClipRecord) {
	w.write(Snapshot{
		Status:   StatusCompleted,
		Progress: 100,
		Stage:    "Completed",
		Message:  message,
		Clips:    clips,
	})
}

// Fail records the terminal error snapshot.
func (w *Writer) Fail(message string) {
	w.write(Snapshot{
		Status:  StatusError,
		Stage:   "Error",
		Message: message,
	})
}

// FromProgress mirrors a broker progress snapshot into the sidecar,
// keeping its original timestamp.
func (w *Writer) FromProgress(p models.ProgressSnapshot) {
	w.write(Snapshot{
		Status:    StatusProcessing,
		Progress:  p.Percent,
		Stage:     p.Stage,
		Message:   p.Message,
		Clips:     p.Clips,
		Timestamp: p.Timestamp,
	})
}

func (w *Writer) write(s Snapshot) {
	s.JobID = w.jobID
	if s.Timestamp == 0 {
		s.Timestamp = models.NowUnix()
	}

	if err := w.writeFile(s); err != nil {
		w.logger.Warn("writing status sidecar failed",
			slog.String("job_id", w.jobID),
			slog.String("path", w.path),
			slog.Any("error", err))
	}
}

func (w *Writer) writeFile(s Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("creating sidecar dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := renameio.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("replacing sidecar: %w", err)
	}
	return nil
}
