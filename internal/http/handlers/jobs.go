package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/queue"
)

// maxFormMemory bounds in-memory parsing of the submission form. The form
// carries only text fields; the video itself arrives by URL.
const maxFormMemory = 1 << 20

// JobBroker is the queue surface the job handler drives.
// queue.Broker satisfies it.
type JobBroker interface {
	Enqueue(ctx context.Context, req *models.JobRequest) error
	Get(ctx context.Context, jobID string) (*models.JobStatus, error)
	RequestCancel(ctx context.Context, jobID string) (bool, error)
}

// JobHandler handles job submission, polling, and cancellation.
type JobHandler struct {
	broker    JobBroker
	outputDir string
	logger    *slog.Logger
}

// NewJobHandler creates a new job handler. outputDir is the default clip
// destination recorded on submitted jobs.
func NewJobHandler(broker JobBroker, outputDir string, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		broker:    broker,
		outputDir: outputDir,
		logger:    logger,
	}
}

// Register registers the job routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/jobs/{id}",
		Summary:     "Get job status",
		Description: "Returns the current state of a job. Unknown ids return the not_found sentinel state with HTTP 200 so pollers can retry.",
		Tags:        []string{"Jobs"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "cancelJob",
		Method:      "POST",
		Path:        "/jobs/{id}/cancel",
		Summary:     "Cancel job",
		Description: "Requests cancellation of a queued or running job. The worker honors the flag at the next stage boundary.",
		Tags:        []string{"Jobs"},
	}, h.Cancel)
}

// RegisterChiRoutes registers the form-encoded submission route.
// This uses Chi directly because clients submit multipart or urlencoded
// forms, both of which net/http parses natively.
func (h *JobHandler) RegisterChiRoutes(router chi.Router) {
	router.Post("/jobs", h.SubmitJob)
}

// SubmitJob accepts a clip generation request and enqueues it.
// Responds 200 with the job id, or 400 on validation failure.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeJSONError(w, "malformed form payload", http.StatusBadRequest)
		return
	}

	req, err := requestFromForm(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.broker.Enqueue(r.Context(), req); err != nil {
		if errors.Is(err, queue.ErrDuplicateJob) {
			writeJSONError(w, fmt.Sprintf("job %s is already in progress", req.JobID), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to enqueue job",
			slog.String("job_id", req.JobID),
			slog.Any("error", err),
		)
		writeJSONDetails(w, "Failed to create job", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Job enqueued successfully",
		"job_id":  req.JobID,
	})
}

// requestFromForm builds a job request from submission form fields.
func requestFromForm(r *http.Request) (*models.JobRequest, error) {
	req := &models.JobRequest{
		JobID:            strings.TrimSpace(r.FormValue("job_id")),
		OriginalFilename: r.FormValue("original_filename"),
		Template:         strings.TrimSpace(r.FormValue("template")),
		Layout:           models.Layout(strings.TrimSpace(r.FormValue("layout"))),
		Language:         strings.TrimSpace(r.FormValue("video_language")),
		CaptionLanguage:  strings.TrimSpace(r.FormValue("caption_language")),
		EnqueuedAt:       models.Now(),
	}

	req.SourceURL = strings.TrimSpace(r.FormValue("youtube_url"))
	if req.SourceURL == "" {
		req.SourceURL = strings.TrimSpace(r.FormValue("video_url"))
	}

	if raw := strings.TrimSpace(r.FormValue("opus_template")); raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("invalid opus_template: not valid JSON")
		}
		req.TemplateOverride = raw
	}

	var err error
	if req.ClipDuration, err = formFloat(r, "clip_duration"); err != nil {
		return nil, err
	}
	if req.TimeframeStart, err = formFloat(r, "timeframe_start"); err != nil {
		return nil, err
	}
	if req.TimeframeEnd, err = formFloat(r, "timeframe_end"); err != nil {
		return nil, err
	}
	if req.MinClipLength, err = formFloat(r, "min_clip_length"); err != nil {
		return nil, err
	}
	if req.MaxClipLength, err = formFloat(r, "max_clip_length"); err != nil {
		return nil, err
	}
	if req.TargetClipLength, err = formFloat(r, "target_clip_length"); err != nil {
		return nil, err
	}
	if req.MinScore, err = formFloat(r, "min_score"); err != nil {
		return nil, err
	}
	if req.MaxClips, err = formInt(r, "max_clips"); err != nil {
		return nil, err
	}
	if req.TranslateCaption, err = formBool(r, "translate_captions"); err != nil {
		return nil, err
	}

	return req, nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func formInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func formBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

// GetJobInput is the input for polling a job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job id chosen at submission"`
}

// GetJobOutput is the output for polling a job.
type GetJobOutput struct {
	Body struct {
		Job JobView `json:"job"`
	}
}

// GetByID returns the current state of a job. Unknown ids come back with the
// not_found sentinel rather than a 404.
func (h *JobHandler) GetByID(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	status, err := h.broker.Get(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get job", err)
	}

	resp := &GetJobOutput{}
	resp.Body.Job = JobViewFromStatus(status)
	return resp, nil
}

// CancelJobInput is the input for canceling a job.
type CancelJobInput struct {
	ID string `path:"id" doc:"Job id chosen at submission"`
}

// CancelJobOutput is the output for canceling a job.
type CancelJobOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Cancel requests cancellation of a queued or running job.
func (h *JobHandler) Cancel(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
	ok, err := h.broker.RequestCancel(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to cancel job", err)
	}
	if !ok {
		status, err := h.broker.Get(ctx, input.ID)
		if err == nil && status.State == models.JobStateNotFound {
			return nil, huma.Error404NotFound(fmt.Sprintf("job %s not found", input.ID))
		}
		return nil, huma.Error400BadRequest(fmt.Sprintf("job %s already finished", input.ID))
	}

	resp := &CancelJobOutput{}
	resp.Body.Message = fmt.Sprintf("cancellation requested for job %s", input.ID)
	return resp, nil
}

// writeJSON writes a JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeJSONError writes an error response in JSON format for consistency with API clients.
func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeJSONDetails writes an error response carrying a detail string.
func writeJSONDetails(w http.ResponseWriter, message, details string, status int) {
	writeJSON(w, status, map[string]string{"error": message, "details": details})
}
