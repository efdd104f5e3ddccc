package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/jmylchreest/cliparr/internal/asr"
	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/downloader"
	"github.com/jmylchreest/cliparr/internal/media"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/observability"
	"github.com/jmylchreest/cliparr/internal/queue"
	"github.com/jmylchreest/cliparr/internal/render"
)

// Failure kinds reported on the broker job hash.
const (
	KindValidation    = "validation"
	KindDownload      = "download"
	KindProbe         = "probe"
	KindTranscription = "transcription"
	KindRender        = "render"
	KindBroker        = "broker"
	KindCancelled     = "cancelled"
	KindInternal      = "internal"
)

const (
	defaultHeartbeat    = 30 * time.Second
	defaultClaimTimeout = 5 * time.Second
	claimBackoff        = 2 * time.Second
	cancelPollInterval  = 2 * time.Second
	terminalTimeout     = 10 * time.Second
)

// JobRunner executes one claimed job. Pipeline satisfies it.
type JobRunner interface {
	Run(ctx context.Context, req *models.JobRequest, report Reporter) (*models.JobResult, error)
}

// Runner is the worker loop: it registers on the broker, heartbeats, claims
// jobs one at a time, and reports each terminal outcome.
type Runner struct {
	broker       *queue.Broker
	pipeline     JobRunner
	name         string
	heartbeat    time.Duration
	claimTimeout time.Duration
	cancelPoll   time.Duration
	backoff      time.Duration
	logger       *slog.Logger
}

// NewRunner builds a Runner from the worker configuration.
func NewRunner(broker *queue.Broker, pipeline JobRunner, cfg config.WorkerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = config.DefaultWorkerName
	}
	heartbeat := time.Duration(cfg.HeartbeatInterval)
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	claimTimeout := time.Duration(cfg.ClaimTimeout)
	if claimTimeout <= 0 {
		claimTimeout = defaultClaimTimeout
	}
	return &Runner{
		broker:       broker,
		pipeline:     pipeline,
		name:         name,
		heartbeat:    heartbeat,
		claimTimeout: claimTimeout,
		cancelPoll:   cancelPollInterval,
		backoff:      claimBackoff,
		logger:       observability.WithComponent(logger, "worker"),
	}
}

// Name returns the broker registration name.
func (r *Runner) Name() string { return r.name }

// Run registers the worker and claims jobs until the context is cancelled.
// A second live worker under the same name is refused at registration.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.broker.RegisterWorker(ctx, r.name); err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), terminalTimeout)
		defer cancel()
		if err := r.broker.DeregisterWorker(dctx, r.name); err != nil {
			r.logger.Warn("deregistering worker failed", slog.Any("error", err))
		}
	}()

	go r.heartbeatLoop(ctx)

	r.logger.Info("worker started",
		slog.String("worker", r.name),
		slog.String("queue", r.broker.QueueName()),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		claim, err := r.broker.DequeueBlocking(ctx, r.name, r.claimTimeout)
		if errors.Is(err, queue.ErrNoJob) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("claiming job failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.backoff):
			}
			continue
		}
		r.runJob(ctx, claim)
	}
}

func (r *Runner) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.broker.Heartbeat(ctx, r.name); err != nil && ctx.Err() == nil {
				r.logger.Warn("heartbeat failed", slog.Any("error", err))
			}
		}
	}
}

// runJob executes one claim and always leaves the job in a terminal state,
// including after a panic inside the pipeline.
func (r *Runner) runJob(ctx context.Context, claim *queue.Claim) {
	logger := r.logger.With(slog.String("job_id", claim.JobID))

	req, err := claim.Request()
	if err != nil {
		logger.Error("rejecting unparseable job payload", slog.Any("error", err))
		r.fail(claim.JobID, &models.JobError{Kind: KindValidation, Message: err.Error()})
		return
	}

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	go r.pollCancel(jobCtx, claim.JobID, cancelJob)

	// Progress writes survive job cancellation so the final percentages of a
	// cancelled run still reach readers.
	reportCtx := context.WithoutCancel(jobCtx)
	report := func(snap models.ProgressSnapshot) {
		if err := r.broker.UpdateProgress(reportCtx, claim.JobID, snap); err != nil {
			logger.Warn("progress update failed", slog.Any("error", err))
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("job panicked", slog.Any("panic", rec))
			r.fail(claim.JobID, &models.JobError{
				Kind:    KindInternal,
				Message: fmt.Sprintf("panic: %v", rec),
				Trace:   string(debug.Stack()),
			})
		}
	}()

	result, err := r.pipeline.Run(jobCtx, req, report)
	if err != nil {
		jobErr := Classify(err)
		logger.Error("job failed",
			slog.String("kind", jobErr.Kind),
			slog.Any("error", err),
		)
		r.fail(claim.JobID, jobErr)
		return
	}

	r.complete(claim.JobID, result)
	logger.Info("job reported complete", slog.Int("clips", result.TotalClips))
}

// pollCancel watches the broker cancel flag and cancels the job context when
// it flips. Stage boundaries and subprocess waits observe the cancellation.
func (r *Runner) pollCancel(ctx context.Context, jobID string, cancel context.CancelFunc) {
	ticker := time.NewTicker(r.cancelPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.broker.CancelRequested(ctx, jobID) {
				r.logger.Info("cancellation requested", slog.String("job_id", jobID))
				cancel()
				return
			}
		}
	}
}

// fail reports a terminal failure on a fresh context so it lands even when
// the worker is shutting down.
func (r *Runner) fail(jobID string, jobErr *models.JobError) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalTimeout)
	defer cancel()
	if err := r.broker.Fail(ctx, jobID, jobErr); err != nil {
		r.logger.Error("reporting job failure failed",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

func (r *Runner) complete(jobID string, result *models.JobResult) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalTimeout)
	defer cancel()
	if err := r.broker.Complete(ctx, jobID, result); err != nil {
		r.logger.Error("reporting job completion failed",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

// Classify maps a pipeline error onto the structured failure stored on the
// broker.
func Classify(err error) *models.JobError {
	jobErr := &models.JobError{Message: err.Error()}

	var (
		dlErr    *downloader.DownloadError
		probeErr *media.ProbeError
		asrErr   *asr.TranscriptionError
		renErr   *render.RenderError
		brkErr   *queue.BrokerError
	)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		jobErr.Kind = KindCancelled
	case models.IsValidationError(err):
		jobErr.Kind = KindValidation
	case errors.As(err, &dlErr):
		jobErr.Kind = KindDownload
	case errors.As(err, &probeErr):
		jobErr.Kind = KindProbe
	case errors.As(err, &asrErr):
		jobErr.Kind = KindTranscription
	case errors.As(err, &renErr) || errors.Is(err, render.ErrAllClipsFailed):
		jobErr.Kind = KindRender
	case errors.As(err, &brkErr):
		jobErr.Kind = KindBroker
	default:
		jobErr.Kind = KindInternal
	}
	return jobErr
}
