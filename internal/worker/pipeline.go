// Package worker executes clip generation jobs. The Pipeline runs one job
// end to end (resolve source, extract audio, transcribe, select, render,
// record); the Runner wraps it in a broker claim loop with registration,
// heartbeats, and structured failure reporting.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/cliparr/internal/asr"
	"github.com/jmylchreest/cliparr/internal/catalog"
	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/downloader"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/observability"
	"github.com/jmylchreest/cliparr/internal/render"
	"github.com/jmylchreest/cliparr/internal/selector"
	"github.com/jmylchreest/cliparr/internal/status"
	"github.com/jmylchreest/cliparr/internal/store"
	"github.com/jmylchreest/cliparr/internal/translate"
)

// Fetcher resolves a remote source URL into a local file.
// downloader.Downloader satisfies it.
type Fetcher interface {
	Download(ctx context.Context, rawURL, destDir string) (*downloader.Result, error)
}

// MediaTools is the subset of toolchain operations the pipeline itself
// drives. media.Toolchain satisfies it.
type MediaTools interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractAudio(ctx context.Context, src, dst string, sampleRate int) error
}

// ClipRenderer renders selected windows into output clips.
// render.Renderer satisfies it.
type ClipRenderer interface {
	Render(ctx context.Context, p render.Params, windows []models.CandidateWindow, progress render.Progress) ([]models.ClipRecord, error)
}

// Reporter receives progress snapshots while a job runs.
type Reporter func(snap models.ProgressSnapshot)

// Deps wires the pipeline's collaborators. Translator, Clips, and Runs are
// optional; the rest are required.
type Deps struct {
	Config      *config.Config
	Tools       MediaTools
	Fetcher     Fetcher
	Transcriber asr.Transcriber
	Selector    *selector.Selector
	Catalog     *catalog.Catalog
	Renderer    ClipRenderer
	Translator  translate.Translator
	Clips       *store.ClipRepository
	Runs        *store.RunRepository
	Logger      *slog.Logger
}

// Pipeline executes one clip generation job at a time.
type Pipeline struct {
	cfg         *config.Config
	tools       MediaTools
	fetch       Fetcher
	transcriber asr.Transcriber
	selector    *selector.Selector
	catalog     *catalog.Catalog
	renderer    ClipRenderer
	translator  translate.Translator
	clips       *store.ClipRepository
	runs        *store.RunRepository
	logger      *slog.Logger
	workerName  string
}

// NewPipeline builds a Pipeline from its dependencies.
func NewPipeline(d Deps) *Pipeline {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:         d.Config,
		tools:       d.Tools,
		fetch:       d.Fetcher,
		transcriber: d.Transcriber,
		selector:    d.Selector,
		catalog:     d.Catalog,
		renderer:    d.Renderer,
		translator:  d.Translator,
		clips:       d.Clips,
		runs:        d.Runs,
		logger:      observability.WithComponent(logger, "pipeline"),
		workerName:  d.Config.Worker.Name,
	}
}

// job carries the per-run state threaded through the stages.
type job struct {
	req       *models.JobRequest
	template  models.StyleTemplate
	outputDir string
	tempDir   string
	source    string
	sourceRef string
	audioPath string
	sidecar   *status.Writer
	report    Reporter
	started   time.Time
}

// progress publishes one snapshot to the sidecar and the reporter.
func (j *job) progress(percent int, stage, message string) {
	j.sidecar.Update(percent, stage, message)
	if j.report != nil {
		j.report(models.NewProgress(percent, stage, message))
	}
}

// Run executes the job and returns its terminal result. The request is
// validated first; after that every failure is mirrored into the sidecar
// before it propagates. An empty selection is a success with zero clips.
func (p *Pipeline) Run(ctx context.Context, req *models.JobRequest, report Reporter) (*models.JobResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.ApplyDefaults()

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = p.cfg.Storage.OutputDir
	}

	j := &job{
		req:       req,
		outputDir: outputDir,
		sidecar:   status.NewWriter(outputDir, req.JobID, p.logger),
		report:    report,
		started:   time.Now(),
	}

	result, err := p.run(ctx, j)
	if err != nil {
		j.sidecar.Fail(err.Error())
		p.recordRun(j, models.JobRunFailed, 0, err)
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, j *job) (*models.JobResult, error) {
	req := j.req
	logger := p.logger.With(slog.String("job_id", req.JobID))

	tmpl, err := p.resolveTemplate(req)
	if err != nil {
		return nil, err
	}
	j.template = tmpl

	j.tempDir = filepath.Join(p.cfg.Storage.TempDir, req.JobID)
	if err := os.MkdirAll(j.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating job temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(j.tempDir); err != nil {
			logger.Warn("removing job temp dir failed",
				slog.String("dir", j.tempDir), slog.Any("error", err))
		}
	}()

	if err := p.resolveSource(ctx, j); err != nil {
		return nil, err
	}

	duration, err := p.tools.ProbeDuration(ctx, j.source)
	if err != nil {
		return nil, err
	}

	j.progress(20, "Audio Extraction", "Extracting audio from video")
	j.audioPath = filepath.Join(j.tempDir, req.JobID+"_audio.wav")
	if err := p.tools.ExtractAudio(ctx, j.source, j.audioPath, p.cfg.ASR.SampleRate); err != nil {
		return nil, err
	}
	j.progress(30, "Audio Extraction Complete", "Audio extracted successfully")

	j.progress(35, "Transcription", "Transcribing audio")
	transcript, err := p.transcriber.Transcribe(ctx, j.audioPath, req.Language)
	if err != nil {
		return nil, err
	}
	segments := filterTimeframe(transcript.Segments, req.TimeframeStart, req.TimeframeEnd)
	j.progress(60, "Transcription Complete",
		fmt.Sprintf("Transcription finished (%d segments)", len(segments)))

	j.progress(65, "Subtitle Generation", "Selecting clip candidates")
	windows := p.selectWindows(ctx, segments, req, duration)
	if len(windows) == 0 {
		logger.Info("no candidate windows selected",
			slog.Int("segments", len(segments)),
			slog.Float64("duration", duration))
		return p.finishEmpty(ctx, j)
	}
	p.applyCaptionLanguage(ctx, windows, req, transcript.Language)
	j.progress(70, "Subtitle Generation Complete",
		fmt.Sprintf("Selected %d clip candidates", len(windows)))

	j.progress(75, "Video Processing", "Rendering clips")
	records, err := p.renderer.Render(ctx, render.Params{
		JobID:        req.JobID,
		SourcePath:   j.source,
		AudioPath:    j.audioPath,
		OutputDir:    j.outputDir,
		TempDir:      j.tempDir,
		Template:     tmpl,
		Layout:       req.Layout,
		TargetLength: req.TargetClipLength,
	}, windows, func(done, total int) {
		percent := 75 + 10*done/total
		j.progress(percent, "Video Processing",
			fmt.Sprintf("Rendered clip %d/%d", done, total))
	})
	if err != nil {
		return nil, err
	}
	j.progress(85, "Video Processing Complete", "All clips rendered")

	j.progress(95, "Finalizing", "Preparing final clips")
	analysisPath, err := render.WriteAnalysis(j.outputDir, records, req.TargetClipLength)
	if err != nil {
		return nil, err
	}
	rendered := renderedRecords(records)
	p.recordClips(ctx, j, rendered)
	p.recordRun(j, models.JobRunCompleted, len(rendered), nil)

	result := &models.JobResult{
		JobID:      req.JobID,
		Clips:      records,
		TotalClips: len(rendered),
		Analysis:   analysisPath,
		DurationMs: time.Since(j.started).Milliseconds(),
	}
	message := fmt.Sprintf("Generated %d clips", len(rendered))
	if j.report != nil {
		j.report(models.NewProgress(100, "Complete", message))
	}
	j.sidecar.Complete(message, rendered)
	logger.Info("job complete",
		slog.Int("clips", len(rendered)),
		slog.Int("attempted", len(records)),
		slog.Int64("duration_ms", result.DurationMs))
	return result, nil
}

// resolveTemplate picks the caption template: the requested name (falling
// back to the configured default), with any inline JSON override merged on
// top of it.
func (p *Pipeline) resolveTemplate(req *models.JobRequest) (models.StyleTemplate, error) {
	name := req.Template
	if name == "" {
		name = p.cfg.Pipeline.DefaultTemplate
	}
	if name == "" {
		name = catalog.DefaultTemplateName
	}
	base, err := p.catalog.Get(name)
	if err != nil {
		return models.StyleTemplate{}, err
	}
	if req.TemplateOverride == "" {
		return base, nil
	}
	merged, err := base.ApplyOverride(req.TemplateOverride)
	if err != nil {
		return models.StyleTemplate{}, models.ErrValidation{
			Field:   "opus_template",
			Message: err.Error(),
		}
	}
	return merged, nil
}

// resolveSource produces a local file for the job: an uploaded path is
// checked, a URL is downloaded into the job temp dir.
func (p *Pipeline) resolveSource(ctx context.Context, j *job) error {
	req := j.req
	if req.SourcePath != "" {
		if _, err := os.Stat(req.SourcePath); err != nil {
			return models.ErrValidation{
				Field:   "video_url",
				Message: fmt.Sprintf("source file not accessible: %v", err),
			}
		}
		j.source = req.SourcePath
		j.sourceRef = req.OriginalFilename
		if j.sourceRef == "" {
			j.sourceRef = filepath.Base(req.SourcePath)
		}
		return nil
	}

	j.progress(5, "Downloading", "Downloading video from "+req.SourceURL)
	res, err := p.fetch.Download(ctx, req.SourceURL, j.tempDir)
	if err != nil {
		return err
	}
	j.source = res.Path
	j.sourceRef = req.SourceURL
	j.progress(15, "Download Complete", "Video downloaded successfully")
	return nil
}

// selectWindows runs segmentation, ranking, and the capped top-N pick, then
// applies the soft score threshold: windows under it drop unless that would
// drop everything, in which case the best available stay.
func (p *Pipeline) selectWindows(ctx context.Context, segments []models.TranscriptSegment, req *models.JobRequest, duration float64) []models.CandidateWindow {
	params := selector.ParamsFromRequest(req)
	candidates := p.selector.Segment(segments, params)
	ranked := p.selector.Rank(ctx, candidates, params)

	maxClips := req.MaxClips
	if maxClips <= 0 {
		maxClips = p.cfg.Pipeline.MaxClips
	}
	if maxClips <= 0 {
		maxClips = math.MaxInt
	}
	windows := p.selector.SelectTop(ranked, maxClips, duration, params)

	minScore := req.MinScore
	if minScore <= 0 {
		minScore = p.cfg.Pipeline.MinScore
	}
	if minScore > 0 {
		kept := make([]models.CandidateWindow, 0, len(windows))
		for _, w := range windows {
			if w.Score.Total >= minScore {
				kept = append(kept, w)
			}
		}
		if len(kept) > 0 {
			windows = kept
		}
	}
	return windows
}

// applyCaptionLanguage rewrites each window's segments per the decided
// caption handling. Timing survives; window text is rebuilt so the clip
// records match what the burned captions show.
func (p *Pipeline) applyCaptionLanguage(ctx context.Context, windows []models.CandidateWindow, req *models.JobRequest, detected string) {
	source := detected
	if source == "" || source == asr.LanguageAuto {
		source = req.Language
	}
	if translate.Decide(source, req.CaptionLanguage, req.TranslateCaption) == translate.ModeKeep {
		return
	}
	for i := range windows {
		windows[i].Segments = translate.Captions(ctx, p.translator, windows[i].Segments,
			source, req.CaptionLanguage, req.TranslateCaption, p.logger)
		windows[i].Text = joinSegmentText(windows[i].Segments)
	}
}

// finishEmpty completes a job that selected no windows. This is a success:
// the video simply holds no engaging segments within the given bounds.
func (p *Pipeline) finishEmpty(ctx context.Context, j *job) (*models.JobResult, error) {
	p.recordRun(j, models.JobRunCompleted, 0, nil)
	result := &models.JobResult{
		JobID:      j.req.JobID,
		Clips:      []models.ClipRecord{},
		TotalClips: 0,
		DurationMs: time.Since(j.started).Milliseconds(),
	}
	message := "No engaging segments found"
	if j.report != nil {
		j.report(models.NewProgress(100, "Complete", message))
	}
	j.sidecar.Complete(message, nil)
	return result, nil
}

// recordClips persists rendered clips into the library. Library failures
// never fail a finished job.
func (p *Pipeline) recordClips(ctx context.Context, j *job, rendered []models.ClipRecord) {
	if p.clips == nil {
		return
	}
	for _, rec := range rendered {
		clip := &models.Clip{
			JobID:     j.req.JobID,
			Filename:  rec.Filename,
			Source:    j.sourceRef,
			Start:     rec.Start,
			End:       rec.End,
			Duration:  rec.Duration,
			Layout:    rec.Layout,
			Template:  rec.Template,
			Score:     rec.Score,
			Text:      rec.Text,
			Thumbnail: rec.ThumbnailPath,
		}
		if info, err := os.Stat(rec.OutputPath); err == nil {
			clip.SizeBytes = info.Size()
		}
		if err := p.clips.Record(ctx, clip); err != nil {
			p.logger.Warn("recording clip in library failed",
				slog.String("job_id", j.req.JobID),
				slog.String("filename", rec.Filename),
				slog.Any("error", err))
		}
	}
}

// recordRun persists the job history row. Best effort like recordClips.
func (p *Pipeline) recordRun(j *job, st models.JobRunStatus, clipCount int, runErr error) {
	if p.runs == nil {
		return
	}
	run := &models.JobRun{
		JobID:      j.req.JobID,
		Source:     j.sourceRef,
		Template:   j.template.Name,
		Layout:     j.req.Layout,
		Status:     st,
		ClipCount:  clipCount,
		DurationMs: time.Since(j.started).Milliseconds(),
		Worker:     p.workerName,
	}
	if runErr != nil {
		run.LastError = runErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.runs.Record(ctx, run); err != nil {
		p.logger.Warn("recording job run failed",
			slog.String("job_id", j.req.JobID),
			slog.Any("error", err))
	}
}

// filterTimeframe keeps segments overlapping [start, end]. A zero end means
// open-ended; both zero means no filtering.
func filterTimeframe(segments []models.TranscriptSegment, start, end float64) []models.TranscriptSegment {
	if start <= 0 && end <= 0 {
		return segments
	}
	out := make([]models.TranscriptSegment, 0, len(segments))
	for _, seg := range segments {
		if seg.End < start {
			continue
		}
		if end > 0 && seg.Start > end {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// renderedRecords filters a render outcome down to the successful clips.
func renderedRecords(records []models.ClipRecord) []models.ClipRecord {
	out := make([]models.ClipRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == models.ClipStatusRendered {
			out = append(out, rec)
		}
	}
	return out
}

// joinSegmentText rebuilds a window's display text from its segments.
func joinSegmentText(segments []models.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
