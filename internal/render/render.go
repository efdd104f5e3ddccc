// Package render turns selected candidate windows into finished vertical
// clips. Each clip walks a fixed stage pipeline: cut the window out of the
// source, reframe it to the 9:16 canvas, compile the caption script from
// clip-local word times, burn the captions in, and grab a thumbnail. A
// failing clip never takes its siblings down; the job only fails when every
// clip does.
package render

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmylchreest/cliparr/internal/captions"
	"github.com/jmylchreest/cliparr/internal/media"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/vision"
)

// Stage names of the per-clip state machine.
type Stage string

const (
	StagePending   Stage = "pending"
	StageCutting   Stage = "cutting"
	StageReframing Stage = "reframing"
	StageCompiling Stage = "compiling"
	StageBurning   Stage = "burning"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// ErrAllClipsFailed reports that no clip of a job survived rendering.
var ErrAllClipsFailed = errors.New("all clips failed to render")

// RenderError tags a clip failure with the stage that broke.
type RenderError struct {
	Stage Stage
	Clip  int
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("clip %d failed at %s: %v", e.Clip, e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Toolchain is the subset of media operations the renderer drives.
// media.Toolchain satisfies it.
type Toolchain interface {
	Probe(ctx context.Context, path string) (*media.ProbeResult, error)
	Cut(ctx context.Context, src, dst string, start, duration float64) error
	Reframe(ctx context.Context, src, dst string, spec media.ReframeSpec) error
	BurnSubtitles(ctx context.Context, src, subsPath, dst string) error
}

// FaceLocator resolves the dominant face center of a video in source
// pixels. vision.Adapter satisfies it.
type FaceLocator interface {
	FaceCenter(ctx context.Context, videoPath string, preferLeft bool) (int, int)
}

// VoiceAnalyzer classifies speakers on the extracted audio track.
// vision.Adapter satisfies it.
type VoiceAnalyzer interface {
	VoiceWindow(ctx context.Context, audioPath string, start, end float64) string
	SpeakerMap(ctx context.Context, audioPath string, start, end float64) *vision.SpeakerTimeline
}

// Thumbnailer writes a preview image for a finished clip.
// thumbs.Generator satisfies it.
type Thumbnailer interface {
	ForClip(ctx context.Context, videoPath string, clipDuration float64) (string, error)
}

// faceKey caches face lookups per source and ten second time bucket, so
// clips cut from the same stretch of video reuse one detection pass.
type faceKey struct {
	source string
	bucket int
}

type facePoint struct {
	x, y int
}

// Renderer renders candidate windows into output clips.
type Renderer struct {
	tools  Toolchain
	faces  FaceLocator
	voice  VoiceAnalyzer
	thumbs Thumbnailer
	logger *slog.Logger

	mu        sync.Mutex
	faceCache map[faceKey]facePoint
}

// Option adjusts a Renderer.
type Option func(*Renderer)

// WithFaces wires face detection for the auto layout.
func WithFaces(f FaceLocator) Option {
	return func(r *Renderer) { r.faces = f }
}

// WithVoice wires speaker analysis for the speaker recipe and for picking
// the face nearest the active voice.
func WithVoice(v VoiceAnalyzer) Option {
	return func(r *Renderer) { r.voice = v }
}

// WithThumbnails wires thumbnail generation for finished clips.
func WithThumbnails(t Thumbnailer) Option {
	return func(r *Renderer) { r.thumbs = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

// New creates a Renderer on the given toolchain.
func New(tools Toolchain, opts ...Option) *Renderer {
	r := &Renderer{
		tools:     tools,
		faceCache: make(map[faceKey]facePoint),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Params carries the per-job inputs shared by every clip.
type Params struct {
	JobID      string
	SourcePath string
	// AudioPath is the extracted WAV used for speaker analysis. Optional;
	// without it the speaker recipe falls back to per-line color cycling.
	AudioPath string
	OutputDir string
	TempDir   string
	Template  models.StyleTemplate
	Layout    models.Layout
	// TargetLength lands in the analysis file settings.
	TargetLength float64
}

// Progress is invoked after each clip attempt with the number of attempts
// finished so far and the total. Optional.
type Progress func(done, total int)

// Render renders every window into a clip. One record per window comes
// back regardless of outcome; the error is non-nil only when the context
// died or every clip failed. Zero windows render to zero records and no
// error.
func (r *Renderer) Render(ctx context.Context, p Params, windows []models.CandidateWindow, progress Progress) ([]models.ClipRecord, error) {
	if len(windows) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.MkdirAll(p.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	records := make([]models.ClipRecord, 0, len(windows))
	rendered := 0
	var lastErr error
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		rec, err := r.renderClip(ctx, p, w, i+1)
		if err != nil {
			var rerr *RenderError
			stage := StageFailed
			if errors.As(err, &rerr) {
				stage = rerr.Stage
			}
			rec.Status = models.ClipStatusFailed
			rec.Error = err.Error()
			lastErr = err
			r.logger.Error("clip render failed",
				slog.String("job_id", p.JobID),
				slog.Int("clip", i+1),
				slog.String("stage", string(stage)),
				slog.Any("error", err))
		} else {
			rendered++
			r.logger.Info("clip rendered",
				slog.String("job_id", p.JobID),
				slog.Int("clip", i+1),
				slog.String("output", rec.Filename),
				slog.Float64("score", rec.Score))
		}
		records = append(records, rec)
		if progress != nil {
			progress(i+1, len(windows))
		}
	}

	if rendered == 0 {
		return records, fmt.Errorf("%w: %v", ErrAllClipsFailed, lastErr)
	}
	return records, nil
}

// renderClip drives one window through the stage pipeline. All
// intermediates are tracked and removed before return on every path.
func (r *Renderer) renderClip(ctx context.Context, p Params, w models.CandidateWindow, index int) (models.ClipRecord, error) {
	rec := models.ClipRecord{
		Index:    index,
		Start:    w.Start,
		End:      w.End,
		Duration: w.Duration(),
		Layout:   p.Layout,
		Template: p.Template.Name,
		Score:    w.Score.Total,
		Text:     w.Text,
		Status:   models.ClipStatusRendered,
	}
	rec.Filename = models.ClipFilename(p.JobID, index, w.Score.Total, p.Layout, p.Template.Name)
	outputPath := filepath.Join(p.OutputDir, rec.Filename)

	scratch := newScratch()
	defer scratch.removeAll(r.logger)

	stem := filepath.Join(p.TempDir, fmt.Sprintf("%s_clip_%d", p.JobID, index))

	// cutting
	r.logStage(p.JobID, index, StageCutting)
	cutPath := stem + "_cut.mp4"
	scratch.track(cutPath)
	if err := r.tools.Cut(ctx, p.SourcePath, cutPath, w.Start, w.Duration()); err != nil {
		return rec, &RenderError{Stage: StageCutting, Clip: index, Err: err}
	}

	// reframing
	r.logStage(p.JobID, index, StageReframing)
	reframedPath := stem + "_" + string(p.Layout) + ".mp4"
	scratch.track(reframedPath)
	spec, err := r.reframeSpec(ctx, p, w, cutPath)
	if err != nil {
		return rec, &RenderError{Stage: StageReframing, Clip: index, Err: err}
	}
	if err := r.tools.Reframe(ctx, cutPath, reframedPath, spec); err != nil {
		return rec, &RenderError{Stage: StageReframing, Clip: index, Err: err}
	}

	// compiling
	r.logStage(p.JobID, index, StageCompiling)
	assPath := stem + ".ass"
	scratch.track(assPath)
	if err := r.compileCaptions(ctx, p, w, index, assPath); err != nil {
		return rec, &RenderError{Stage: StageCompiling, Clip: index, Err: err}
	}

	// burning
	r.logStage(p.JobID, index, StageBurning)
	if err := r.tools.BurnSubtitles(ctx, reframedPath, assPath, outputPath); err != nil {
		os.Remove(outputPath)
		return rec, &RenderError{Stage: StageBurning, Clip: index, Err: err}
	}
	rec.OutputPath = outputPath

	if r.thumbs != nil {
		thumb, err := r.thumbs.ForClip(ctx, outputPath, w.Duration())
		if err != nil {
			// A clip without a preview is still a clip.
			r.logger.Warn("thumbnail generation failed",
				slog.String("job_id", p.JobID),
				slog.Int("clip", index),
				slog.Any("error", err))
		} else {
			rec.ThumbnailPath = thumb
		}
	}

	r.logStage(p.JobID, index, StageDone)
	return rec, nil
}

// reframeSpec resolves the filter parameters for the window. The auto
// layout needs source dimensions and a face coordinate; the fixed layouts
// need nothing.
func (r *Renderer) reframeSpec(ctx context.Context, p Params, w models.CandidateWindow, cutPath string) (media.ReframeSpec, error) {
	spec := media.ReframeSpec{Mode: p.Layout}
	if p.Layout != models.LayoutAuto {
		return spec, nil
	}

	probe, err := r.tools.Probe(ctx, cutPath)
	if err != nil {
		return spec, fmt.Errorf("probing for auto layout: %w", err)
	}
	vs := probe.VideoStream()
	if vs == nil {
		return spec, fmt.Errorf("no video stream in %s", cutPath)
	}
	spec.SourceWidth = vs.Width
	spec.SourceHeight = vs.Height

	if r.faces != nil {
		spec.FaceX, spec.FaceY = r.faceFor(ctx, p, w, cutPath)
	} else {
		spec.FaceX, spec.FaceY = vs.Width/2, vs.Height/2
	}
	return spec, nil
}

// faceFor returns the face center for the window, consulting the per
// source and ten second bucket cache first. The active voice side steers
// which face wins when the frame holds more than one.
func (r *Renderer) faceFor(ctx context.Context, p Params, w models.CandidateWindow, cutPath string) (int, int) {
	key := faceKey{source: p.SourcePath, bucket: int(w.Start / 10)}
	r.mu.Lock()
	if pt, ok := r.faceCache[key]; ok {
		r.mu.Unlock()
		r.logger.Debug("face cache hit",
			slog.String("job_id", p.JobID),
			slog.Int("bucket", key.bucket))
		return pt.x, pt.y
	}
	r.mu.Unlock()

	preferLeft := false
	if r.voice != nil && p.AudioPath != "" {
		preferLeft = r.voice.VoiceWindow(ctx, p.AudioPath, w.Start, w.End) == vision.SpeakerLeft
	}

	x, y := r.faces.FaceCenter(ctx, cutPath, preferLeft)
	r.mu.Lock()
	r.faceCache[key] = facePoint{x: x, y: y}
	r.mu.Unlock()
	return x, y
}

// compileCaptions builds the clip-local caption script and writes it.
func (r *Renderer) compileCaptions(ctx context.Context, p Params, w models.CandidateWindow, index int, assPath string) error {
	opts := []captions.Option{
		captions.WithLayout(p.Layout),
		captions.WithSeed(clipSeed(p.JobID, index)),
		captions.WithLogger(r.logger),
	}
	if p.Template.Recipe == models.RecipeSpeaker && r.voice != nil && p.AudioPath != "" {
		timeline := r.voice.SpeakerMap(ctx, p.AudioPath, w.Start, w.End)
		// The compiler sees clip-local times; the timeline was built in
		// source time.
		opts = append(opts, captions.WithSpeakers(func(t float64) string {
			return timeline.At(t + w.Start)
		}))
	}

	compiler := captions.NewCompiler(p.Template, opts...)
	script, err := compiler.Compile(localSegments(w))
	if err != nil {
		return err
	}

	if err := os.WriteFile(assPath, []byte(script.Render()), 0o644); err != nil {
		return fmt.Errorf("writing caption script: %w", err)
	}
	return nil
}

// localSegments rebases the window's segments to clip-local time, word
// times shifted by the window start and clamped at zero.
func localSegments(w models.CandidateWindow) []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, 0, len(w.Segments))
	for _, seg := range w.Segments {
		local := seg
		local.Start = math.Max(0, seg.Start-w.Start)
		local.End = seg.End - w.Start
		if local.End <= 0 {
			continue
		}
		local.Words = models.ShiftWords(seg.Words, -w.Start)
		out = append(out, local)
	}
	return out
}

// clipSeed derives the deterministic caption seed for one clip of a job.
func clipSeed(jobID string, index int) int64 {
	h := fnv.New64a()
	h.Write([]byte(jobID))
	return int64(h.Sum64()) + int64(index)
}

func (r *Renderer) logStage(jobID string, index int, stage Stage) {
	r.logger.Debug("clip stage",
		slog.String("job_id", jobID),
		slog.Int("clip", index),
		slog.String("stage", string(stage)))
}

// scratch tracks intermediate files for removal.
type scratch struct {
	paths []string
}

func newScratch() *scratch {
	return &scratch{}
}

func (s *scratch) track(path string) {
	s.paths = append(s.paths, path)
}

func (s *scratch) removeAll(logger *slog.Logger) {
	for _, p := range s.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn("removing intermediate failed",
				slog.String("path", p),
				slog.Any("error", err))
		}
	}
}
