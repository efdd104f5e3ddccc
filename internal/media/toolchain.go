package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/observability"
)

// Toolchain exposes the ffmpeg operations the clip pipeline needs. All
// operations honor their context; on cancellation the child process is
// killed and reaped within the configured reap delay.
type Toolchain struct {
	ffmpegPath string
	prober     *Prober
	logger     *slog.Logger

	extractTimeout time.Duration
	stageTimeout   time.Duration
	reapDelay      time.Duration

	canvasW, canvasH         int
	autoCanvasW, autoCanvasH int
	autoZoom                 float64
	fitBlurSigma             int
	squareBlurSigma          int
	squareInsetHeight        int
	squareRaiseOffset        int

	mu       sync.Mutex
	tempped  []string
	disabled bool
}

// NewToolchain builds a toolchain from media configuration.
func NewToolchain(cfg config.MediaConfig, logger *slog.Logger) *Toolchain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolchain{
		ffmpegPath:        cfg.FFmpegPath,
		prober:            NewProber(cfg.FFprobePath).WithTimeout(time.Duration(cfg.ProbeTimeout)),
		logger:            observability.WithComponent(logger, "media"),
		extractTimeout:    time.Duration(cfg.ExtractTimeout),
		stageTimeout:      time.Duration(cfg.ClipStageTimeout),
		reapDelay:         time.Duration(cfg.ReapTimeout),
		canvasW:           cfg.CanvasWidth,
		canvasH:           cfg.CanvasHeight,
		autoCanvasW:       cfg.AutoCanvasWidth,
		autoCanvasH:       cfg.AutoCanvasHeight,
		autoZoom:          cfg.AutoZoom,
		fitBlurSigma:      cfg.FitBlurSigma,
		squareBlurSigma:   cfg.SquareBlurSigma,
		squareInsetHeight: cfg.SquareInsetHeight,
		squareRaiseOffset: cfg.SquareRaiseOffset,
	}
}

// Prober returns the underlying prober.
func (t *Toolchain) Prober() *Prober {
	return t.prober
}

// Probe probes a media file.
func (t *Toolchain) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	return t.prober.Probe(ctx, path)
}

// ProbeDuration returns the duration of a media file in seconds.
func (t *Toolchain) ProbeDuration(ctx context.Context, path string) (float64, error) {
	result, err := t.prober.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	d := result.Duration()
	if d <= 0 {
		return 0, &ProbeError{Path: path, Reason: "container reports no duration"}
	}
	return d, nil
}

// ExtractAudio extracts the audio track as 16-bit PCM WAV at the given
// sample rate, mono.
func (t *Toolchain) ExtractAudio(ctx context.Context, src, dst string, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	opCtx, cancel := context.WithTimeout(ctx, t.extractTimeout)
	defer cancel()

	cmd := NewCommandBuilder(t.ffmpegPath).
		HideBanner().
		Overwrite().
		Input(src).
		NoVideo().
		AudioCodec("pcm_s16le").
		AudioRate(sampleRate).
		AudioChannels(1).
		Output(dst).
		Build()
	cmd.ReapDelay = t.reapDelay

	done := observability.TimedOperation(opCtx, t.logger.With(slog.String("src", filepath.Base(src))), "extract_audio")
	err := cmd.Run(opCtx)
	done()
	if err != nil {
		return fmt.Errorf("extracting audio: %w", err)
	}
	t.track(dst)
	return nil
}

// Cut extracts [start, start+duration) from src with an accurate re-encode.
func (t *Toolchain) Cut(ctx context.Context, src, dst string, start, duration float64) error {
	opCtx, cancel := context.WithTimeout(ctx, t.stageTimeout)
	defer cancel()

	cmd := NewCommandBuilder(t.ffmpegPath).
		HideBanner().
		Overwrite().
		SeekInput(start).
		Input(src).
		Duration(duration).
		VideoCodec("libx264").
		VideoPreset("fast").
		CRF(23).
		AudioCodec("aac").
		OutputArgs("-avoid_negative_ts", "make_zero").
		Output(dst).
		Build()
	cmd.ReapDelay = t.reapDelay

	done := observability.TimedOperation(opCtx,
		t.logger.With(slog.Float64("start", start), slog.Float64("duration", duration)), "cut")
	err := cmd.Run(opCtx)
	done()
	if err != nil {
		return fmt.Errorf("cutting clip: %w", err)
	}
	t.track(dst)
	return nil
}

// Reframe converts src to the vertical canvas using the layout in spec.
func (t *Toolchain) Reframe(ctx context.Context, src, dst string, spec ReframeSpec) error {
	graph, useComplex, err := t.reframeFilter(spec)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, t.stageTimeout)
	defer cancel()

	b := NewCommandBuilder(t.ffmpegPath).
		HideBanner().
		Overwrite().
		Input(src)
	if useComplex {
		b.FilterComplex(graph)
	} else {
		b.VideoFilter(graph)
	}
	cmd := b.
		VideoCodec("libx264").
		VideoPreset("fast").
		CRF(23).
		AudioCodec("aac").
		Output(dst).
		Build()
	cmd.ReapDelay = t.reapDelay

	done := observability.TimedOperation(opCtx, t.logger.With(slog.String("layout", string(spec.Mode))), "reframe")
	err = cmd.Run(opCtx)
	done()
	if err != nil {
		return fmt.Errorf("reframing to %s: %w", spec.Mode, err)
	}
	t.track(dst)
	return nil
}

// BurnSubtitles renders the subtitle file into the video stream. Audio is
// passed through untouched.
func (t *Toolchain) BurnSubtitles(ctx context.Context, src, subsPath, dst string) error {
	opCtx, cancel := context.WithTimeout(ctx, t.stageTimeout)
	defer cancel()

	cmd := NewCommandBuilder(t.ffmpegPath).
		HideBanner().
		Overwrite().
		Input(src).
		VideoFilter(subtitlesFilter(subsPath)).
		VideoCodec("libx264").
		VideoPreset("fast").
		CRF(23).
		AudioCodec("copy").
		Output(dst).
		Build()
	cmd.ReapDelay = t.reapDelay

	done := observability.TimedOperation(opCtx, t.logger.With(slog.String("subs", filepath.Base(subsPath))), "burn_subtitles")
	err := cmd.Run(opCtx)
	done()
	if err != nil {
		return fmt.Errorf("burning subtitles: %w", err)
	}
	t.track(dst)
	return nil
}

// Concat joins the given parts into one file using the concat demuxer
// without re-encoding. Parts must share codec parameters.
func (t *Toolchain) Concat(ctx context.Context, parts []string, dst string) error {
	if len(parts) == 0 {
		return fmt.Errorf("concat needs at least one part")
	}

	listPath := dst + ".concat.txt"
	var sb strings.Builder
	for _, p := range parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}
	t.track(listPath)

	opCtx, cancel := context.WithTimeout(ctx, t.stageTimeout)
	defer cancel()

	cmd := NewCommandBuilder(t.ffmpegPath).
		HideBanner().
		Overwrite().
		InputArgs("-f", "concat", "-safe", "0").
		Input(listPath).
		CopyCodecs().
		Output(dst).
		Build()
	cmd.ReapDelay = t.reapDelay

	if err := cmd.Run(opCtx); err != nil {
		return fmt.Errorf("concatenating %d parts: %w", len(parts), err)
	}
	t.track(dst)
	return nil
}

// ExtractFrame grabs a single frame at the given offset as an image file.
// The format follows the dst extension.
func (t *Toolchain) ExtractFrame(ctx context.Context, src string, atSeconds float64, dst string) error {
	opCtx, cancel := context.WithTimeout(ctx, t.extractTimeout)
	defer cancel()

	cmd := NewCommandBuilder(t.ffmpegPath).
		HideBanner().
		Overwrite().
		SeekInput(atSeconds).
		Input(src).
		Frames(1).
		Output(dst).
		Build()
	cmd.ReapDelay = t.reapDelay

	if err := cmd.Run(opCtx); err != nil {
		return fmt.Errorf("extracting frame at %.2fs: %w", atSeconds, err)
	}
	t.track(dst)
	return nil
}

// SampleFrames extracts up to maxFrames frames at a fixed frame stride into
// dir, named frame_%04d.png. Returns the written file paths in order.
func (t *Toolchain) SampleFrames(ctx context.Context, src, dir string, stride, maxFrames int) ([]string, error) {
	if stride <= 0 {
		stride = 30
	}
	if maxFrames <= 0 {
		maxFrames = 300
	}

	opCtx, cancel := context.WithTimeout(ctx, t.extractTimeout)
	defer cancel()

	pattern := filepath.Join(dir, "frame_%04d.png")
	cmd := NewCommandBuilder(t.ffmpegPath).
		HideBanner().
		Overwrite().
		Input(src).
		VideoFilter(fmt.Sprintf(`select=not(mod(n\,%d))`, stride)).
		OutputArgs("-vsync", "vfr").
		Frames(maxFrames).
		Output(pattern).
		Build()
	cmd.ReapDelay = t.reapDelay

	if err := cmd.Run(opCtx); err != nil {
		return nil, fmt.Errorf("sampling frames: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, fmt.Errorf("listing sampled frames: %w", err)
	}
	for _, m := range matches {
		t.track(m)
	}
	return matches, nil
}

// track remembers a produced file for later cleanup.
func (t *Toolchain) track(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabled {
		return
	}
	t.tempped = append(t.tempped, path)
}

// DisableTracking turns off temp tracking, for callers that manage their
// own directories.
func (t *Toolchain) DisableTracking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = true
	t.tempped = nil
}

// Cleanup removes every file the toolchain produced since the last call.
// Missing files are ignored.
func (t *Toolchain) Cleanup() {
	t.mu.Lock()
	paths := t.tempped
	t.tempped = nil
	t.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("failed to remove temp file", slog.String("path", p), slog.Any("error", err))
		}
	}
}
