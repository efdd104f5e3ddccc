// Package vision locates faces for auto re-framing and classifies short
// audio windows into speaker labels. Both operations degrade instead of
// failing: with no detector configured, no faces found, or unreadable audio,
// callers get the frame center or the left-speaker label and the pipeline
// keeps rendering.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/media"
	"github.com/jmylchreest/cliparr/internal/observability"
)

// Speaker labels produced by the two-voice heuristic.
const (
	SpeakerLeft  = "left"
	SpeakerRight = "right"
)

// Frame dimensions assumed when a video cannot be probed at all.
const (
	fallbackFrameWidth  = 1920
	fallbackFrameHeight = 1080
)

// detectTimeout bounds a single detector invocation so one stuck frame
// cannot stall the whole sample pass.
const detectTimeout = 15 * time.Second

// Detection is one face reported by the external detector command, in pixel
// coordinates of the analyzed frame.
type Detection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"w"`
	Height     float64 `json:"h"`
	Confidence float64 `json:"confidence"`
}

// Center returns the midpoint of the bounding box.
func (d Detection) Center() (float64, float64) {
	return d.X + d.Width/2, d.Y + d.Height/2
}

// Prominence weighs box area by detection confidence, so a large certain
// face outranks many small uncertain ones.
func (d Detection) Prominence() float64 {
	return d.Width * d.Height * d.Confidence
}

// Adapter implements the face and speaker operations over the media
// toolchain and an external detector command.
type Adapter struct {
	cfg    config.VisionConfig
	tools  *media.Toolchain
	logger *slog.Logger
}

// NewAdapter builds the adapter. The detector command is optional; without
// it FaceCenter always answers with the frame center.
func NewAdapter(cfg config.VisionConfig, tools *media.Toolchain, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:    cfg,
		tools:  tools,
		logger: observability.WithComponent(logger, "vision"),
	}
}

// FaceCenter samples frames across the video, runs the detector on each,
// and returns the averaged center of the prominent faces in the preferred
// horizontal half. Any failure along the way falls back to the frame
// center; the method never errors.
func (a *Adapter) FaceCenter(ctx context.Context, videoPath string, preferLeft bool) (int, int) {
	if d := time.Duration(a.cfg.SampleTimeout); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	width, height := a.frameSize(ctx, videoPath)
	centerX, centerY := width/2, height/2

	if a.cfg.DetectorCommand == "" {
		a.logger.Debug("no face detector configured, using frame center",
			slog.String("video", videoPath))
		return centerX, centerY
	}

	dir, err := os.MkdirTemp("", "cliparr-faces-")
	if err != nil {
		a.logger.Warn("creating frame sample dir failed", slog.Any("error", err))
		return centerX, centerY
	}
	defer os.RemoveAll(dir)

	frames, err := a.tools.SampleFrames(ctx, videoPath, dir, a.cfg.FrameStride, a.cfg.MaxFrames)
	if err != nil {
		a.logger.Warn("frame sampling failed, using frame center",
			slog.String("video", videoPath),
			slog.Any("error", err))
		return centerX, centerY
	}

	var faces []Detection
	for _, frame := range frames {
		detections, err := a.detect(ctx, frame)
		if err != nil {
			a.logger.Debug("face detector failed on frame",
				slog.String("frame", frame),
				slog.Any("error", err))
			continue
		}
		faces = append(faces, detections...)
	}

	if len(faces) == 0 {
		a.logger.Info("no faces detected, using frame center",
			slog.String("video", videoPath),
			slog.Int("frames", len(frames)))
		return centerX, centerY
	}

	x, y := pickFaceCenter(faces, float64(width), preferLeft)
	a.logger.Info("face center selected",
		slog.String("video", videoPath),
		slog.Int("detections", len(faces)),
		slog.Bool("prefer_left", preferLeft),
		slog.Int("x", x),
		slog.Int("y", y))
	return x, y
}

// pickFaceCenter partitions detections by the frame midline, keeps the
// preferred half (or everything when that half is empty), and averages the
// centers of faces whose prominence is at least half the best.
func pickFaceCenter(faces []Detection, frameWidth float64, preferLeft bool) (int, int) {
	half := frameWidth / 2
	pool := make([]Detection, 0, len(faces))
	for _, f := range faces {
		cx, _ := f.Center()
		if (preferLeft && cx < half) || (!preferLeft && cx >= half) {
			pool = append(pool, f)
		}
	}
	if len(pool) == 0 {
		pool = faces
	}

	var best float64
	for _, f := range pool {
		if p := f.Prominence(); p > best {
			best = p
		}
	}

	var sumX, sumY float64
	n := 0
	for _, f := range pool {
		if f.Prominence() >= best*0.5 {
			cx, cy := f.Center()
			sumX += cx
			sumY += cy
			n++
		}
	}
	if n == 0 {
		return int(math.Round(half)), 0
	}
	return int(math.Round(sumX / float64(n))), int(math.Round(sumY / float64(n)))
}

// detect runs the configured detector command against one frame image and
// parses its stdout as a JSON detection array.
func (a *Adapter) detect(ctx context.Context, imagePath string) ([]Detection, error) {
	argv := strings.Fields(a.cfg.DetectorCommand)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty detector command")
	}
	argv = append(argv, imagePath)

	runCtx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, argv[0], argv[1:]...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("detector: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("detector: %w", err)
	}

	var detections []Detection
	if err := json.Unmarshal(out, &detections); err != nil {
		return nil, fmt.Errorf("parsing detector output: %w", err)
	}
	return detections, nil
}

// frameSize probes the video's dimensions, assuming a landscape source when
// the probe fails.
func (a *Adapter) frameSize(ctx context.Context, videoPath string) (int, int) {
	result, err := a.tools.Probe(ctx, videoPath)
	if err == nil {
		if vs := result.VideoStream(); vs != nil && vs.Width > 0 && vs.Height > 0 {
			return vs.Width, vs.Height
		}
	}
	a.logger.Debug("probe for frame size failed, assuming landscape",
		slog.String("video", videoPath),
		slog.Any("error", err))
	return fallbackFrameWidth, fallbackFrameHeight
}
