// Package thumbs produces preview images for rendered clips: one frame
// grabbed from the middle of the clip, scaled down and written as JPEG
// next to the video file.
package thumbs

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for the grabbed frame.
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Defaults for generated thumbnails.
const (
	// Width in pixels; height follows the source aspect.
	DefaultWidth = 360
	// JPEG quality.
	DefaultQuality = 82
)

// FrameGrabber extracts a single frame from a video to an image file.
// media.Toolchain satisfies this.
type FrameGrabber interface {
	ExtractFrame(ctx context.Context, src string, atSeconds float64, dst string) error
}

// Generator builds clip thumbnails.
type Generator struct {
	grabber FrameGrabber
	width   int
	quality int
	logger  *slog.Logger
}

// Option adjusts a Generator.
type Option func(*Generator)

// WithWidth overrides the thumbnail width.
func WithWidth(w int) Option {
	return func(g *Generator) {
		if w > 0 {
			g.width = w
		}
	}
}

// WithQuality overrides the JPEG quality.
func WithQuality(q int) Option {
	return func(g *Generator) {
		if q > 0 && q <= 100 {
			g.quality = q
		}
	}
}

// New creates a Generator on the given frame grabber.
func New(grabber FrameGrabber, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		grabber: grabber,
		width:   DefaultWidth,
		quality: DefaultQuality,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ForClip writes a thumbnail for the clip video and returns its path. The
// frame is taken from the clip midpoint; clipDuration is the clip length in
// seconds. The thumbnail lands next to the video as {name}_thumb.jpg.
func (g *Generator) ForClip(ctx context.Context, videoPath string, clipDuration float64) (string, error) {
	at := clipDuration / 2
	if at <= 0 {
		at = 0
	}

	framePath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "_frame.png"
	defer os.Remove(framePath)

	if err := g.grabber.ExtractFrame(ctx, videoPath, at, framePath); err != nil {
		return "", fmt.Errorf("grabbing thumbnail frame: %w", err)
	}

	thumbPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "_thumb.jpg"
	if err := g.scaleToFile(framePath, thumbPath); err != nil {
		return "", err
	}

	g.logger.Debug("thumbnail written",
		slog.String("clip", filepath.Base(videoPath)),
		slog.String("thumbnail", filepath.Base(thumbPath)),
	)
	return thumbPath, nil
}

// scaleToFile decodes the frame, scales it to the configured width with
// Catmull-Rom resampling and writes it as JPEG.
func (g *Generator) scaleToFile(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening frame: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}

	scaled := Scale(img, g.width)

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating thumbnail: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, scaled, &jpeg.Options{Quality: g.quality}); err != nil {
		return fmt.Errorf("encoding thumbnail: %w", err)
	}
	return nil
}

// Scale resizes the image to the target width keeping aspect ratio. Images
// already narrower than the target pass through untouched.
func Scale(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= width || bounds.Dx() == 0 {
		return img
	}

	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}
