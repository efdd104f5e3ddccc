package media

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/cliparr/internal/models"
)

// ReframeSpec carries everything needed to build a vertical re-framing
// filtergraph for one clip.
type ReframeSpec struct {
	Mode models.Layout

	// Source dimensions from the probe; required for the auto layout.
	SourceWidth  int
	SourceHeight int

	// Face center in source pixels; used by the auto layout. A zero value
	// falls back to the frame center.
	FaceX int
	FaceY int
}

// reframeFilter builds the filtergraph for a layout. The bool reports
// whether the graph must go through -filter_complex (split/overlay graphs)
// rather than a plain -vf chain.
func (t *Toolchain) reframeFilter(spec ReframeSpec) (string, bool, error) {
	w, h := t.canvasW, t.canvasH

	switch spec.Mode {
	case models.LayoutFill:
		return fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
			w, h, w, h), false, nil

	case models.LayoutFit:
		return fmt.Sprintf(
			"[0:v]split=2[bg][fg];"+
				"[bg]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,gblur=sigma=%d[bgblur];"+
				"[fg]scale=%d:%d:force_original_aspect_ratio=decrease[fgfit];"+
				"[bgblur][fgfit]overlay=(W-w)/2:(H-h)/2",
			w, h, w, h, t.fitBlurSigma, w, h), true, nil

	case models.LayoutSquare:
		return fmt.Sprintf(
			"[0:v]split=2[bg][fg];"+
				"[bg]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,gblur=sigma=%d[bgblur];"+
				"[fg]scale=%d:%d:force_original_aspect_ratio=decrease[fgfit];"+
				"[bgblur][fgfit]overlay=(W-w)/2:(H-h)/2-%d",
			w, h, w, h, t.squareBlurSigma, w, t.squareInsetHeight, t.squareRaiseOffset), true, nil

	case models.LayoutAuto:
		graph, err := t.autoCropFilter(spec)
		return graph, false, err

	default:
		return "", false, fmt.Errorf("unknown layout %q", spec.Mode)
	}
}

// autoCropFilter computes a concrete face-centered crop window. The window
// height is sourceHeight/zoom with a 9:16 width, clamped inside the frame,
// then scaled onto the reduced auto canvas.
func (t *Toolchain) autoCropFilter(spec ReframeSpec) (string, error) {
	srcW, srcH := spec.SourceWidth, spec.SourceHeight
	if srcW <= 0 || srcH <= 0 {
		return "", fmt.Errorf("auto layout needs source dimensions, got %dx%d", srcW, srcH)
	}

	cropH := float64(srcH) / t.autoZoom
	cropW := cropH * 9.0 / 16.0
	if cropW > float64(srcW) {
		cropW = float64(srcW)
		cropH = cropW * 16.0 / 9.0
		if cropH > float64(srcH) {
			cropH = float64(srcH)
		}
	}

	fx, fy := float64(spec.FaceX), float64(spec.FaceY)
	if fx <= 0 && fy <= 0 {
		fx = float64(srcW) / 2
		fy = float64(srcH) / 2
	}

	x := clampFloat(fx-cropW/2, 0, float64(srcW)-cropW)
	y := clampFloat(fy-cropH/2, 0, float64(srcH)-cropH)

	// Even pixel geometry keeps yuv420 encoders happy.
	cw, ch := evenInt(cropW), evenInt(cropH)
	return fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d",
		cw, ch, int(x), int(y), t.autoCanvasW, t.autoCanvasH), nil
}

// subtitlesFilter builds a subtitles burn filter with the path escaped for
// the ffmpeg filtergraph parser.
func subtitlesFilter(path string) string {
	return "subtitles=" + escapeFilterPath(path)
}

// escapeFilterPath escapes a filename for use inside a filtergraph option.
// Backslashes, colons, quotes and brackets all terminate or alter filter
// parsing if left raw.
func escapeFilterPath(path string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		`[`, `\[`,
		`]`, `\]`,
		`,`, `\,`,
		`;`, `\;`,
	)
	return r.Replace(path)
}

func clampFloat(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// evenInt floors to the nearest even integer, minimum 2.
func evenInt(v float64) int {
	n := int(v)
	if n%2 != 0 {
		n--
	}
	if n < 2 {
		n = 2
	}
	return n
}
