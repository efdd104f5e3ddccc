package vision

import (
	"context"
	"log/slog"
	"math"
)

// centroidSplitHz divides the two voices: deeper voices concentrate energy
// below it and map to the left speaker.
const centroidSplitHz = 1500.0

// silenceFloor is the RMS level below which a window counts as silent.
const silenceFloor = 1e-4

// Sliding-window geometry for SpeakerMap.
const (
	speakerWindowLen = 2.0
	speakerHop       = 1.0
	speakerMinWindow = 0.5
)

// VoiceWindow classifies the [start, end) window of a WAV file into a
// speaker label using the spectral centroid: below the split frequency is
// "left", above is "right". Unreadable, empty, or silent audio maps to
// "left" so callers always get a usable label.
func (a *Adapter) VoiceWindow(ctx context.Context, audioPath string, start, end float64) string {
	if ctx.Err() != nil {
		return SpeakerLeft
	}

	samples, rate, err := readWAVWindow(audioPath, start, end)
	if err != nil {
		a.logger.Warn("voice window analysis failed",
			slog.String("audio", audioPath),
			slog.Float64("start", start),
			slog.Float64("end", end),
			slog.Any("error", err))
		return SpeakerLeft
	}
	if len(samples) == 0 {
		return SpeakerLeft
	}

	f := AnalyzeWindow(samples, rate)
	if f.Energy < silenceFloor {
		return SpeakerLeft
	}

	label := SpeakerLeft
	if f.Centroid >= centroidSplitHz {
		label = SpeakerRight
	}
	a.logger.Debug("voice window classified",
		slog.Float64("start", start),
		slog.Float64("end", end),
		slog.Float64("centroid", f.Centroid),
		slog.Float64("energy", f.Energy),
		slog.Float64("zcr", f.ZeroCrossRate),
		slog.String("speaker", label))
	return label
}

// speakerWindow is one classified slice of the timeline.
type speakerWindow struct {
	start, end float64
	label      string
}

func (w speakerWindow) center() float64 { return (w.start + w.end) / 2 }

// SpeakerTimeline maps clip times to speaker labels. Its At method
// satisfies the caption compiler's speaker lookup directly.
type SpeakerTimeline struct {
	windows []speakerWindow
}

// SpeakerMap classifies sliding windows across [start, end) of the audio
// track and returns the resulting timeline. Windows are two seconds wide at
// a one second hop; a trailing remainder shorter than half a second is
// dropped, matching the resolution the caption recipes need.
func (a *Adapter) SpeakerMap(ctx context.Context, audioPath string, start, end float64) *SpeakerTimeline {
	var windows []speakerWindow
	for t := start; t < end; t += speakerHop {
		wEnd := math.Min(t+speakerWindowLen, end)
		if wEnd-t < speakerMinWindow {
			break
		}
		windows = append(windows, speakerWindow{
			start: t,
			end:   wEnd,
			label: a.VoiceWindow(ctx, audioPath, t, wEnd),
		})
	}
	a.logger.Debug("speaker map built",
		slog.String("audio", audioPath),
		slog.Int("windows", len(windows)))
	return &SpeakerTimeline{windows: windows}
}

// At returns the label of the window whose center lies closest to t, or
// "left" for an empty timeline.
func (tl *SpeakerTimeline) At(t float64) string {
	if tl == nil || len(tl.windows) == 0 {
		return SpeakerLeft
	}
	best := tl.windows[0].label
	bestDist := math.Abs(t - tl.windows[0].center())
	for _, w := range tl.windows[1:] {
		if d := math.Abs(t - w.center()); d < bestDist {
			bestDist = d
			best = w.label
		}
	}
	return best
}

// Windows returns the number of classified windows.
func (tl *SpeakerTimeline) Windows() int {
	if tl == nil {
		return 0
	}
	return len(tl.windows)
}
