// Package selector turns a word-timed transcript into a ranked list of
// candidate clip windows. Windows grow greedily along sentence boundaries,
// get scored for engagement, and are capped by a duration-driven ceiling so
// short videos never yield an implausible number of clips.
package selector

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmylchreest/cliparr/internal/hook"
	"github.com/jmylchreest/cliparr/internal/models"
)

// Params bounds the windows the selector may produce.
type Params struct {
	MinLength    float64
	MaxLength    float64
	TargetLength float64
}

// ParamsFromRequest derives selection bounds from a job request. The request
// must already have its defaults applied.
func ParamsFromRequest(req *models.JobRequest) Params {
	return Params{
		MinLength:    req.MinClipLength,
		MaxLength:    req.MaxClipLength,
		TargetLength: req.TargetClipLength,
	}
}

// avgLength is the assumed clip length when computing how many clips a video
// can physically yield.
func (p Params) avgLength() float64 {
	return (p.MinLength + p.MaxLength) / 2
}

// Selector builds and ranks candidate windows.
type Selector struct {
	scorer *hook.Scorer
	logger *slog.Logger
}

// New builds a Selector. The scorer must not be nil.
func New(scorer *hook.Scorer, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{scorer: scorer, logger: logger}
}

// Segment walks the transcript in time order and greedily accumulates
// segments into windows. A window is recorded once it spans at least
// MinLength and its trailing segment ends on a sentence boundary; among
// boundary positions the one closest to TargetLength wins. The scan cursor
// then advances by half the accepted window, giving consecutive candidates
// roughly 50% overlap for coverage.
func (s *Selector) Segment(segments []models.TranscriptSegment, p Params) []models.CandidateWindow {
	if len(segments) == 0 {
		return nil
	}

	ordered := make([]models.TranscriptSegment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var candidates []models.CandidateWindow
	i := 0
	for i < len(ordered) {
		clipStart := ordered[i].Start

		var best *models.CandidateWindow
		bestSpan := 0
		var window []models.TranscriptSegment
		var texts []string

		for j := i; j < len(ordered); j++ {
			seg := ordered[j]
			duration := seg.End - clipStart
			if duration > p.MaxLength {
				break
			}
			window = append(window, seg)
			texts = append(texts, strings.TrimSpace(seg.Text))

			if duration >= p.MinLength && isSentenceBoundary(seg.Text) {
				if best == nil || closerToTarget(duration, best.Duration(), p.TargetLength) {
					claimed := make([]models.TranscriptSegment, len(window))
					copy(claimed, window)
					best = &models.CandidateWindow{
						Start:    clipStart,
						End:      seg.End,
						Text:     strings.Join(texts, " "),
						Segments: claimed,
					}
					bestSpan = len(window)
				}
				if duration >= p.TargetLength {
					break
				}
			}
		}

		if best != nil {
			candidates = append(candidates, *best)
			i += max(1, bestSpan/2)
		} else {
			i++
		}
	}
	return candidates
}

// Rank scores every candidate and orders them best-first. Ties resolve to
// the earlier window so ordering stays deterministic.
func (s *Selector) Rank(ctx context.Context, candidates []models.CandidateWindow, p Params) []models.CandidateWindow {
	ranked := make([]models.CandidateWindow, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		ranked[i].Score = s.scorer.Score(ctx, ranked[i].Text, ranked[i].Duration(), p.TargetLength)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score.Total != ranked[j].Score.Total {
			return ranked[i].Score.Total > ranked[j].Score.Total
		}
		return ranked[i].Start < ranked[j].Start
	})
	return ranked
}

// SelectTop caps the ranked list: the caller's requested maximum, the
// duration-based automatic ceiling, and the physically feasible count all
// apply, and whichever is smallest wins. The list is never filtered by
// score; a weak video still returns its best windows.
func (s *Selector) SelectTop(ranked []models.CandidateWindow, requestedMax int, videoDuration float64, p Params) []models.CandidateWindow {
	ceiling := AutoCeiling(videoDuration, p.avgLength())
	n := min(requestedMax, ceiling, len(ranked))
	if n < 0 {
		n = 0
	}

	s.logger.Info("clip selection",
		slog.Float64("video_duration", videoDuration),
		slog.Int("candidates", len(ranked)),
		slog.Int("requested_max", requestedMax),
		slog.Int("auto_ceiling", ceiling),
		slog.Int("selected", n),
	)
	return ranked[:n]
}

// AutoCeiling computes the automatic clip-count cap for a video: a table
// keyed on duration, additionally bounded by how many clips of the average
// length physically fit.
func AutoCeiling(videoDuration, avgClipLength float64) int {
	feasible := 0
	if avgClipLength > 0 {
		feasible = int(videoDuration / avgClipLength)
	}

	minutes := videoDuration / 60
	var table int
	switch {
	case minutes >= 20:
		table = 10
	case minutes >= 10:
		table = 8
	case minutes >= 5:
		table = 5
	case minutes >= 2:
		table = 3
	default:
		table = 2
	}
	return min(table, feasible)
}

// isSentenceBoundary reports whether a segment text closes a sentence:
// terminal punctuation (including danda for Devanagari) or a long clause of
// more than ten words.
func isSentenceBoundary(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, suffix := range []string{".", "!", "?", "।", "॥", "…"} {
		if strings.HasSuffix(text, suffix) {
			return true
		}
	}
	return len(strings.Fields(text)) > 10
}

// closerToTarget reports whether duration a beats duration b as an
// approximation of target.
func closerToTarget(a, b, target float64) bool {
	da, db := a-target, b-target
	if da < 0 {
		da = -da
	}
	if db < 0 {
		db = -db
	}
	return da < db
}
