package selector

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cliparr/internal/hook"
	"github.com/jmylchreest/cliparr/internal/models"
)

func newTestSelector() *Selector {
	return New(hook.NewScorer(nil), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// evenTranscript builds n segments of secLen seconds each, every one ending
// on a sentence boundary.
func evenTranscript(n int, secLen float64) []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, n)
	for i := range out {
		start := float64(i) * secLen
		out[i] = models.TranscriptSegment{
			Start: start,
			End:   start + secLen,
			Text:  "something happens here.",
		}
	}
	return out
}

func TestSelector_Segment_WindowsWithinBounds(t *testing.T) {
	s := newTestSelector()
	p := Params{MinLength: 20, MaxLength: 40, TargetLength: 30}

	candidates := s.Segment(evenTranscript(8, 5), p)
	require.Len(t, candidates, 2)

	for _, c := range candidates {
		assert.GreaterOrEqual(t, c.Duration(), p.MinLength)
		assert.LessOrEqual(t, c.Duration(), p.MaxLength)

		// Window text is the in-order concatenation of its segment texts.
		var texts []string
		for _, seg := range c.Segments {
			texts = append(texts, strings.TrimSpace(seg.Text))
		}
		assert.Equal(t, strings.Join(texts, " "), c.Text)
	}

	// The first window lands exactly on the target and the scan overlaps.
	assert.InDelta(t, 0, candidates[0].Start, 1e-9)
	assert.InDelta(t, 30, candidates[0].End, 1e-9)
	assert.InDelta(t, 15, candidates[1].Start, 1e-9)
	assert.Less(t, candidates[1].Start, candidates[0].End, "consecutive windows overlap")
}

func TestSelector_Segment_NoBoundaryNoCandidate(t *testing.T) {
	s := newTestSelector()
	p := Params{MinLength: 5, MaxLength: 30, TargetLength: 15}

	// Short clauses with no terminal punctuation never close a sentence.
	segments := []models.TranscriptSegment{
		{Start: 0, End: 6, Text: "and then we"},
		{Start: 6, End: 12, Text: "kept on going"},
		{Start: 12, End: 18, Text: "without a pause"},
	}
	assert.Empty(t, s.Segment(segments, p))
}

func TestSelector_Segment_LongClauseCountsAsBoundary(t *testing.T) {
	s := newTestSelector()
	p := Params{MinLength: 5, MaxLength: 30, TargetLength: 10}

	segments := []models.TranscriptSegment{
		{Start: 0, End: 10, Text: "this run on clause has considerably more than ten words in it somehow"},
	}
	candidates := s.Segment(segments, p)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 10, candidates[0].Duration(), 1e-9)
}

func TestSelector_Segment_DandaBoundary(t *testing.T) {
	s := newTestSelector()
	p := Params{MinLength: 5, MaxLength: 30, TargetLength: 10}

	segments := []models.TranscriptSegment{
		{Start: 0, End: 8, Text: "यह एक हिंदी वाक्य है।"},
	}
	require.Len(t, s.Segment(segments, p), 1)
}

func TestSelector_Segment_EmptyTranscript(t *testing.T) {
	s := newTestSelector()
	assert.Empty(t, s.Segment(nil, Params{MinLength: 20, MaxLength: 40, TargetLength: 30}))
}

func TestSelector_Rank_OrdersByScore(t *testing.T) {
	s := newTestSelector()
	p := Params{MinLength: 20, MaxLength: 40, TargetLength: 60}

	candidates := []models.CandidateWindow{
		{Start: 0, End: 25, Text: "a calm description of scenery"},
		{Start: 30, End: 55, Text: "the secret biggest mistake everyone makes"},
		{Start: 60, End: 85, Text: "why does nobody mention this"},
	}

	ranked := s.Rank(context.Background(), candidates, p)
	require.Len(t, ranked, 3)

	assert.InDelta(t, 30, ranked[0].Start, 1e-9, "keyword-heavy window first")
	assert.InDelta(t, 60, ranked[1].Start, 1e-9, "question hook second")
	assert.InDelta(t, 0, ranked[2].Start, 1e-9)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score.Total, ranked[i].Score.Total)
	}
}

func TestSelector_Rank_TiesBreakByStart(t *testing.T) {
	s := newTestSelector()
	p := Params{TargetLength: 60}

	candidates := []models.CandidateWindow{
		{Start: 40, End: 65, Text: "nothing notable"},
		{Start: 10, End: 35, Text: "equally unnotable"},
	}

	ranked := s.Rank(context.Background(), candidates, p)
	assert.InDelta(t, 10, ranked[0].Start, 1e-9)
	assert.InDelta(t, 40, ranked[1].Start, 1e-9)
}

func TestAutoCeiling(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		avgLen   float64
		want     int
	}{
		{"very long video", 25 * 60, 60, 10},
		{"long video", 12 * 60, 60, 8},
		{"medium video", 7 * 60, 60, 5},
		{"short video", 3 * 60, 60, 3},
		{"very short video", 90, 30, 2},
		{"feasibility caps the table", 90, 60, 1},
		{"degenerate video", 20, 60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoCeiling(tt.duration, tt.avgLen))
		})
	}
}

func TestSelector_SelectTop_MinimumWins(t *testing.T) {
	s := newTestSelector()
	ctx := context.Background()
	p := Params{MinLength: 20, MaxLength: 40, TargetLength: 30}

	// 120 s transcript yielding two candidates: both come back.
	segments := evenTranscript(8, 5)
	ranked := s.Rank(ctx, s.Segment(segments, p), p)
	final := s.SelectTop(ranked, 10, 120, p)
	assert.Len(t, final, 2)

	// A 90 s video with wide default bounds feasibly fits one clip even
	// when the caller asks for five.
	wide := Params{MinLength: 30, MaxLength: 90, TargetLength: 60}
	segments = evenTranscript(6, 15)
	ranked = s.Rank(ctx, s.Segment(segments, wide), wide)
	final = s.SelectTop(ranked, 5, 90, wide)
	assert.LessOrEqual(t, len(final), 2)
	assert.Len(t, final, 1)
}

func TestSelector_SelectTop_NeverFiltersByScore(t *testing.T) {
	s := newTestSelector()

	// Zero-scoring candidates still come back in ranked order.
	ranked := []models.CandidateWindow{
		{Start: 0, End: 30, Text: "plain"},
		{Start: 30, End: 60, Text: "also plain"},
	}
	final := s.SelectTop(ranked, 5, 600, Params{MinLength: 30, MaxLength: 90, TargetLength: 60})
	assert.Len(t, final, 2)
}

func TestIsSentenceBoundary(t *testing.T) {
	assert.True(t, isSentenceBoundary("done."))
	assert.True(t, isSentenceBoundary("done!"))
	assert.True(t, isSentenceBoundary("done?"))
	assert.True(t, isSentenceBoundary("समाप्त।"))
	assert.True(t, isSentenceBoundary("trailing space. "))
	assert.False(t, isSentenceBoundary("not finished"))
	assert.False(t, isSentenceBoundary(""))
	assert.True(t, isSentenceBoundary("one two three four five six seven eight nine ten eleven"))
}
