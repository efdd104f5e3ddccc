package captions

import (
	"math/rand"
	"strings"

	"github.com/jmylchreest/cliparr/internal/models"
)

// Line groups consecutive word tokens that render together as one caption
// line. Word order and timing are preserved from the transcript.
type Line struct {
	Words []models.WordToken
}

// Start returns the start time of the first word, in seconds.
func (l Line) Start() float64 {
	if len(l.Words) == 0 {
		return 0
	}
	return l.Words[0].Start
}

// End returns the end time of the last word, in seconds.
func (l Line) End() float64 {
	if len(l.Words) == 0 {
		return 0
	}
	return l.Words[len(l.Words)-1].End
}

// Text returns the words joined with single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// ChunkFixed packs words into lines of exactly perLine words; the final
// line takes whatever remains.
func ChunkFixed(words []models.WordToken, perLine int) []Line {
	if perLine < 1 {
		perLine = 1
	}
	lines := make([]Line, 0, (len(words)+perLine-1)/perLine)
	for i := 0; i < len(words); i += perLine {
		end := min(i+perLine, len(words))
		lines = append(lines, Line{Words: words[i:end]})
	}
	return lines
}

// ChunkVariable packs words into lines whose sizes are drawn from a
// weighted distribution biased toward two and three word lines, clamped
// into [minWords, maxWords]. Two consecutive single-word lines never
// occur. The caller seeds rng, so identical inputs chunk identically.
func ChunkVariable(words []models.WordToken, minWords, maxWords int, rng *rand.Rand) []Line {
	if minWords < 1 {
		minWords = 1
	}
	if maxWords < minWords {
		maxWords = minWords
	}

	var lines []Line
	prev := 0
	for i := 0; i < len(words); {
		size := drawLineSize(rng)
		if prev == 1 && size == 1 {
			size = 2
		}
		if size < minWords {
			size = minWords
		}
		if size > maxWords {
			size = maxWords
		}
		end := min(i+size, len(words))
		lines = append(lines, Line{Words: words[i:end]})
		i = end
		prev = size
	}
	return lines
}

// drawLineSize samples the line-size distribution: 3 words half the time,
// 2 words 40%, a single word 10%.
func drawLineSize(rng *rand.Rand) int {
	switch r := rng.Float64(); {
	case r < 0.5:
		return 3
	case r < 0.9:
		return 2
	default:
		return 1
	}
}
