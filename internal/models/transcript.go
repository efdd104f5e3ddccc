package models

import (
	"sort"
	"strings"
)

// WordToken is one word with its absolute timestamps in source-video seconds.
type WordToken struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"word"`
}

// Duration returns the spoken length of the word in seconds.
func (w WordToken) Duration() float64 {
	return w.End - w.Start
}

// TranscriptSegment is one recognized utterance with word-level timing.
type TranscriptSegment struct {
	Start float64     `json:"start"`
	End   float64     `json:"end"`
	Text  string      `json:"text"`
	Words []WordToken `json:"words,omitempty"`
}

// Duration returns the segment length in seconds.
func (s TranscriptSegment) Duration() float64 {
	return s.End - s.Start
}

// WordCount returns the number of word tokens, falling back to a whitespace
// split of Text when no token timing is available.
func (s TranscriptSegment) WordCount() int {
	if len(s.Words) > 0 {
		return len(s.Words)
	}
	return len(strings.Fields(s.Text))
}

// Transcript is an ordered sequence of segments covering one audio track.
type Transcript struct {
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language,omitempty"`
}

// Duration returns the end time of the last segment, in seconds.
func (t Transcript) Duration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// Words returns all word tokens across segments in timeline order.
func (t Transcript) Words() []WordToken {
	var out []WordToken
	for _, seg := range t.Segments {
		out = append(out, seg.Words...)
	}
	return out
}

// Text returns the joined segment texts.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if s := strings.TrimSpace(seg.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// NormalizeTranscript repairs a recognizer output so that downstream stages
// can rely on its ordering invariants: segments sorted by start, every
// segment strictly positive in length, word times clamped into their
// segment, word text joined to rebuild segment text when tokens exist.
// Empty segments are dropped.
func NormalizeTranscript(segments []TranscriptSegment) []TranscriptSegment {
	out := make([]TranscriptSegment, 0, len(segments))
	for _, seg := range segments {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.End <= seg.Start {
			continue
		}
		if seg.Text == "" && len(seg.Words) == 0 {
			continue
		}
		words := make([]WordToken, 0, len(seg.Words))
		for _, w := range seg.Words {
			w.Text = strings.TrimSpace(w.Text)
			if w.Text == "" {
				continue
			}
			if w.Start < seg.Start {
				w.Start = seg.Start
			}
			if w.End > seg.End {
				w.End = seg.End
			}
			if w.End <= w.Start {
				continue
			}
			words = append(words, w)
		}
		seg.Words = words
		if len(words) > 0 {
			texts := make([]string, len(words))
			for i, w := range words {
				texts[i] = w.Text
			}
			seg.Text = strings.Join(texts, " ")
		}
		if seg.Text == "" {
			continue
		}
		out = append(out, seg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// ShiftWords returns a copy of words with all times offset by delta seconds.
// Times are clamped at zero so a shift to clip-local time never produces
// negative stamps.
func ShiftWords(words []WordToken, delta float64) []WordToken {
	out := make([]WordToken, len(words))
	for i, w := range words {
		w.Start += delta
		w.End += delta
		if w.Start < 0 {
			w.Start = 0
		}
		if w.End < 0 {
			w.End = 0
		}
		out[i] = w
	}
	return out
}
