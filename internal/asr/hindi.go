package asr

import (
	"strings"

	"github.com/jmylchreest/cliparr/internal/models"
)

// DevanagariPrompt steers whisper-family models toward Devanagari output for
// Hindi audio, which otherwise drifts into Urdu or romanized script.
const DevanagariPrompt = "यह एक हिंदी वीडियो है। कृपया देवनागरी लिपि में लिखें।"

// CleanHindi strips foreign-script hallucinations from a Hindi transcript:
// Arabic, Hangul, CJK, and Latin letters are removed, Devanagari plus common
// punctuation and digits survive. Word tokens that lose all their text are
// dropped; surviving tokens keep their original timing. A segment whose text
// cleans to nothing keeps its original text so timing coverage is preserved.
func CleanHindi(segments []models.TranscriptSegment) []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, 0, len(segments))
	for _, seg := range segments {
		cleaned := cleanHindiText(seg.Text)
		if cleaned != "" {
			seg.Text = cleaned
		}

		words := make([]models.WordToken, 0, len(seg.Words))
		for _, w := range seg.Words {
			text := strings.TrimSpace(cleanHindiText(w.Text))
			if text == "" {
				continue
			}
			w.Text = text
			words = append(words, w)
		}
		seg.Words = words
		out = append(out, seg)
	}
	return out
}

func cleanHindiText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowedHindiRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// allowedHindiRune reports whether a rune may appear in cleaned Hindi text.
func allowedHindiRune(r rune) bool {
	switch {
	case r >= 0x0600 && r <= 0x06FF: // Arabic / Urdu
		return false
	case r >= 0xAC00 && r <= 0xD7AF: // Hangul syllables
		return false
	case r >= 0x1100 && r <= 0x11FF: // Hangul jamo
		return false
	case r >= 0x4E00 && r <= 0x9FFF: // CJK ideographs
		return false
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z': // Latin hallucinations
		return false
	case r >= 0x0900 && r <= 0x097F: // Devanagari
		return true
	case r >= '0' && r <= '9':
		return true
	}
	switch r {
	case ' ', '.', ',', '!', '?', '।', '॥':
		return true
	}
	return false
}
