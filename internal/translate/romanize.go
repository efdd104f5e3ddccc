package translate

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jmylchreest/cliparr/internal/models"
)

// Devanagari combining marks that modify the preceding consonant.
const (
	nukta  = '\u093C'
	virama = '\u094D'
)

// devanagariConsonants maps consonant letters to their IAST value without the
// inherent vowel. The engine appends the vowel itself.
var devanagariConsonants = map[rune]string{
	'क': "k", 'ख': "kh", 'ग': "g", 'घ': "gh", 'ङ': "ṅ",
	'च': "c", 'छ': "ch", 'ज': "j", 'झ': "jh", 'ञ': "ñ",
	'ट': "ṭ", 'ठ': "ṭh", 'ड': "ḍ", 'ढ': "ḍh", 'ण': "ṇ",
	'त': "t", 'थ': "th", 'द': "d", 'ध': "dh", 'न': "n",
	'प': "p", 'फ': "ph", 'ब': "b", 'भ': "bh", 'म': "m",
	'य': "y", 'र': "r", 'ल': "l", 'व': "v",
	'श': "ś", 'ष': "ṣ", 'स': "s", 'ह': "h",
	'ळ': "ḷ", 'ऩ': "n", 'ऱ': "r", 'ऴ': "l",
	// Precomposed nukta letters (qa kha ga za rra rha fa yya) for
	// Perso-Arabic loan sounds. Escapes because editors tend to
	// re-save these codepoints in decomposed form.
	'\u0958': "q", '\u0959': "kh", '\u095A': "g", '\u095B': "z",
	'\u095C': "r", '\u095D': "rh", '\u095E': "f", '\u095F': "y",
}

// nuktaForms maps a base consonant to its value when a combining nukta
// follows, for text that is not precomposed.
var nuktaForms = map[rune]string{
	'क': "q", 'ख': "kh", 'ग': "g", 'ज': "z",
	'ड': "r", 'ढ': "rh", 'फ': "f", 'य': "y",
}

// devanagariVowels are the independent (word-initial) vowel letters.
var devanagariVowels = map[rune]string{
	'ऄ': "a", 'अ': "a", 'आ': "ā", 'इ': "i", 'ई': "ī",
	'उ': "u", 'ऊ': "ū", 'ऋ': "ṛ", 'ऌ': "ḷ",
	'ऍ': "e", 'ऎ': "e", 'ए': "e", 'ऐ': "ai",
	'ऑ': "o", 'ऒ': "o", 'ओ': "o", 'औ': "au",
	'ॠ': "ṝ", 'ॡ': "ḹ",
}

// devanagariMatras are the dependent vowel signs that replace a consonant's
// inherent vowel.
var devanagariMatras = map[rune]string{
	'ा': "ā", 'ि': "i", 'ी': "ī", 'ु': "u", 'ू': "ū",
	'ृ': "ṛ", 'ॄ': "ṝ", 'ॅ': "e", 'ॆ': "e", 'े': "e",
	'ै': "ai", 'ॉ': "o", 'ॊ': "o", 'ो': "o", 'ौ': "au",
	'ॢ': "ḷ", 'ॣ': "ḹ",
}

// devanagariSigns cover nasalization, punctuation, and digits.
var devanagariSigns = map[rune]string{
	'ँ': "ṃ", 'ं': "ṃ", 'ः': "ḥ", 'ऽ': "'", 'ॐ': "om",
	'।': ".", '॥': ".", '॰': ".", 'ॱ': "",
	'०': "0", '१': "1", '२': "2", '३': "3", '४': "4",
	'५': "5", '६': "6", '७': "7", '८': "8", '९': "9",
}

// iastASCII folds the IAST diacritics whose plain-letter reading differs from
// a bare mark strip: the vocalic r reads "ri", retroflexes and sibilants
// collapse to their dental neighbours, nasals to n.
var iastASCII = strings.NewReplacer(
	"ṃ", "n", "ṇ", "n", "ṭ", "t", "ḍ", "d",
	"ṝ", "ri", "ṛ", "ri", "ḥ", "h",
	"ś", "s", "ṣ", "s", "ñ", "n",
)

// RomanizeSegments transliterates Devanagari segment and word text to Roman
// script. Timing is untouched, so karaoke-level sync survives romanization
// exactly. English tokens pass through unchanged.
func RomanizeSegments(segments []models.TranscriptSegment) []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, len(segments))
	for i, seg := range segments {
		seg.Text = RomanizeText(seg.Text)
		if len(seg.Words) > 0 {
			words := make([]models.WordToken, len(seg.Words))
			for j, w := range seg.Words {
				w.Text = RomanizeWord(w.Text)
				words[j] = w
			}
			seg.Words = words
		}
		out[i] = seg
	}
	return out
}

// RomanizeText transliterates mixed Devanagari and Latin text, preserving
// Latin tokens, whitespace, and punctuation. Sentence-initial letters are
// capitalized since the romanized output is all lowercase.
func RomanizeText(text string) string {
	if !containsDevanagari(text) {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(text))
	rs := []rune(text)
	for i := 0; i < len(rs); {
		switch r := rs[i]; {
		case unicode.IsSpace(r):
			j := i
			for j < len(rs) && unicode.IsSpace(rs[j]) {
				j++
			}
			sb.WriteString(string(rs[i:j]))
			i = j
		case isWordRune(r):
			j := i
			for j < len(rs) && isWordRune(rs[j]) {
				j++
			}
			sb.WriteString(RomanizeWord(string(rs[i:j])))
			i = j
		default:
			sb.WriteString(RomanizeWord(string(r)))
			i++
		}
	}
	return capitalizeSentences(sb.String())
}

// RomanizeWord transliterates a single token. Tokens without Devanagari come
// back unchanged.
func RomanizeWord(word string) string {
	if !containsDevanagari(word) {
		return word
	}
	return foldIAST(devanagariToIAST(word))
}

// devanagariToIAST walks a token rune by rune. Consonants carry an inherent
// "a" that a following vowel sign or virama replaces; the pending flag tracks
// whether the last consonant is still owed its vowel. A word-final inherent
// vowel is dropped when the word already has one, matching how Hindi is
// actually spoken and romanized (raam, not raama).
func devanagariToIAST(word string) string {
	rs := []rune(word)
	var sb strings.Builder
	pending := false
	flush := func() {
		if pending {
			sb.WriteString("a")
			pending = false
		}
	}
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if r == virama {
			pending = false
			continue
		}
		if r == nukta {
			continue
		}
		if c, ok := devanagariConsonants[r]; ok {
			flush()
			if i+1 < len(rs) && rs[i+1] == nukta {
				i++
				if alt, ok := nuktaForms[r]; ok {
					c = alt
				}
			}
			sb.WriteString(c)
			pending = true
			continue
		}
		if m, ok := devanagariMatras[r]; ok {
			sb.WriteString(m)
			pending = false
			continue
		}
		if v, ok := devanagariVowels[r]; ok {
			flush()
			sb.WriteString(v)
			continue
		}
		if s, ok := devanagariSigns[r]; ok {
			flush()
			sb.WriteString(s)
			continue
		}
		flush()
		sb.WriteRune(r)
	}
	if pending {
		if strings.ContainsAny(sb.String(), "aeiouāīūṛṝ") {
			return sb.String()
		}
		sb.WriteString("a")
	}
	return sb.String()
}

// foldIAST turns IAST into plain lowercase ASCII: the digraph replacements
// first, then a decompose-and-strip of the remaining combining marks.
func foldIAST(s string) string {
	s = iastASCII.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.ToLower(s)
}

func containsDevanagari(s string) bool {
	for _, r := range s {
		if r >= 0x0900 && r <= 0x097F {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// capitalizeSentences uppercases the first letter of the text and of every
// sentence after terminal punctuation. Nothing is lowercased, so Latin
// passthrough tokens keep their case.
func capitalizeSentences(s string) string {
	rs := []rune(s)
	upper := true
	for i, r := range rs {
		if upper && unicode.IsLetter(r) {
			rs[i] = unicode.ToUpper(r)
			upper = false
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			upper = true
		}
	}
	return string(rs)
}
