package captions

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/jmylchreest/cliparr/internal/models"
)

// Default palettes for hue-cycling recipes, ASS BGR order.
var (
	explodePalette = []string{"&H00FFFF00&", "&H00FF00FF&", "&H0000FFFF&"}
	impactPalette  = []string{"&H0000FF00&", "&H0000FFFF&", "&H00FFD700&"}
	rainbowPalette = []string{"&H000000FF&", "&H0000FFFF&", "&H0000FF00&", "&H00FF00FF&", "&H00FFFF00&", "&H00FF0080&"}
	speakerPalette = []string{"&H0000FF00&", "&H000000FF&", "&H00FFFFFF&", "&H0000FFFF&"}
)

const (
	// typedColor dims already-typed words in the typewriter recipe.
	typedColor = "&H00CCCCCC&"
	// glitchOffset is the horizontal RGB split distance in pixels.
	glitchOffset = 5
	// speakerGapClose absorbs inter-line silences shorter than this many
	// seconds so speaker blocks do not flicker between lines.
	speakerGapClose = 0.3
)

// builder carries the state shared by all recipes during one compile.
type builder struct {
	tmpl      models.StyleTemplate
	style     string
	rng       *rand.Rand
	anchors   []models.Anchor
	speakerAt SpeakerAt
	script    *Script
}

func (b *builder) chunk(words []models.WordToken) []Line {
	if b.tmpl.VariableChunks {
		minW, maxW := b.tmpl.ChunkBounds()
		return ChunkVariable(words, minW, maxW, b.rng)
	}
	return ChunkFixed(words, b.tmpl.WordsPerLine)
}

func (b *builder) anchorFor(i int) models.Anchor {
	return b.anchors[i%len(b.anchors)]
}

func (b *builder) posTag(a models.Anchor) string {
	return fmt.Sprintf(`{\an5\pos(%d,%d)}`, a.X, a.Y)
}

func (b *builder) displayWord(w models.WordToken) string {
	t := strings.TrimSpace(w.Text)
	if b.tmpl.AllCaps {
		t = strings.ToUpper(t)
	}
	return t
}

func (b *builder) lineText(line Line) string {
	parts := make([]string, 0, len(line.Words))
	for _, w := range line.Words {
		if t := b.displayWord(w); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// accented reports whether the word, stripped of punctuation, matches an
// entry of the template accent list.
func (b *builder) accented(list []string, word string) bool {
	if len(list) == 0 {
		return false
	}
	trimmed := strings.Trim(word, " .,!?\"'")
	for _, kw := range list {
		if strings.EqualFold(kw, trimmed) {
			return true
		}
	}
	return false
}

func (b *builder) highlightColor() string {
	return OverrideColor(colorOr(b.tmpl.HighlightColor, "&H0000FF00"))
}

func (b *builder) primaryColor() string {
	return OverrideColor(colorOr(b.tmpl.PrimaryColor, "&H00FFFFFF"))
}

func (b *builder) palette(fallback []string) []string {
	if len(b.tmpl.Palette) > 0 {
		return b.tmpl.Palette
	}
	return fallback
}

// wordMS returns the word duration in whole milliseconds, never below
// floor so very short words still get a visible animation window.
func wordMS(w models.WordToken, floor int) int {
	ms := int(math.Round(w.Duration() * 1000))
	if ms < floor {
		return floor
	}
	return ms
}

// revealEnd returns the display end for per-word reveal recipes: just
// before the next word appears, or padded half a second past the final
// word of the script.
func revealEnd(lines []Line, li, wi int) float64 {
	w := lines[li].Words[wi]
	if wi+1 < len(lines[li].Words) {
		if next := lines[li].Words[wi+1].Start - 0.01; next > w.Start {
			return next
		}
		return w.End
	}
	if li+1 < len(lines) {
		if next := lines[li+1].Start() - 0.01; next > w.Start {
			return next
		}
		return w.End
	}
	return w.End + 0.5
}

// progressive renders each line once and fills words with karaoke timing
// proportional to their spoken duration. Accented keywords get a scale
// bump layered on the fill.
func (b *builder) progressive(lines []Line) {
	for li, line := range lines {
		var text strings.Builder
		text.WriteString(b.posTag(b.anchorFor(li)))
		last := line.Start()
		for _, w := range line.Words {
			delayCS := int(math.Round((w.Start - last) * 100))
			if delayCS < 0 {
				delayCS = 0
			}
			durCS := int(math.Round(w.Duration() * 100))
			if durCS < 1 {
				durCS = 1
			}
			tags := fmt.Sprintf(`\k%d\kf%d`, delayCS, durCS)
			if b.accented(b.tmpl.ImpactKeywords, w.Text) {
				tags += fmt.Sprintf(`\t(0,150,\fscx125\fscy125)\t(150,%d,\fscx100\fscy100)`, durCS*10)
			}
			text.WriteString("{" + tags + "}" + b.displayWord(w) + " ")
			last = w.End
		}
		b.script.AddEvent(Event{
			Start: line.Start(),
			End:   line.End(),
			Style: b.style,
			Text:  strings.TrimSpace(text.String()),
		})
	}
}

// karaoke emits one event per word showing the whole line with only the
// active word highlighted and eased up to 125% scale. Gap events between
// words show the line fully normal, so no frame ever has two active
// words.
func (b *builder) karaoke(lines []Line) {
	hl := b.highlightColor()
	base := b.primaryColor()
	for li, line := range lines {
		pos := b.posTag(b.anchorFor(li))
		for i, w := range line.Words {
			durMS := wordMS(w, 100)
			easeIn := min(100, durMS/4)
			easeOut := max(easeIn, durMS-100)
			var text strings.Builder
			text.WriteString(pos)
			for j, o := range line.Words {
				if i == j {
					fmt.Fprintf(&text, `{\1c%s\t(0,%d,\fscx125\fscy125)\t(%d,%d,\fscx100\fscy100)}%s{\1c%s} `,
						hl, easeIn, easeOut, durMS, b.displayWord(o), base)
				} else {
					text.WriteString(`{\fscx100\fscy100}` + b.displayWord(o) + " ")
				}
			}
			b.script.AddEvent(Event{Start: w.Start, End: w.End, Style: b.style, Text: strings.TrimSpace(text.String())})
		}
		for i := 0; i+1 < len(line.Words); i++ {
			gapStart := line.Words[i].End
			gapEnd := line.Words[i+1].Start
			if gapEnd <= gapStart {
				continue
			}
			var text strings.Builder
			text.WriteString(pos)
			for _, o := range line.Words {
				text.WriteString(`{\fscx100\fscy100}` + b.displayWord(o) + " ")
			}
			b.script.AddEvent(Event{Start: gapStart, End: gapEnd, Style: b.style, Text: strings.TrimSpace(text.String())})
		}
	}
}

// explode gives every word its own burst: scale 50 to 180 to 120 to 100
// percent across the word, a three-hue color cycle, a glow that decays,
// and a small seeded horizontal jitter on the anchor.
func (b *builder) explode(lines []Line) {
	palette := b.palette(explodePalette)
	c1 := OverrideColor(palette[0%len(palette)])
	c2 := OverrideColor(palette[1%len(palette)])
	c3 := OverrideColor(palette[2%len(palette)])
	for li, line := range lines {
		a := b.anchorFor(li)
		for _, w := range line.Words {
			durMS := wordMS(w, 200)
			third := durMS / 3
			jitter := b.rng.Intn(13) - 6
			text := fmt.Sprintf(`{\an5\pos(%d,%d)\fscx50\fscy50`+
				`\t(0,100,\fscx180\fscy180)\t(100,250,\fscx120\fscy120)\t(250,%d,\fscx100\fscy100)`+
				`\t(0,%d,\1c%s)\t(%d,%d,\1c%s)\t(%d,%d,\1c%s)`+
				`\t(0,150,\blur8\shad6)\t(150,%d,\blur4\shad3)}%s`,
				a.X+jitter, a.Y,
				durMS,
				third, c1, third, 2*third, c2, 2*third, durMS, c3,
				durMS, b.displayWord(w))
			b.script.AddEvent(Event{Start: w.Start, End: w.End, Style: b.style, Text: text})
		}
	}
}

// typewriter reveals the accumulated prefix on each word event with a
// cursor glyph after the just-typed word. The cursor blinks on the final
// word of the script.
func (b *builder) typewriter(lines []Line) {
	hl := b.highlightColor()
	base := b.primaryColor()
	for li, line := range lines {
		pos := b.posTag(b.anchorFor(li))
		for wi, w := range line.Words {
			var text strings.Builder
			text.WriteString(pos)
			for j := 0; j <= wi; j++ {
				if j == wi {
					fmt.Fprintf(&text, `{\1c%s}%s`, base, b.displayWord(line.Words[j]))
				} else {
					fmt.Fprintf(&text, `{\1c%s}%s `, typedColor, b.displayWord(line.Words[j]))
				}
			}
			if li == len(lines)-1 && wi == len(line.Words)-1 {
				fmt.Fprintf(&text, `{\1c%s\alpha&H80&\t(0,500,\alpha&H00&)\t(500,1000,\alpha&H80&)}|`, hl)
			} else {
				fmt.Fprintf(&text, `{\1c%s}|`, hl)
			}
			b.script.AddEvent(Event{Start: w.Start, End: revealEnd(lines, li, wi), Style: b.style, Text: text.String()})
		}
	}
}

// bubble floats each word in from a random off-canvas direction with a
// short move, a 130 to 110 to 100 scale settle, a highlight flash, and a
// brief rotation wobble.
func (b *builder) bubble(lines []Line) {
	hl := b.highlightColor()
	base := b.primaryColor()
	for li, line := range lines {
		a := b.anchorFor(li)
		entries := [4]models.Anchor{
			{X: a.X, Y: CanvasHeight + 100},
			{X: -100, Y: a.Y},
			{X: CanvasWidth + 100, Y: a.Y},
			{X: a.X, Y: -100},
		}
		for wi, w := range line.Words {
			durMS := wordMS(w, 300)
			settle := durMS - 100
			colorBack := max(100, durMS-200)
			entry := entries[b.rng.Intn(len(entries))]
			text := fmt.Sprintf(`{\an5\move(%d,%d,%d,%d,0,200)\fad(150,100)\1c%s`+
				`\t(0,150,\fscx130\fscy130)\t(150,%d,\fscx110\fscy110)\t(%d,%d,\fscx100\fscy100)`+
				`\t(0,100,\1c%s)\t(%d,%d,\1c%s)`+
				`\t(0,100,\frx2)\t(100,200,\frx-1)\t(200,300,\frx0)}%s`,
				entry.X, entry.Y, a.X, a.Y, base,
				settle, settle, durMS,
				hl, colorBack, durMS, base,
				b.displayWord(w))
			b.script.AddEvent(Event{Start: w.Start, End: revealEnd(lines, li, wi), Style: b.style, Text: text})
		}
	}
}

// impact drops each word from the top of the canvas onto its anchor in
// about 300 ms, explodes the scale, then settles with a squash bounce.
// Accented impact words scale to 200 percent and flash to white.
func (b *builder) impact(lines []Line) {
	palette := b.palette(impactPalette)
	for li, line := range lines {
		a := b.anchorFor(li)
		for wi, w := range line.Words {
			durMS := wordMS(w, 400)
			drop := min(300, durMS/2)
			bounce := min(200, durMS/3)
			hit := b.accented(b.tmpl.ImpactKeywords, w.Text)
			scale, glow := 160, `\blur1\shad2`
			if hit {
				scale, glow = 200, `\blur3\shad3`
			}
			color := OverrideColor(palette[wi%len(palette)])
			flash := ""
			if hit {
				flash = fmt.Sprintf(`\t(%d,%d,\1c&H00FFFFFF&)`, drop, durMS)
			}
			text := fmt.Sprintf(`{\an5\move(%d,200,%d,%d,0,%d)%s\4c&H00000000&`+
				`\t(0,%d,\fscx%d\fscy%d)\t(%d,%d,\fscx%d\fscy%d)\t(%d,%d,\fscx%d\fscy%d)`+
				`\1c%s%s}%s`,
				a.X, a.X, a.Y, drop, glow,
				drop, scale, scale,
				drop, drop+bounce, scale-40, scale-40,
				drop+bounce, drop+bounce+100, scale, scale,
				color, flash, b.displayWord(w))
			b.script.AddEvent(Event{Start: w.Start, End: w.End, Style: b.style, Text: text})
		}
	}
}

// glitch emits three overlapping events per word: semi-transparent red
// and blue copies split a few pixels left and right of the main green
// layer, with a seeded positional wobble. Accented error words add an
// alpha flicker and a scale warp.
func (b *builder) glitch(lines []Line) {
	for li, line := range lines {
		a := b.anchorFor(li)
		for _, w := range line.Words {
			jx := b.rng.Intn(7) - 3
			jy := b.rng.Intn(5) - 2
			fx := `\blur2\shad2`
			if b.accented(b.tmpl.ErrorKeywords, w.Text) {
				fx = `\blur6\shad4` +
					`\t(0,50,\alpha&HFF&)\t(50,100,\alpha&H00&)\t(100,150,\alpha&HFF&)\t(150,200,\alpha&H00&)` +
					`\t(0,100,\fscx110\fscy90)\t(100,200,\fscx90\fscy110)\t(200,300,\fscx100\fscy100)`
			}
			word := b.displayWord(w)
			red := fmt.Sprintf(`{\an5\pos(%d,%d)\1c&H000000FF&\alpha&H80&%s}%s`,
				a.X-glitchOffset+jx, a.Y+jy, fx, word)
			main := fmt.Sprintf(`{\an5\pos(%d,%d)\1c&H0000FF00&%s}%s`, a.X, a.Y, fx, word)
			blue := fmt.Sprintf(`{\an5\pos(%d,%d)\1c&H00FF0000&\alpha&H80&%s}%s`,
				a.X+glitchOffset-jx, a.Y-jy, fx, word)
			b.script.AddEvent(Event{Layer: 0, Start: w.Start, End: w.End, Style: b.style, Text: red})
			b.script.AddEvent(Event{Layer: 0, Start: w.Start, End: w.End, Style: b.style, Text: blue})
			b.script.AddEvent(Event{Layer: 1, Start: w.Start, End: w.End, Style: b.style, Text: main})
		}
	}
}

// rainbow slides each word in from the right; the slide shortens with
// every word in the line to build momentum, colors cycle a rainbow
// palette, and accented momentum words pop larger.
func (b *builder) rainbow(lines []Line) {
	palette := b.palette(rainbowPalette)
	for li, line := range lines {
		a := b.anchorFor(li)
		for wi, w := range line.Words {
			slide := int(200 * math.Max(0.3, 1.0-0.15*float64(wi)))
			startX := a.X + 200 + wi*20
			color := OverrideColor(palette[wi%len(palette)])
			pop, glow := `\t(0,80,\fscx120\fscy120)\t(80,160,\fscx100\fscy100)`, `\blur3\shad2`
			if b.accented(b.tmpl.MomentumKeywords, w.Text) {
				pop, glow = `\t(0,100,\fscx140\fscy140)\t(100,200,\fscx100\fscy100)`, `\blur5\shad4`
			}
			text := fmt.Sprintf(`{\an5\move(%d,%d,%d,%d,0,%d)%s%s\1c%s}%s`,
				startX, a.Y, a.X, a.Y, slide, glow, pop, color, b.displayWord(w))
			b.script.AddEvent(Event{Start: w.Start, End: w.End, Style: b.style, Text: text})
		}
	}
}

// speaker colors each whole line by the speaker talking at its first
// word. Speakers keep their color for the entire script; without a
// speaker lookup the palette cycles per line. Inter-line gaps shorter
// than speakerGapClose are absorbed so blocks do not flicker.
func (b *builder) speaker(lines []Line) {
	colors := b.tmpl.SpeakerColors
	if len(colors) == 0 {
		colors = speakerPalette
	}
	assigned := make(map[string]string)
	for li, line := range lines {
		color := colors[li%len(colors)]
		if b.speakerAt != nil {
			if label := b.speakerAt(line.Start()); label != "" {
				c, ok := assigned[label]
				if !ok {
					c = colors[len(assigned)%len(colors)]
					assigned[label] = c
				}
				color = c
			}
		}
		start := line.Start()
		if li > 0 {
			prevEnd := lines[li-1].End()
			if gap := start - prevEnd; gap > 0 && gap < speakerGapClose {
				start = prevEnd
			}
		}
		text := fmt.Sprintf(`%s{\fad(100,100)\1c%s}%s`,
			b.posTag(b.anchorFor(li)), OverrideColor(color), b.lineText(line))
		b.script.AddEvent(Event{Start: start, End: line.End(), Style: b.style, Text: text})
	}
}
