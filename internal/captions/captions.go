// Package captions compiles word-timed transcript segments into styled,
// animated ASS subtitle scripts. Each style template selects one animation
// recipe; recipes emit structured events against the 1080x1920 canvas and
// the document serializes once, so compiled output is reproducible for a
// given seed and every event keeps the exact timing of its source words.
package captions

import (
	"log/slog"
	"math/rand"
	"strings"

	"github.com/jmylchreest/cliparr/internal/models"
)

// SafeZone is the canonical caption anchor used whenever a layout mode is
// in play: bottom-center, high enough to clear letterbox and blur bands.
var SafeZone = models.Anchor{X: 540, Y: 1600}

// SpeakerAt reports which speaker is talking at the given clip time in
// seconds. The empty string means unknown; the speaker recipe then falls
// back to cycling line colors.
type SpeakerAt func(t float64) string

// Compiler turns transcripts into subtitle scripts for one template.
type Compiler struct {
	tmpl      models.StyleTemplate
	layout    models.Layout
	seed      int64
	speakerAt SpeakerAt
	logger    *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLayout enables layout-aware positioning: template anchors are
// overridden with the safe zone so captions never collide with blur or
// letterbox regions.
func WithLayout(layout models.Layout) Option {
	return func(c *Compiler) { c.layout = layout }
}

// WithSeed fixes the random stream used by variable chunking and the
// randomized recipes. Identical seeds produce bit-identical scripts.
func WithSeed(seed int64) Option {
	return func(c *Compiler) { c.seed = seed }
}

// WithSpeakers supplies the speaker lookup consulted by the speaker
// recipe.
func WithSpeakers(fn SpeakerAt) Option {
	return func(c *Compiler) { c.speakerAt = fn }
}

// WithLogger sets the compile logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// NewCompiler builds a compiler for the given template.
func NewCompiler(tmpl models.StyleTemplate, opts ...Option) *Compiler {
	c := &Compiler{tmpl: tmpl}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Compile builds the subtitle script for the given segments. Segment word
// tokens drive every event time; segments that arrive without tokens get
// an even split of the segment window so the script stays total.
func (c *Compiler) Compile(segments []models.TranscriptSegment) (*Script, error) {
	if err := c.tmpl.Validate(); err != nil {
		return nil, err
	}

	words := flattenWords(segments)
	script := NewScript("cliparr captions")
	script.AddStyle(styleFromTemplate(c.tmpl))
	if len(words) == 0 {
		return script, nil
	}

	b := &builder{
		tmpl:      c.tmpl,
		style:     sanitizeName(c.tmpl.Name),
		rng:       rand.New(rand.NewSource(c.seed)),
		anchors:   c.resolveAnchors(),
		speakerAt: c.speakerAt,
		script:    script,
	}

	lines := b.chunk(words)
	switch c.tmpl.Recipe {
	case models.RecipeKaraoke:
		b.karaoke(lines)
	case models.RecipeExplode:
		b.explode(lines)
	case models.RecipeTypewriter:
		b.typewriter(lines)
	case models.RecipeBubble:
		b.bubble(lines)
	case models.RecipeImpact:
		b.impact(lines)
	case models.RecipeGlitch:
		b.glitch(lines)
	case models.RecipeRainbow:
		b.rainbow(lines)
	case models.RecipeSpeaker:
		b.speaker(lines)
	default:
		b.progressive(lines)
	}

	c.logger.Debug("compiled caption script",
		slog.String("template", c.tmpl.Name),
		slog.String("recipe", string(c.tmpl.Recipe)),
		slog.Int("words", len(words)),
		slog.Int("lines", len(lines)),
		slog.Int("events", len(script.Events)))
	return script, nil
}

// resolveAnchors returns the anchor cycle for this compile. A known
// layout mode forces the safe zone; otherwise template anchors apply,
// with the safe zone as the final fallback.
func (c *Compiler) resolveAnchors() []models.Anchor {
	if c.layout.IsValid() {
		return []models.Anchor{SafeZone}
	}
	if len(c.tmpl.Anchors) > 0 {
		return c.tmpl.Anchors
	}
	return []models.Anchor{SafeZone}
}

// flattenWords collects word tokens across segments in timeline order.
// Segments without tokens fall back to an even split of the segment
// window across their whitespace-separated text.
func flattenWords(segments []models.TranscriptSegment) []models.WordToken {
	var out []models.WordToken
	for _, seg := range segments {
		if len(seg.Words) > 0 {
			out = append(out, seg.Words...)
			continue
		}
		out = append(out, estimateWords(seg)...)
	}
	return out
}

// estimateWords divides a segment window evenly across its text tokens.
func estimateWords(seg models.TranscriptSegment) []models.WordToken {
	fields := strings.Fields(seg.Text)
	if len(fields) == 0 || seg.End <= seg.Start {
		return nil
	}
	per := (seg.End - seg.Start) / float64(len(fields))
	words := make([]models.WordToken, len(fields))
	for i, f := range fields {
		start := seg.Start + float64(i)*per
		words[i] = models.WordToken{Start: start, End: start + per, Text: f}
	}
	return words
}

// styleFromTemplate maps template fields onto the single style record the
// compiled script carries. The secondary colour doubles as the karaoke
// fill source for progressive reveals.
func styleFromTemplate(t models.StyleTemplate) Style {
	return Style{
		Name:            sanitizeName(t.Name),
		FontName:        t.FontName,
		FontSize:        t.FontSize,
		PrimaryColour:   colorOr(t.PrimaryColor, "&H00FFFFFF"),
		SecondaryColour: colorOr(t.HighlightColor, "&H0000FF00"),
		OutlineColour:   colorOr(t.OutlineColor, "&H00000000"),
		BackColour:      colorOr(t.BackColor, "&H99000000"),
		Bold:            t.Bold,
		Italic:          t.Italic,
		BorderStyle:     1,
		Outline:         t.OutlineWidth,
		Shadow:          t.ShadowDepth,
		Alignment:       t.Alignment,
		MarginL:         10,
		MarginR:         10,
		MarginV:         t.MarginV,
	}
}

func colorOr(c, fallback string) string {
	if strings.TrimSpace(c) == "" {
		return fallback
	}
	return c
}
