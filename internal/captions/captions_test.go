package captions

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cliparr/internal/models"
)

func testTemplate(recipe models.Recipe) models.StyleTemplate {
	return models.StyleTemplate{
		Name:           "TestStyle",
		Recipe:         recipe,
		FontName:       "Arial Black",
		FontSize:       120,
		PrimaryColor:   "&H00FFFFFF",
		HighlightColor: "&H0000FF00",
		OutlineWidth:   4,
		ShadowDepth:    2,
		Alignment:      2,
		MarginV:        40,
		WordsPerLine:   3,
	}
}

func segmentWith(words []models.WordToken) []models.TranscriptSegment {
	return []models.TranscriptSegment{{
		Start: words[0].Start,
		End:   words[len(words)-1].End,
		Text:  Line{Words: words}.Text(),
		Words: words,
	}}
}

func wordsWithText(texts []string, start, dur, gap float64) []models.WordToken {
	words := make([]models.WordToken, len(texts))
	cursor := start
	for i, txt := range texts {
		words[i] = models.WordToken{Start: cursor, End: cursor + dur, Text: txt}
		cursor += dur + gap
	}
	return words
}

func TestCompiler_ProgressiveOneEventPerLine(t *testing.T) {
	c := NewCompiler(testTemplate(models.RecipeProgressive), WithLayout(models.LayoutFit))
	script, err := c.Compile(segmentWith(evenWords(6, 0)))
	require.NoError(t, err)
	require.Len(t, script.Events, 2)

	first := script.Events[0]
	assert.InDelta(t, 0, first.Start, 1e-9)
	assert.InDelta(t, 1.5, first.End, 1e-9)
	assert.True(t, strings.HasPrefix(first.Text, `{\an5\pos(540,1600)}`))
	assert.Contains(t, first.Text, `{\k0\kf50}word1`)
	assert.Equal(t, "TestStyle", first.Style)

	second := script.Events[1]
	assert.InDelta(t, 1.5, second.Start, 1e-9)
	assert.InDelta(t, 3.0, second.End, 1e-9)
}

func TestCompiler_ProgressiveImpactBump(t *testing.T) {
	tmpl := testTemplate(models.RecipeProgressive)
	tmpl.ImpactKeywords = []string{"word2"}
	c := NewCompiler(tmpl, WithLayout(models.LayoutFit))

	script, err := c.Compile(segmentWith(evenWords(3, 0)))
	require.NoError(t, err)
	require.Len(t, script.Events, 1)
	assert.Contains(t, script.Events[0].Text, `\t(0,150,\fscx125\fscy125)`)
}

func TestCompiler_KaraokeEmitsGapEvents(t *testing.T) {
	c := NewCompiler(testTemplate(models.RecipeKaraoke), WithLayout(models.LayoutFit))
	words := wordsWithText([]string{"one", "two", "three"}, 0, 0.6, 0.4)

	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, 5)

	var wordEvents, gapEvents []Event
	for _, e := range script.Events {
		if strings.Contains(e.Text, `\t(`) {
			wordEvents = append(wordEvents, e)
		} else {
			gapEvents = append(gapEvents, e)
		}
	}
	require.Len(t, wordEvents, 3)
	require.Len(t, gapEvents, 2)

	// Exactly one highlighted word per word event, eased in within 100 ms.
	for i, e := range wordEvents {
		assert.Equal(t, 1, strings.Count(e.Text, `{\1c&H0000FF00&`))
		assert.Contains(t, e.Text, `\t(0,100,\fscx125\fscy125)`)
		assert.InDelta(t, words[i].Start, e.Start, 1e-9)
		assert.InDelta(t, words[i].End, e.End, 1e-9)
	}

	// Gap events cover the silences with every word at rest.
	assert.InDelta(t, 0.6, gapEvents[0].Start, 1e-9)
	assert.InDelta(t, 1.0, gapEvents[0].End, 1e-9)
	assert.NotContains(t, gapEvents[0].Text, `\1c`)
}

func TestCompiler_ExplodeBurstsEveryWord(t *testing.T) {
	c := NewCompiler(testTemplate(models.RecipeExplode), WithLayout(models.LayoutFit), WithSeed(3))
	words := evenWords(4, 0)

	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, 4)

	for i, e := range script.Events {
		assert.InDelta(t, words[i].Start, e.Start, 1e-9)
		assert.InDelta(t, words[i].End, e.End, 1e-9)
		assert.Contains(t, e.Text, `\fscx50\fscy50`)
		assert.Contains(t, e.Text, `\t(0,100,\fscx180\fscy180)`)
		assert.Contains(t, e.Text, `\t(100,250,\fscx120\fscy120)`)

		// Horizontal jitter stays within six pixels of the anchor.
		idx := strings.Index(e.Text, `\pos(`)
		require.GreaterOrEqual(t, idx, 0)
		var x, y int
		_, serr := fmt.Sscanf(e.Text[idx:], `\pos(%d,%d)`, &x, &y)
		require.NoError(t, serr)
		assert.GreaterOrEqual(t, x, 534)
		assert.LessOrEqual(t, x, 546)
		assert.Equal(t, 1600, y)
	}
}

func TestCompiler_TypewriterAccumulates(t *testing.T) {
	tmpl := testTemplate(models.RecipeTypewriter)
	tmpl.WordsPerLine = 4
	c := NewCompiler(tmpl, WithLayout(models.LayoutFit))
	words := evenWords(4, 0)

	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, 4)

	for i, e := range script.Events {
		assert.Equal(t, i+1, strings.Count(e.Text, "word"), "event %d shows the typed prefix", i)
		assert.True(t, strings.HasSuffix(e.Text, "|"), "cursor trails the prefix")
	}

	// Each reveal ends just before the next word starts; the final one
	// lingers and blinks.
	assert.InDelta(t, 0.49, script.Events[0].End, 1e-9)
	last := script.Events[3]
	assert.InDelta(t, 2.5, last.End, 1e-9)
	assert.Contains(t, last.Text, `\alpha&H80&`)
	assert.NotContains(t, script.Events[0].Text, `\alpha&H80&`)
}

func TestCompiler_BubbleEntersOffCanvas(t *testing.T) {
	c := NewCompiler(testTemplate(models.RecipeBubble), WithLayout(models.LayoutFit), WithSeed(11))
	script, err := c.Compile(segmentWith(evenWords(12, 0)))
	require.NoError(t, err)
	require.Len(t, script.Events, 12)

	entries := []string{
		`\move(540,2020,540,1600,0,200)`,
		`\move(-100,1600,540,1600,0,200)`,
		`\move(1180,1600,540,1600,0,200)`,
		`\move(540,-100,540,1600,0,200)`,
	}
	seen := map[string]bool{}
	for _, e := range script.Events {
		assert.NotContains(t, e.Text, `\pos(`, "move and pos are mutually exclusive")
		matched := ""
		for _, entry := range entries {
			if strings.Contains(e.Text, entry) {
				matched = entry
				break
			}
		}
		require.NotEmpty(t, matched, "event enters from off canvas: %s", e.Text)
		seen[matched] = true
		assert.Contains(t, e.Text, `\t(0,150,\fscx130\fscy130)`)
		assert.Contains(t, e.Text, `\frx`)
	}
	assert.GreaterOrEqual(t, len(seen), 2, "entry direction varies")
}

func TestCompiler_ImpactDropsFromTop(t *testing.T) {
	tmpl := testTemplate(models.RecipeImpact)
	tmpl.ImpactKeywords = []string{"boom"}
	c := NewCompiler(tmpl, WithLayout(models.LayoutFit))
	words := wordsWithText([]string{"hello", "boom"}, 0, 0.5, 0)

	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, 2)

	plain, accent := script.Events[0], script.Events[1]
	assert.Contains(t, plain.Text, `\move(540,200,540,1600,0,250)`)
	assert.Contains(t, plain.Text, `\fscx160`)
	assert.NotContains(t, plain.Text, `\1c&H00FFFFFF&`)

	assert.Contains(t, accent.Text, `\fscx200`)
	assert.Contains(t, accent.Text, `\1c&H00FFFFFF&`, "impact word flashes to white")
}

func TestCompiler_GlitchSplitsRGBLayers(t *testing.T) {
	tmpl := testTemplate(models.RecipeGlitch)
	tmpl.ErrorKeywords = []string{"lag"}
	c := NewCompiler(tmpl, WithLayout(models.LayoutFit), WithSeed(2))
	words := wordsWithText([]string{"fine", "lag"}, 0, 0.5, 0)

	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, 6)

	for w := 0; w < 2; w++ {
		red, blue, main := script.Events[w*3], script.Events[w*3+1], script.Events[w*3+2]
		for _, e := range []Event{red, blue, main} {
			assert.InDelta(t, words[w].Start, e.Start, 1e-9)
			assert.InDelta(t, words[w].End, e.End, 1e-9)
		}
		assert.Contains(t, red.Text, `\1c&H000000FF&\alpha&H80&`)
		assert.Contains(t, blue.Text, `\1c&H00FF0000&\alpha&H80&`)
		assert.Contains(t, main.Text, `\1c&H0000FF00&`)
		assert.NotContains(t, main.Text, `\alpha&H80&`)
		assert.Equal(t, 1, main.Layer, "main layer paints over the ghosts")
		assert.Contains(t, main.Text, `\pos(540,1600)`)
	}

	// The flagged error word flickers; the clean word does not.
	assert.NotContains(t, script.Events[2].Text, `\alpha&HFF&`)
	assert.Contains(t, script.Events[5].Text, `\alpha&HFF&`)
}

func TestCompiler_RainbowBuildsMomentum(t *testing.T) {
	tmpl := testTemplate(models.RecipeRainbow)
	tmpl.MomentumKeywords = []string{"go"}
	c := NewCompiler(tmpl, WithLayout(models.LayoutFit))
	words := wordsWithText([]string{"lets", "go", "fast"}, 0, 0.5, 0)

	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, 3)

	// Each word starts further right and slides in faster than the last.
	assert.Contains(t, script.Events[0].Text, `\move(740,1600,540,1600,0,200)`)
	assert.Contains(t, script.Events[1].Text, `\move(760,1600,540,1600,0,170)`)
	assert.Contains(t, script.Events[2].Text, `\move(780,1600,540,1600,0,140)`)

	assert.Contains(t, script.Events[1].Text, `\fscx140\fscy140`, "momentum word pops larger")
	assert.Contains(t, script.Events[0].Text, `\fscx120\fscy120`)
}

func TestCompiler_SpeakerColorsFollowLookup(t *testing.T) {
	tmpl := testTemplate(models.RecipeSpeaker)
	tmpl.WordsPerLine = 2
	tmpl.SpeakerColors = []string{"&H0000FF00&", "&H000000FF&"}

	words := []models.WordToken{
		{Start: 0, End: 0.5, Text: "a"}, {Start: 0.5, End: 1.0, Text: "b"},
		{Start: 1.1, End: 1.6, Text: "c"}, {Start: 1.6, End: 2.1, Text: "d"},
		{Start: 3.0, End: 3.5, Text: "e"}, {Start: 3.5, End: 4.0, Text: "f"},
	}
	speakers := func(ts float64) string {
		if ts < 1.05 {
			return "left"
		}
		return "right"
	}

	c := NewCompiler(tmpl, WithLayout(models.LayoutFit), WithSpeakers(speakers))
	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, 3)

	assert.Contains(t, script.Events[0].Text, `\1c&H0000FF00&`)
	assert.Contains(t, script.Events[1].Text, `\1c&H000000FF&`)
	assert.Contains(t, script.Events[2].Text, `\1c&H000000FF&`, "speaker keeps its color")
	assert.Contains(t, script.Events[1].Text, "c d")
	assert.Contains(t, script.Events[0].Text, `\fad(100,100)`)
}

func TestCompiler_SpeakerClosesShortGaps(t *testing.T) {
	tmpl := testTemplate(models.RecipeSpeaker)
	tmpl.WordsPerLine = 2

	words := []models.WordToken{
		{Start: 0, End: 0.5, Text: "a"}, {Start: 0.5, End: 1.0, Text: "b"},
		{Start: 1.1, End: 1.6, Text: "c"}, {Start: 1.6, End: 2.1, Text: "d"},
		{Start: 3.0, End: 3.5, Text: "e"}, {Start: 3.5, End: 4.0, Text: "f"},
	}
	c := NewCompiler(tmpl, WithLayout(models.LayoutFit))
	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, 3)

	// The 0.1 s gap closes; the 0.9 s silence stays a real gap.
	assert.InDelta(t, 1.0, script.Events[1].Start, 1e-9)
	assert.InDelta(t, 3.0, script.Events[2].Start, 1e-9)
}

func TestCompiler_DeterministicForSeed(t *testing.T) {
	tmpl := testTemplate(models.RecipeBubble)
	tmpl.WordsPerLine = 0
	tmpl.VariableChunks = true
	tmpl.MinWordsPerLine = 1
	tmpl.MaxWordsPerLine = 3
	segments := segmentWith(evenWords(24, 0))

	render := func(seed int64) string {
		c := NewCompiler(tmpl, WithLayout(models.LayoutFit), WithSeed(seed))
		script, err := c.Compile(segments)
		require.NoError(t, err)
		return script.Render()
	}

	assert.Equal(t, render(5), render(5))
	assert.NotEqual(t, render(5), render(6))
}

func TestCompiler_LayoutOverridesTemplateAnchors(t *testing.T) {
	tmpl := testTemplate(models.RecipeProgressive)
	tmpl.Anchors = []models.Anchor{{X: 540, Y: 800}}
	segments := segmentWith(evenWords(3, 0))

	free, err := NewCompiler(tmpl).Compile(segments)
	require.NoError(t, err)
	assert.Contains(t, free.Events[0].Text, `\pos(540,800)`)

	fitted, err := NewCompiler(tmpl, WithLayout(models.LayoutFit)).Compile(segments)
	require.NoError(t, err)
	assert.Contains(t, fitted.Events[0].Text, `\pos(540,1600)`)
}

func TestCompiler_AllCapsUppercasesWords(t *testing.T) {
	tmpl := testTemplate(models.RecipeProgressive)
	tmpl.AllCaps = true
	c := NewCompiler(tmpl, WithLayout(models.LayoutFit))

	script, err := c.Compile(segmentWith(wordsWithText([]string{"hello", "there"}, 0, 0.5, 0)))
	require.NoError(t, err)
	assert.Contains(t, script.Events[0].Text, "HELLO")
	assert.NotContains(t, script.Events[0].Text, "hello")
}

func TestCompiler_EstimatesMissingWordTiming(t *testing.T) {
	c := NewCompiler(testTemplate(models.RecipeProgressive), WithLayout(models.LayoutFit))
	segments := []models.TranscriptSegment{{Start: 0, End: 3, Text: "one two three"}}

	script, err := c.Compile(segments)
	require.NoError(t, err)
	require.Len(t, script.Events, 1)
	assert.InDelta(t, 0, script.Events[0].Start, 1e-9)
	assert.InDelta(t, 3, script.Events[0].End, 1e-9)
	assert.Contains(t, script.Events[0].Text, `\kf100`, "each estimated word spans one second")
}

func TestCompiler_EmptyTranscript(t *testing.T) {
	c := NewCompiler(testTemplate(models.RecipeProgressive), WithLayout(models.LayoutFit))
	script, err := c.Compile(nil)
	require.NoError(t, err)
	assert.Empty(t, script.Events)
	require.Len(t, script.Styles, 1)
	assert.Contains(t, script.Render(), "[Events]")
}

func TestCompiler_InvalidTemplate(t *testing.T) {
	tmpl := testTemplate(models.RecipeProgressive)
	tmpl.FontSize = 0
	_, err := NewCompiler(tmpl).Compile(segmentWith(evenWords(3, 0)))
	assert.Error(t, err)
}

func TestCompiler_WordTimingSurvivesCompilation(t *testing.T) {
	// Compiled events must carry the exact source word times; serialization
	// may round to centiseconds but the document itself never drifts.
	words := models.ShiftWords(evenWords(6, 83.2), -83.2)
	c := NewCompiler(testTemplate(models.RecipeExplode), WithLayout(models.LayoutFit))

	script, err := c.Compile(segmentWith(words))
	require.NoError(t, err)
	require.Len(t, script.Events, len(words))
	for i, e := range script.Events {
		assert.InDelta(t, words[i].Start, e.Start, 0.001)
		assert.InDelta(t, words[i].End, e.End, 0.001)
	}
}
