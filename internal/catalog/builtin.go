package catalog

import "github.com/jmylchreest/cliparr/internal/models"

// DefaultTemplateName is the template used when a job names none.
const DefaultTemplateName = "Hormozi"

// Builtins returns the built-in template set. Every animation recipe has
// at least one entry. Colors are ASS &HAABBGGRR.
func Builtins() []models.StyleTemplate {
	return []models.StyleTemplate{
		{
			// Bold all-caps lower-third fill, the default look.
			Name:           "Hormozi",
			Recipe:         models.RecipeProgressive,
			FontName:       "Arial Black",
			FontSize:       144,
			PrimaryColor:   "&H00FFFFFF",
			HighlightColor: "&H0000FF00",
			OutlineColor:   "&H00000000",
			BackColor:      "&H99000000",
			Bold:           true,
			OutlineWidth:   8,
			ShadowDepth:    3,
			Alignment:      2,
			MarginV:        40,
			AllCaps:        true,
			WordsPerLine:   3,
			Anchors: []models.Anchor{
				{X: 540, Y: 1200},
				{X: 540, Y: 1350},
			},
			ImpactKeywords: []string{
				"money", "million", "thousand", "dollars", "free",
				"secret", "proven", "guarantee", "never", "always",
			},
		},
		{
			Name:           "Karaoke",
			Recipe:         models.RecipeKaraoke,
			FontName:       "Arial Black",
			FontSize:       120,
			PrimaryColor:   "&H00FFFFFF",
			HighlightColor: "&H0000FF00",
			OutlineColor:   "&H00000000",
			BackColor:      "&H99000000",
			Bold:           true,
			OutlineWidth:   4,
			ShadowDepth:    4,
			Alignment:      2,
			MarginV:        40,
			WordsPerLine:   6,
			Anchors:        []models.Anchor{{X: 540, Y: 1750}},
		},
		{
			Name:            "RageMode",
			Recipe:          models.RecipeExplode,
			FontName:        "Impact",
			FontSize:        120,
			PrimaryColor:    "&H00FFFFFF",
			HighlightColor:  "&H000000FF",
			OutlineColor:    "&H00000000",
			Bold:            true,
			OutlineWidth:    8,
			Alignment:       2,
			MarginV:         20,
			AllCaps:         true,
			VariableChunks:  true,
			MinWordsPerLine: 1,
			MaxWordsPerLine: 4,
			Anchors:         []models.Anchor{{X: 540, Y: 800}},
			Palette:         []string{"&H000000FF&", "&H0000FFFF&", "&H000080FF&"},
			ImpactKeywords: []string{
				"what", "bro", "no", "way", "damn", "yo",
				"man", "dude", "bruh", "fire", "crazy", "insane",
			},
		},
		{
			Name:            "TypeWriter",
			Recipe:          models.RecipeTypewriter,
			FontName:        "Consolas",
			FontSize:        85,
			PrimaryColor:    "&H00FFFFFF",
			HighlightColor:  "&H0000FF00",
			OutlineColor:    "&H00000000",
			Bold:            true,
			OutlineWidth:    2,
			Alignment:       2,
			MarginV:         15,
			VariableChunks:  true,
			MinWordsPerLine: 4,
			MaxWordsPerLine: 6,
			Anchors:         []models.Anchor{{X: 540, Y: 1560}},
		},
		{
			Name:            "BubblePop",
			Recipe:          models.RecipeBubble,
			FontName:        "Comfortaa",
			FontSize:        95,
			PrimaryColor:    "&H00E6E6FA",
			HighlightColor:  "&H00FF69B4",
			OutlineColor:    "&H00000000",
			Bold:            true,
			OutlineWidth:    3,
			Alignment:       2,
			MarginV:         15,
			VariableChunks:  true,
			MinWordsPerLine: 3,
			MaxWordsPerLine: 5,
			Anchors:         []models.Anchor{{X: 540, Y: 1560}},
		},
		{
			Name:           "BeastMode",
			Recipe:         models.RecipeImpact,
			FontName:       "Impact",
			FontSize:       160,
			PrimaryColor:   "&H00FFFFFF",
			HighlightColor: "&H0000FF00",
			OutlineColor:   "&H00000000",
			BackColor:      "&H99000000",
			Bold:           true,
			OutlineWidth:   12,
			Alignment:      2,
			MarginV:        20,
			AllCaps:        true,
			WordsPerLine:   2,
			Anchors:        []models.Anchor{{X: 540, Y: 800}},
			Palette:        []string{"&H0000FF00&", "&H0000FFFF&", "&H00FFD700&"},
			ImpactKeywords: []string{
				"million", "thousand", "dollars", "money", "win", "winner",
				"challenge", "impossible", "insane", "crazy",
				"what", "how", "why", "amazing", "incredible",
			},
		},
		{
			Name:            "GlitchStreamer",
			Recipe:          models.RecipeGlitch,
			FontName:        "Courier New",
			FontSize:        100,
			PrimaryColor:    "&H00FFFFFF",
			HighlightColor:  "&H0000FF00",
			OutlineColor:    "&H00000000",
			Bold:            true,
			OutlineWidth:    4,
			Alignment:       2,
			MarginV:         20,
			VariableChunks:  true,
			MinWordsPerLine: 1,
			MaxWordsPerLine: 4,
			Anchors:         []models.Anchor{{X: 540, Y: 800}},
			ErrorKeywords: []string{
				"error", "failed", "crashed", "lag", "disconnect",
				"bug", "glitch", "broken", "rip", "oof",
			},
		},
		{
			Name:            "HypeTrain",
			Recipe:          models.RecipeRainbow,
			FontName:        "Arial Black",
			FontSize:        110,
			PrimaryColor:    "&H00FFFFFF",
			HighlightColor:  "&H00FF00FF",
			OutlineColor:    "&H00000000",
			Bold:            true,
			OutlineWidth:    6,
			Alignment:       2,
			MarginV:         20,
			VariableChunks:  true,
			MinWordsPerLine: 2,
			MaxWordsPerLine: 5,
			Anchors:         []models.Anchor{{X: 540, Y: 800}},
			Palette: []string{
				"&H000000FF&", "&H0000FFFF&", "&H0000FF00&",
				"&H00FF00FF&", "&H00FFFF00&", "&H00FF0080&",
			},
			MomentumKeywords: []string{
				"let's", "go", "yes", "wow", "amazing", "incredible",
				"poggers", "sheesh", "w", "chat", "viewers",
			},
		},
		{
			Name:           "PodcastPro",
			Recipe:         models.RecipeSpeaker,
			FontName:       "Open Sans",
			FontSize:       75,
			PrimaryColor:   "&H00FFFFFF",
			OutlineColor:   "&H00000000",
			Bold:           true,
			OutlineWidth:   3,
			Alignment:      2,
			MarginV:        20,
			WordsPerLine:   5,
			Anchors:        []models.Anchor{{X: 540, Y: 850}},
			SpeakerColors:  []string{"&H0000FF00&", "&H000000FF&", "&H00FFFFFF&", "&H0000FFFF&"},
			HighlightColor: "&H0000FFFF",
		},
	}
}
