package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Recipe identifies one caption animation family.
type Recipe string

const (
	// RecipeProgressive fills each line word by word with karaoke timing.
	RecipeProgressive Recipe = "progressive"
	// RecipeKaraoke pops the active word with a short eased scale.
	RecipeKaraoke Recipe = "karaoke"
	// RecipeExplode bursts every word in oversized with a hue cycle.
	RecipeExplode Recipe = "explode"
	// RecipeTypewriter reveals the line one word at a time with a cursor.
	RecipeTypewriter Recipe = "typewriter"
	// RecipeBubble pops lines in from a random off-canvas direction.
	RecipeBubble Recipe = "bubble"
	// RecipeImpact drops lines in from above with a heavy settle.
	RecipeImpact Recipe = "impact"
	// RecipeGlitch layers chromatic ghost copies around the line.
	RecipeGlitch Recipe = "glitch"
	// RecipeRainbow slides lines in from the right cycling a palette.
	RecipeRainbow Recipe = "rainbow"
	// RecipeSpeaker colors each line by its detected speaker.
	RecipeSpeaker Recipe = "speaker"
)

// IsValid reports whether the recipe is a known animation family.
func (r Recipe) IsValid() bool {
	switch r {
	case RecipeProgressive, RecipeKaraoke, RecipeExplode, RecipeTypewriter,
		RecipeBubble, RecipeImpact, RecipeGlitch, RecipeRainbow, RecipeSpeaker:
		return true
	}
	return false
}

// Anchor pins a caption line to a coordinate on the 1080x1920 output
// canvas. Templates may list several; lines cycle through them in order.
type Anchor struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// StyleTemplate describes one caption look: font, colors, line chunking and
// the animation recipe the compiler applies. Colors use ASS &HAABBGGRR
// notation throughout.
type StyleTemplate struct {
	Name           string `json:"name" yaml:"name"`
	Recipe         Recipe `json:"recipe" yaml:"recipe"`
	FontName       string `json:"font_name" yaml:"font_name"`
	FontSize       int    `json:"font_size" yaml:"font_size"`
	PrimaryColor   string `json:"primary_color" yaml:"primary_color"`
	HighlightColor string `json:"highlight_color,omitempty" yaml:"highlight_color,omitempty"`
	OutlineColor   string `json:"outline_color,omitempty" yaml:"outline_color,omitempty"`
	BackColor      string `json:"back_color,omitempty" yaml:"back_color,omitempty"`
	Bold           bool   `json:"bold" yaml:"bold"`
	Italic         bool   `json:"italic,omitempty" yaml:"italic,omitempty"`
	OutlineWidth   int    `json:"outline_width" yaml:"outline_width"`
	ShadowDepth    int    `json:"shadow_depth" yaml:"shadow_depth"`
	Alignment      int    `json:"alignment" yaml:"alignment"`
	MarginV        int    `json:"margin_v" yaml:"margin_v"`
	AllCaps        bool   `json:"all_caps,omitempty" yaml:"all_caps,omitempty"`

	// Anchors position lines on the canvas when no layout override applies.
	// Empty means the compiler's safe-zone default.
	Anchors []Anchor `json:"anchors,omitempty" yaml:"anchors,omitempty"`

	// Fixed chunking uses WordsPerLine; variable chunking draws line sizes
	// in [MinWordsPerLine, MaxWordsPerLine].
	WordsPerLine    int  `json:"words_per_line,omitempty" yaml:"words_per_line,omitempty"`
	MinWordsPerLine int  `json:"min_words_per_line,omitempty" yaml:"min_words_per_line,omitempty"`
	MaxWordsPerLine int  `json:"max_words_per_line,omitempty" yaml:"max_words_per_line,omitempty"`
	VariableChunks  bool `json:"variable_chunks,omitempty" yaml:"variable_chunks,omitempty"`

	// Recipe accent word lists, matched case-insensitively.
	ImpactKeywords   []string `json:"impact_keywords,omitempty" yaml:"impact_keywords,omitempty"`
	ErrorKeywords    []string `json:"error_keywords,omitempty" yaml:"error_keywords,omitempty"`
	MomentumKeywords []string `json:"momentum_keywords,omitempty" yaml:"momentum_keywords,omitempty"`

	// Palette drives hue cycling recipes; SpeakerColors maps speaker labels
	// to line colors for the speaker recipe.
	Palette       []string `json:"palette,omitempty" yaml:"palette,omitempty"`
	SpeakerColors []string `json:"speaker_colors,omitempty" yaml:"speaker_colors,omitempty"`
}

// Validate checks the template for structural problems.
func (t *StyleTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrValidation{Field: "name", Message: "template name is required"}
	}
	if !t.Recipe.IsValid() {
		return ErrValidation{Field: "recipe", Message: fmt.Sprintf("unknown recipe %q", t.Recipe)}
	}
	if t.FontSize <= 0 {
		return ErrValidation{Field: "font_size", Message: "font size must be positive"}
	}
	if t.Alignment < 1 || t.Alignment > 9 {
		return ErrValidation{Field: "alignment", Message: "alignment must be a numpad position 1-9"}
	}
	if t.VariableChunks {
		if t.MinWordsPerLine <= 0 || t.MaxWordsPerLine < t.MinWordsPerLine {
			return ErrValidation{Field: "words_per_line", Message: "variable chunking needs 0 < min <= max"}
		}
	} else if t.WordsPerLine <= 0 {
		return ErrValidation{Field: "words_per_line", Message: "words per line must be positive"}
	}
	return nil
}

// ChunkBounds returns the effective minimum and maximum words per line.
func (t *StyleTemplate) ChunkBounds() (int, int) {
	if t.VariableChunks {
		return t.MinWordsPerLine, t.MaxWordsPerLine
	}
	return t.WordsPerLine, t.WordsPerLine
}

// ApplyOverride merges a partial JSON template override into a copy of the
// template. Only fields present in the JSON change; the merged result is
// validated before being returned.
func (t StyleTemplate) ApplyOverride(raw string) (StyleTemplate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return t, nil
	}
	merged := t
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return t, fmt.Errorf("parsing template override: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return t, fmt.Errorf("merged template invalid: %w", err)
	}
	return merged, nil
}
