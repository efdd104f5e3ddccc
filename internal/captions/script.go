package captions

import (
	"fmt"
	"math"
	"strings"
)

// Canvas dimensions for vertical short-form output. Every anchor and
// animation coordinate in this package is expressed against this canvas.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920
)

// Style is one ASS V4+ style record. Fields not represented here (scale,
// spacing, rotation, underline, strikeout) serialize with their format
// defaults.
type Style struct {
	Name            string
	FontName        string
	FontSize        int
	PrimaryColour   string
	SecondaryColour string
	OutlineColour   string
	BackColour      string
	Bold            bool
	Italic          bool
	BorderStyle     int
	Outline         int
	Shadow          int
	Alignment       int
	MarginL         int
	MarginR         int
	MarginV         int
}

// Event is a single dialogue line. Start and End are seconds relative to
// the clip; they keep full float64 precision until serialization so that
// callers can verify word alignment without parsing text.
type Event struct {
	Layer int
	Start float64
	End   float64
	Style string
	Text  string
}

// Duration returns the on-screen time of the event in seconds.
func (e Event) Duration() float64 {
	return e.End - e.Start
}

// Script is a complete subtitle document. Recipes append events; the
// document serializes exactly once via Render.
type Script struct {
	Title    string
	PlayResX int
	PlayResY int
	Styles   []Style
	Events   []Event
}

// NewScript returns a script targeting the vertical output canvas.
func NewScript(title string) *Script {
	return &Script{
		Title:    title,
		PlayResX: CanvasWidth,
		PlayResY: CanvasHeight,
	}
}

// AddStyle appends a style record.
func (s *Script) AddStyle(st Style) {
	s.Styles = append(s.Styles, st)
}

// AddEvent appends a dialogue event.
func (s *Script) AddEvent(e Event) {
	s.Events = append(s.Events, e)
}

const (
	stylesFormat = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding"
	eventsFormat = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"
)

// Render serializes the document into ASS text. Events render in append
// order; later events paint over earlier ones within the same layer.
func (s *Script) Render() string {
	var b strings.Builder

	b.WriteString("[Script Info]\n")
	if s.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", s.Title)
	}
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", s.PlayResX)
	fmt.Fprintf(&b, "PlayResY: %d\n", s.PlayResY)
	b.WriteString("\n[V4+ Styles]\n")
	b.WriteString(stylesFormat + "\n")
	for _, st := range s.Styles {
		b.WriteString(st.line() + "\n")
	}
	b.WriteString("\n[Events]\n")
	b.WriteString(eventsFormat + "\n")
	for _, e := range s.Events {
		b.WriteString(e.line() + "\n")
	}
	return b.String()
}

func (st Style) line() string {
	return fmt.Sprintf("Style: %s,%s,%d,%s,%s,%s,%s,%d,%d,0,0,100,100,0,0,%d,%d,%d,%d,%d,%d,%d,1",
		sanitizeName(st.Name), st.FontName, st.FontSize,
		StyleColor(st.PrimaryColour), StyleColor(st.SecondaryColour),
		StyleColor(st.OutlineColour), StyleColor(st.BackColour),
		assBool(st.Bold), assBool(st.Italic),
		st.BorderStyle, st.Outline, st.Shadow,
		st.Alignment, st.MarginL, st.MarginR, st.MarginV)
}

func (e Event) line() string {
	return fmt.Sprintf("Dialogue: %d,%s,%s,%s,,0,0,0,,%s",
		e.Layer, FormatTime(e.Start), FormatTime(e.End), sanitizeName(e.Style), e.Text)
}

// FormatTime renders seconds as ASS time, h:mm:ss.cc. Negative inputs
// clamp to zero; fractions round to the nearest centisecond.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	cs := int64(math.Round(seconds * 100))
	h := cs / 360000
	cs -= h * 360000
	m := cs / 6000
	cs -= m * 6000
	sec := cs / 100
	cs -= sec * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, sec, cs)
}

// ParseTime reads an ASS h:mm:ss.cc timestamp back into seconds.
func ParseTime(s string) (float64, error) {
	var h, m, sec, cs int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d:%d.%d", &h, &m, &sec, &cs); err != nil {
		return 0, fmt.Errorf("parsing ASS time %q: %w", s, err)
	}
	return float64(h)*3600 + float64(m)*60 + float64(sec) + float64(cs)/100, nil
}

// StyleColor normalizes a colour for use in a style record: &HAABBGGRR
// with no trailing ampersand. Empty input stays empty so callers can
// apply their own defaults first.
func StyleColor(c string) string {
	c = trimColor(c)
	if c == "" {
		return ""
	}
	return "&H" + c
}

// OverrideColor normalizes a colour for use inside an override tag, which
// requires the trailing ampersand form &HBBGGRR&.
func OverrideColor(c string) string {
	c = trimColor(c)
	if c == "" {
		return ""
	}
	return "&H" + c + "&"
}

func trimColor(c string) string {
	c = strings.TrimSpace(c)
	c = strings.TrimSuffix(c, "&")
	c = strings.TrimPrefix(c, "&H")
	c = strings.TrimPrefix(c, "&h")
	return strings.ToUpper(c)
}

// assBool renders a boolean in the -1/0 convention style records use.
func assBool(v bool) int {
	if v {
		return -1
	}
	return 0
}

// sanitizeName strips characters that would corrupt a comma-separated
// record line.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, ",", "")
	return strings.ReplaceAll(name, "\n", " ")
}
