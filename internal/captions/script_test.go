package captions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "0:00:00.00"},
		{"fraction", 1.25, "0:00:01.25"},
		{"subsecond", 0.1, "0:00:00.10"},
		{"minutes", 125.48, "0:02:05.48"},
		{"hours", 3661.5, "1:01:01.50"},
		{"rounds up into next second", 59.999, "0:01:00.00"},
		{"negative clamps", -2, "0:00:00.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTime(tt.seconds))
		})
	}
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("1:01:01.50")
	require.NoError(t, err)
	assert.InDelta(t, 3661.5, got, 1e-9)

	_, err = ParseTime("bogus")
	assert.Error(t, err)
}

func TestTimeRoundTripPrecision(t *testing.T) {
	// Serialization rounds to centiseconds, so a round trip never drifts
	// more than half a centisecond.
	for _, sec := range []float64{0, 0.123, 1.007, 12.345, 59.994, 61.333, 3599.99} {
		got, err := ParseTime(FormatTime(sec))
		require.NoError(t, err)
		assert.InDelta(t, sec, got, 0.005+1e-9, "seconds=%v", sec)
	}
}

func TestScript_Render(t *testing.T) {
	s := NewScript("test captions")
	s.AddStyle(Style{
		Name:            "Test",
		FontName:        "Arial Black",
		FontSize:        120,
		PrimaryColour:   "&H00FFFFFF",
		SecondaryColour: "&H0000FF00",
		OutlineColour:   "&H00000000",
		BackColour:      "&H99000000",
		Bold:            true,
		BorderStyle:     1,
		Outline:         4,
		Shadow:          2,
		Alignment:       2,
		MarginL:         10,
		MarginR:         10,
		MarginV:         40,
	})
	s.AddEvent(Event{Start: 1, End: 2.5, Style: "Test", Text: `{\an5\pos(540,1600)}HELLO`})

	out := s.Render()
	assert.Contains(t, out, "[Script Info]")
	assert.Contains(t, out, "Title: test captions")
	assert.Contains(t, out, "ScriptType: v4.00+")
	assert.Contains(t, out, "PlayResX: 1080")
	assert.Contains(t, out, "PlayResY: 1920")
	assert.Contains(t, out, "[V4+ Styles]")
	assert.Contains(t, out, "Style: Test,Arial Black,120,&H00FFFFFF,&H0000FF00,&H00000000,&H99000000,-1,0,0,0,100,100,0,0,1,4,2,2,10,10,40,1")
	assert.Contains(t, out, "[Events]")
	assert.Contains(t, out, `Dialogue: 0,0:00:01.00,0:00:02.50,Test,,0,0,0,,{\an5\pos(540,1600)}HELLO`)
}

func TestScript_RenderEventOrderPreserved(t *testing.T) {
	s := NewScript("")
	s.AddEvent(Event{Start: 0, End: 1, Style: "A", Text: "first"})
	s.AddEvent(Event{Start: 0, End: 1, Style: "A", Text: "second"})

	out := s.Render()
	assert.Less(t, strings.Index(out, "first"), strings.Index(out, "second"))
}

func TestStyleColor(t *testing.T) {
	assert.Equal(t, "&H0000FF00", StyleColor("&H0000FF00&"))
	assert.Equal(t, "&H0000FF00", StyleColor("0000FF00"))
	assert.Equal(t, "&H00FF00FF", StyleColor("&h00ff00ff&"))
	assert.Equal(t, "", StyleColor("  "))
}

func TestOverrideColor(t *testing.T) {
	assert.Equal(t, "&H0000FF00&", OverrideColor("&H0000FF00"))
	assert.Equal(t, "&H0000FF00&", OverrideColor("&H0000FF00&"))
	assert.Equal(t, "&HFFFFFF&", OverrideColor("ffffff"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "BeastMode", sanitizeName("Beast,Mode"))
}
