package media

import (
	"log/slog"
	"testing"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToolchain(t *testing.T) *Toolchain {
	t.Helper()
	cfg := config.MediaConfig{
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		CanvasWidth:       1080,
		CanvasHeight:      1920,
		AutoCanvasWidth:   720,
		AutoCanvasHeight:  1280,
		AutoZoom:          3.0,
		FitBlurSigma:      15,
		SquareBlurSigma:   20,
		SquareInsetHeight: 1200,
		SquareRaiseOffset: 100,
	}
	return NewToolchain(cfg, slog.Default())
}

func TestReframeFilter_Fill(t *testing.T) {
	tc := testToolchain(t)

	graph, useComplex, err := tc.reframeFilter(ReframeSpec{Mode: models.LayoutFill})
	require.NoError(t, err)
	assert.False(t, useComplex)
	assert.Equal(t, "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920", graph)
}

func TestReframeFilter_Fit(t *testing.T) {
	tc := testToolchain(t)

	graph, useComplex, err := tc.reframeFilter(ReframeSpec{Mode: models.LayoutFit})
	require.NoError(t, err)
	assert.True(t, useComplex)
	assert.Contains(t, graph, "split=2[bg][fg]")
	assert.Contains(t, graph, "gblur=sigma=15")
	assert.Contains(t, graph, "force_original_aspect_ratio=decrease")
	assert.Contains(t, graph, "overlay=(W-w)/2:(H-h)/2")
}

func TestReframeFilter_Square(t *testing.T) {
	tc := testToolchain(t)

	graph, useComplex, err := tc.reframeFilter(ReframeSpec{Mode: models.LayoutSquare})
	require.NoError(t, err)
	assert.True(t, useComplex)
	assert.Contains(t, graph, "gblur=sigma=20")
	assert.Contains(t, graph, "scale=1080:1200:force_original_aspect_ratio=decrease")
	assert.Contains(t, graph, "overlay=(W-w)/2:(H-h)/2-100")
}

func TestReframeFilter_Auto(t *testing.T) {
	tc := testToolchain(t)

	t.Run("centered face", func(t *testing.T) {
		graph, useComplex, err := tc.reframeFilter(ReframeSpec{
			Mode:         models.LayoutAuto,
			SourceWidth:  1920,
			SourceHeight: 1080,
			FaceX:        960,
			FaceY:        540,
		})
		require.NoError(t, err)
		assert.False(t, useComplex)
		// 1080/3 = 360 high, 360*9/16 = 202 -> 202x360 window centered on
		// (960,540), then scaled to the auto canvas.
		assert.Equal(t, "crop=202:360:858:360,scale=720:1280", graph)
	})

	t.Run("face near edge clamps", func(t *testing.T) {
		graph, _, err := tc.reframeFilter(ReframeSpec{
			Mode:         models.LayoutAuto,
			SourceWidth:  1920,
			SourceHeight: 1080,
			FaceX:        10,
			FaceY:        10,
		})
		require.NoError(t, err)
		assert.Equal(t, "crop=202:360:0:0,scale=720:1280", graph)
	})

	t.Run("zero face falls back to center", func(t *testing.T) {
		graph, _, err := tc.reframeFilter(ReframeSpec{
			Mode:         models.LayoutAuto,
			SourceWidth:  1920,
			SourceHeight: 1080,
		})
		require.NoError(t, err)
		assert.Equal(t, "crop=202:360:858:360,scale=720:1280", graph)
	})

	t.Run("missing dimensions errors", func(t *testing.T) {
		_, _, err := tc.reframeFilter(ReframeSpec{Mode: models.LayoutAuto})
		assert.Error(t, err)
	})
}

func TestReframeFilter_UnknownLayout(t *testing.T) {
	tc := testToolchain(t)
	_, _, err := tc.reframeFilter(ReframeSpec{Mode: "cinema"})
	assert.Error(t, err)
}

func TestSubtitlesFilter_Escaping(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"plain", "/tmp/subs.ass", `subtitles=/tmp/subs.ass`},
		{"colon", "C:/subs.ass", `subtitles=C\:/subs.ass`},
		{"quote", "/tmp/it's.ass", `subtitles=/tmp/it\'s.ass`},
		{"brackets", "/tmp/[job]/s.ass", `subtitles=/tmp/\[job\]/s.ass`},
		{"comma", "/tmp/a,b.ass", `subtitles=/tmp/a\,b.ass`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, subtitlesFilter(tt.path))
		})
	}
}

func TestEvenInt(t *testing.T) {
	assert.Equal(t, 202, evenInt(202.5))
	assert.Equal(t, 202, evenInt(203.0))
	assert.Equal(t, 2, evenInt(1.0))
	assert.Equal(t, 2, evenInt(0))
}

func TestClampFloat(t *testing.T) {
	assert.Equal(t, 5.0, clampFloat(5, 0, 10))
	assert.Equal(t, 0.0, clampFloat(-3, 0, 10))
	assert.Equal(t, 10.0, clampFloat(15, 0, 10))
	assert.Equal(t, 3.0, clampFloat(5, 3, 2), "inverted bounds collapse to lo")
}
