package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/media"
)

// writeScript writes an executable shell script standing in for an external
// binary.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

// fakeToolchain wires scripted ffmpeg/ffprobe binaries into a toolchain.
func fakeToolchain(t *testing.T, ffmpeg, ffprobe string) *media.Toolchain {
	t.Helper()
	return media.NewToolchain(config.MediaConfig{
		FFmpegPath:     ffmpeg,
		FFprobePath:    ffprobe,
		ProbeTimeout:   config.Duration(10 * time.Second),
		ExtractTimeout: config.Duration(10 * time.Second),
	}, discardLogger())
}

// probe1280x720 is a ffprobe stand-in reporting a landscape video stream.
const probe1280x720 = `#!/bin/sh
cat <<'EOF'
{"streams":[{"index":0,"codec_type":"video","width":1280,"height":720}],"format":{"duration":"10.0"}}
EOF
`

// sampleTwoFrames is a ffmpeg stand-in that writes two frame files into the
// directory of the output pattern, its last argument.
const sampleTwoFrames = `#!/bin/sh
for last; do :; done
dir=$(dirname "$last")
: > "$dir/frame_0001.png"
: > "$dir/frame_0002.png"
`

func TestPickFaceCenter(t *testing.T) {
	left := Detection{X: 100, Y: 80, Width: 200, Height: 200, Confidence: 0.9}   // center (200,180)
	right := Detection{X: 900, Y: 100, Width: 60, Height: 60, Confidence: 0.5}   // center (930,130)
	faint := Detection{X: 300, Y: 300, Width: 50, Height: 50, Confidence: 0.05}  // well below half the best prominence
	twinA := Detection{X: 0, Y: 0, Width: 100, Height: 100, Confidence: 0.8}     // center (50,50)
	twinB := Detection{X: 200, Y: 100, Width: 100, Height: 100, Confidence: 0.8} // center (250,150)

	tests := []struct {
		name       string
		faces      []Detection
		preferLeft bool
		wantX      int
		wantY      int
	}{
		{"single face", []Detection{left}, true, 200, 180},
		{"prefers left half", []Detection{left, right}, true, 200, 180},
		{"prefers right half", []Detection{left, right}, false, 930, 130},
		{"empty preferred half falls back to all", []Detection{right}, true, 930, 130},
		{"averages comparable faces", []Detection{twinA, twinB}, true, 150, 100},
		{"drops faint faces", []Detection{left, faint}, true, 200, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := pickFaceCenter(tt.faces, 1280, tt.preferLeft)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}

func TestAdapter_Detect(t *testing.T) {
	script := writeScript(t, "detector.sh", `#!/bin/sh
echo '[{"x":100,"y":80,"w":200,"h":200,"confidence":0.9},{"x":900,"y":100,"w":60,"h":60,"confidence":0.5}]'
`)
	adapter := NewAdapter(config.VisionConfig{DetectorCommand: script}, nil, discardLogger())

	detections, err := adapter.detect(context.Background(), "frame.png")

	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, 200.0, detections[0].Width)
	assert.Equal(t, 0.9, detections[0].Confidence)
	cx, cy := detections[1].Center()
	assert.Equal(t, 930.0, cx)
	assert.Equal(t, 130.0, cy)
}

func TestAdapter_Detect_PassesArgsAndImage(t *testing.T) {
	argFile := filepath.Join(t.TempDir(), "args.txt")
	script := writeScript(t, "detector.sh", fmt.Sprintf(`#!/bin/sh
printf '%%s' "$*" > %q
echo '[]'
`, argFile))
	adapter := NewAdapter(config.VisionConfig{
		DetectorCommand: script + " --model fast",
	}, nil, discardLogger())

	detections, err := adapter.detect(context.Background(), "/tmp/frame_0001.png")

	require.NoError(t, err)
	assert.Empty(t, detections)
	got, err := os.ReadFile(argFile)
	require.NoError(t, err)
	assert.Equal(t, "--model fast /tmp/frame_0001.png", string(got))
}

func TestAdapter_Detect_Errors(t *testing.T) {
	adapter := func(cmd string) *Adapter {
		return NewAdapter(config.VisionConfig{DetectorCommand: cmd}, nil, discardLogger())
	}

	t.Run("surfaces stderr", func(t *testing.T) {
		script := writeScript(t, "detector.sh", "#!/bin/sh\necho 'model file missing' >&2\nexit 3\n")
		_, err := adapter(script).detect(context.Background(), "frame.png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model file missing")
	})

	t.Run("rejects malformed output", func(t *testing.T) {
		script := writeScript(t, "detector.sh", "#!/bin/sh\necho 'not json'\n")
		_, err := adapter(script).detect(context.Background(), "frame.png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing detector output")
	})
}

func TestFaceCenter_NoDetectorUsesProbedCenter(t *testing.T) {
	ffprobe := writeScript(t, "ffprobe.sh", probe1280x720)
	tools := fakeToolchain(t, "ffmpeg-unused", ffprobe)
	adapter := NewAdapter(config.VisionConfig{}, tools, discardLogger())

	x, y := adapter.FaceCenter(context.Background(), "video.mp4", true)

	assert.Equal(t, 640, x)
	assert.Equal(t, 360, y)
}

func TestFaceCenter_ProbeFailureAssumesLandscape(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-ffprobe")
	tools := fakeToolchain(t, "ffmpeg-unused", missing)
	adapter := NewAdapter(config.VisionConfig{}, tools, discardLogger())

	x, y := adapter.FaceCenter(context.Background(), "video.mp4", true)

	assert.Equal(t, 960, x)
	assert.Equal(t, 540, y)
}

func TestFaceCenter_FullPipeline(t *testing.T) {
	ffmpeg := writeScript(t, "ffmpeg.sh", sampleTwoFrames)
	ffprobe := writeScript(t, "ffprobe.sh", probe1280x720)
	detector := writeScript(t, "detector.sh", `#!/bin/sh
echo '[{"x":100,"y":80,"w":200,"h":200,"confidence":0.9},{"x":900,"y":100,"w":60,"h":60,"confidence":0.5}]'
`)
	tools := fakeToolchain(t, ffmpeg, ffprobe)
	adapter := NewAdapter(config.VisionConfig{
		DetectorCommand: detector,
		FrameStride:     30,
		MaxFrames:       10,
	}, tools, discardLogger())

	x, y := adapter.FaceCenter(context.Background(), "video.mp4", true)
	assert.Equal(t, 200, x)
	assert.Equal(t, 180, y)

	x, y = adapter.FaceCenter(context.Background(), "video.mp4", false)
	assert.Equal(t, 930, x)
	assert.Equal(t, 130, y)
}

func TestFaceCenter_NoFacesFallsBackToCenter(t *testing.T) {
	ffmpeg := writeScript(t, "ffmpeg.sh", sampleTwoFrames)
	ffprobe := writeScript(t, "ffprobe.sh", probe1280x720)
	detector := writeScript(t, "detector.sh", "#!/bin/sh\necho '[]'\n")
	tools := fakeToolchain(t, ffmpeg, ffprobe)
	adapter := NewAdapter(config.VisionConfig{DetectorCommand: detector}, tools, discardLogger())

	x, y := adapter.FaceCenter(context.Background(), "video.mp4", true)

	assert.Equal(t, 640, x)
	assert.Equal(t, 360, y)
}

func TestFaceCenter_SampleTimeoutBoundsTheWholePass(t *testing.T) {
	ffmpeg := writeScript(t, "ffmpeg.sh", sampleTwoFrames)
	ffprobe := writeScript(t, "ffprobe.sh", probe1280x720)
	detector := writeScript(t, "detector.sh", "#!/bin/sh\necho '[]'\n")
	tools := fakeToolchain(t, ffmpeg, ffprobe)
	adapter := NewAdapter(config.VisionConfig{
		DetectorCommand: detector,
		SampleTimeout:   config.Duration(time.Nanosecond),
	}, tools, discardLogger())

	x, y := adapter.FaceCenter(context.Background(), "video.mp4", true)

	assert.Equal(t, 960, x, "expired deadline degrades to the landscape fallback center")
	assert.Equal(t, 540, y)
}

func TestDetection_Prominence(t *testing.T) {
	d := Detection{X: 10, Y: 20, Width: 100, Height: 50, Confidence: 0.8}
	assert.Equal(t, 4000.0, d.Prominence())

	cx, cy := d.Center()
	assert.Equal(t, 60.0, cx)
	assert.Equal(t, 45.0, cy)
}
