package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuilder_ArgOrder(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		HideBanner().
		Overwrite().
		SeekInput(12.5).
		Input("in.mp4").
		Duration(30).
		VideoCodec("libx264").
		VideoPreset("fast").
		CRF(23).
		AudioCodec("aac").
		Output("out.mp4").
		Build()

	expected := []string{
		"-loglevel", "error",
		"-hide_banner",
		"-y",
		"-ss", "12.5",
		"-i", "in.mp4",
		"-t", "30",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"out.mp4",
	}
	assert.Equal(t, expected, cmd.Args)
}

func TestCommandBuilder_VideoFilterChain(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("in.mp4").
		VideoFilter("scale=1080:1920").
		VideoFilter("crop=1080:1920").
		Output("out.mp4").
		Build()

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-vf scale=1080:1920,crop=1080:1920")
}

func TestCommandBuilder_FilterComplexWins(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("in.mp4").
		VideoFilter("scale=10:10").
		FilterComplex("[0:v]split=2[a][b]").
		Output("out.mp4").
		Build()

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-filter_complex")
	assert.NotContains(t, joined, "-vf")
}

func TestCommandBuilder_AudioExtraction(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Overwrite().
		Input("in.mp4").
		NoVideo().
		AudioCodec("pcm_s16le").
		AudioRate(16000).
		AudioChannels(1).
		Output("out.wav").
		Build()

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-vn")
	assert.Contains(t, joined, "-c:a pcm_s16le")
	assert.Contains(t, joined, "-ar 16000")
	assert.Contains(t, joined, "-ac 1")
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{0, "0"},
		{30, "30"},
		{12.5, "12.5"},
		{0.001, "0.001"},
		{90.25, "90.25"},
		{3600, "3600"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatSeconds(tt.in), "formatSeconds(%v)", tt.in)
	}
}

func TestCommand_Run_CapturesStderr(t *testing.T) {
	script := writeScript(t, `#!/bin/sh
echo "configuration line" >&2
echo "Error: something bad" >&2
exit 1
`)

	cmd := NewCommandBuilder(script).Input("x").Output("y").Build()
	err := cmd.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error: something bad")
	assert.Equal(t, "Error: something bad", cmd.LastStderr())
	assert.Len(t, cmd.StderrLines(), 2)
}

func TestCommand_Run_Success(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nexit 0\n")

	cmd := NewCommandBuilder(script).Input("x").Output("y").Build()
	assert.NoError(t, cmd.Run(context.Background()))
}

func TestCommand_Run_ContextCancellation(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nsleep 10\n")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := NewCommandBuilder(script).Input("x").Output("y").Build()
	cmd.ReapDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run(ctx)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
	assert.Less(t, elapsed, 5*time.Second, "killed process should be reaped promptly")
}

func TestCommand_ParseProgress(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("x").Output("y").Build()

	progressCh := make(chan Progress, 16)
	input := strings.NewReader(
		"frame=  120 fps= 30 q=28.0 size=    1024 time=00:00:04.50 bitrate= 950.1kbits/s speed=1.5x\n")

	cmd.parseProgress(input, progressCh)
	close(progressCh)

	var last Progress
	for p := range progressCh {
		last = p
	}

	assert.Equal(t, int64(120), last.Frame)
	assert.Equal(t, 30.0, last.FPS)
	assert.Equal(t, 1.5, last.Speed)
	assert.Equal(t, 4*time.Second+500*time.Millisecond, last.Time)
}

func TestCommand_String(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in.mp4").Output("out.mp4").Build()
	s := cmd.String()
	assert.True(t, strings.HasPrefix(s, "ffmpeg "))
	assert.Contains(t, s, "-i in.mp4")
}

// writeScript writes an executable shell script for exercising Command.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}
