package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProbeJSON = `{
	"format": {
		"filename": "input.mp4",
		"nb_streams": 2,
		"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
		"duration": "734.500000",
		"size": "104857600",
		"bit_rate": "1142000"
	},
	"streams": [
		{
			"index": 0,
			"codec_name": "h264",
			"codec_type": "video",
			"width": 1920,
			"height": 1080,
			"avg_frame_rate": "30000/1001",
			"r_frame_rate": "30000/1001"
		},
		{
			"index": 1,
			"codec_name": "aac",
			"codec_type": "audio",
			"sample_rate": "48000",
			"channels": 2
		}
	]
}`

func TestProbeResult_Parse(t *testing.T) {
	var result ProbeResult
	require.NoError(t, json.Unmarshal([]byte(sampleProbeJSON), &result))

	assert.InDelta(t, 734.5, result.Duration(), 1e-9)

	video := result.VideoStream()
	require.NotNil(t, video)
	assert.Equal(t, "h264", video.CodecName)
	assert.Equal(t, 1920, video.Width)
	assert.Equal(t, 1080, video.Height)
	assert.InDelta(t, 29.97, video.Framerate(), 0.01)

	audio := result.AudioStream()
	require.NotNil(t, audio)
	assert.Equal(t, "aac", audio.CodecName)
	assert.Equal(t, 2, audio.Channels)
}

func TestProbeResult_NoStreamsOfType(t *testing.T) {
	result := ProbeResult{Streams: []ProbeStream{{CodecType: "audio"}}}
	assert.Nil(t, result.VideoStream())
	assert.NotNil(t, result.AudioStream())
}

func TestProbeResult_DurationMissing(t *testing.T) {
	result := ProbeResult{}
	assert.Equal(t, 0.0, result.Duration())

	result.Format.Duration = "garbage"
	assert.Equal(t, 0.0, result.Duration())
}

func TestParseFramerate(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
	}{
		{"30/1", 30},
		{"25/1", 25},
		{"30000/1001", 29.97},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
		{"30/0", 0},
		{"1/2/3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.expected, parseFramerate(tt.in), 0.01)
		})
	}
}

func TestProbeError_Error(t *testing.T) {
	err := &ProbeError{Path: "in.mp4", Reason: "no streams found"}
	assert.Contains(t, err.Error(), "in.mp4")
	assert.Contains(t, err.Error(), "no streams found")

	wrapped := &ProbeError{Path: "in.mp4", Reason: "ffprobe failed", Err: assert.AnError}
	assert.ErrorIs(t, wrapped, assert.AnError)
}

func TestNewProber_Defaults(t *testing.T) {
	p := NewProber("")
	assert.Equal(t, "ffprobe", p.ffprobePath)
}
