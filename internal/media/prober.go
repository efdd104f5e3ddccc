package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Prober wraps ffprobe for media introspection.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a new prober using the given ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// ProbeResult is the parsed ffprobe JSON output.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container-level information.
type ProbeFormat struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// ProbeStream contains per-stream information.
type ProbeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width,omitempty"`
	Height       int               `json:"height,omitempty"`
	SampleRate   string            `json:"sample_rate,omitempty"`
	Channels     int               `json:"channels,omitempty"`
	Duration     string            `json:"duration,omitempty"`
	BitRate      string            `json:"bit_rate,omitempty"`
	AvgFrameRate string            `json:"avg_frame_rate,omitempty"`
	RFrameRate   string            `json:"r_frame_rate,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// ProbeError indicates an input that ffprobe could not read or that carries
// no usable streams.
type ProbeError struct {
	Path   string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probing %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("probing %s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error { return e.Err }

// Probe runs ffprobe against the given path or URL.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
	}

	// Network inputs get reconnect hints so transient drops don't abort
	// the probe.
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}

	args = append(args, path)

	cmd := exec.CommandContext(probeCtx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, &ProbeError{Path: path, Reason: "ffprobe failed", Err: err}
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, &ProbeError{Path: path, Reason: "parsing ffprobe output", Err: err}
	}

	if len(result.Streams) == 0 {
		return nil, &ProbeError{Path: path, Reason: "no streams found"}
	}

	return &result, nil
}

// Duration returns the container duration in seconds.
func (r *ProbeResult) Duration() float64 {
	if r.Format.Duration == "" {
		return 0
	}
	d, err := strconv.ParseFloat(r.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

// VideoStream returns the first video stream, or nil.
func (r *ProbeResult) VideoStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

// AudioStream returns the first audio stream, or nil.
func (r *ProbeResult) AudioStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return &r.Streams[i]
		}
	}
	return nil
}

// Framerate returns the video framerate in frames per second.
func (s *ProbeStream) Framerate() float64 {
	if fps := parseFramerate(s.AvgFrameRate); fps > 0 {
		return fps
	}
	return parseFramerate(s.RFrameRate)
}

// parseFramerate parses an ffprobe rational like "30000/1001" or "25/1".
func parseFramerate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}

	parts := strings.Split(s, "/")
	if len(parts) == 1 {
		fps, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0
		}
		return fps
	}
	if len(parts) != 2 {
		return 0
	}

	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}
