package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/models"
)

// Client talks to a whisper-style recognition server. One instance is safe
// for concurrent use; each Transcribe call is a single blocking inference.
type Client struct {
	endpoint   string
	model      string
	beamSize   int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a Client from configuration. The configured timeout caps
// the whole inference round trip; zero means unbounded.
func NewClient(cfg config.ASRConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		beamSize:   cfg.BeamSize,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout)},
		logger:     logger,
	}
}

// inferenceRequest is the parameter set for one server call.
type inferenceRequest struct {
	Language      string
	InitialPrompt string
}

// inferenceResponse mirrors the server's verbose_json payload.
type inferenceResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe runs recognition on the audio file and applies the Hindi script
// policy: a caller-specified "hi" gets the Devanagari prompt up front; an
// auto-detected "hi" triggers one re-transcription with the prompt; either
// way Hindi output is scrubbed of foreign-script hallucinations afterwards.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (*models.Transcript, error) {
	req := inferenceRequest{}
	if language != "" && language != LanguageAuto {
		req.Language = language
		if language == LanguageHindi {
			req.InitialPrompt = DevanagariPrompt
		}
	}

	transcript, err := c.infer(ctx, audioPath, req)
	if err != nil {
		return nil, err
	}

	if transcript.Language == LanguageHindi && req.InitialPrompt == "" {
		c.logger.Info("hindi detected, re-transcribing with script hint",
			slog.String("audio", filepath.Base(audioPath)))
		req.Language = LanguageHindi
		req.InitialPrompt = DevanagariPrompt
		if retry, retryErr := c.infer(ctx, audioPath, req); retryErr == nil {
			transcript = retry
		} else {
			c.logger.Warn("hindi re-transcription failed, keeping first pass",
				slog.Any("error", retryErr))
		}
	}

	if transcript.Language == LanguageHindi {
		transcript.Segments = CleanHindi(transcript.Segments)
	}
	transcript.Segments = models.NormalizeTranscript(transcript.Segments)

	if len(transcript.Segments) == 0 {
		return nil, transcriptionErr("recognizer produced no segments", nil)
	}
	return transcript, nil
}

// infer performs one multipart inference call. The audio file is streamed
// into the request body rather than buffered, since source tracks can run to
// hours.
func (c *Client) infer(ctx context.Context, audioPath string, params inferenceRequest) (*models.Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, transcriptionErr("opening audio", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeInferenceForm(mw, f, params))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/inference", pr)
	if err != nil {
		return nil, transcriptionErr("building request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transcriptionErr("calling recognition server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, transcriptionErr(
			fmt.Sprintf("server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, transcriptionErr("decoding response", err)
	}

	transcript := &models.Transcript{Language: decoded.Language}
	wordCount := 0
	for _, seg := range decoded.Segments {
		segment := models.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			segment.Words = append(segment.Words, models.WordToken{
				Start: w.Start,
				End:   w.End,
				Text:  text,
			})
		}
		wordCount += len(segment.Words)
		transcript.Segments = append(transcript.Segments, segment)
	}

	c.logger.Info("transcription complete",
		slog.String("audio", filepath.Base(audioPath)),
		slog.String("language", decoded.Language),
		slog.Int("segments", len(transcript.Segments)),
		slog.Int("words", wordCount),
		slog.Duration("took", time.Since(start)),
	)
	if wordCount == 0 && len(transcript.Segments) > 0 {
		c.logger.Warn("no word-level timestamps in response, captions may drift")
	}
	return transcript, nil
}

// writeInferenceForm emits the multipart body: the audio file first, then the
// hint fields the server understands.
func (c *Client) writeInferenceForm(mw *multipart.Writer, audio *os.File, params inferenceRequest) error {
	fw, err := mw.CreateFormFile("file", filepath.Base(audio.Name()))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
		"word_timestamps": "true",
	}
	if c.model != "" {
		fields["model"] = c.model
	}
	if c.beamSize > 0 {
		fields["beam_size"] = strconv.Itoa(c.beamSize)
	}
	if params.Language != "" {
		fields["language"] = params.Language
	}
	if params.InitialPrompt != "" {
		fields["initial_prompt"] = params.InitialPrompt
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}
	return mw.Close()
}
