// Package translate rewrites transcript segments into the caption language a
// job requests. Two paths exist: full translation through an external
// LibreTranslate-compatible service, which keeps segment timing and spreads
// word timing evenly across the translated text, and pure in-process
// romanization for Latin-script tags like "hi-Latn", which transliterates
// Devanagari word by word and keeps the exact recognizer timing.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/version"
	"github.com/jmylchreest/cliparr/pkg/httpclient"
)

// Mode is the caption language handling decided from a job request.
type Mode int

const (
	// ModeKeep leaves captions in the recognized language.
	ModeKeep Mode = iota
	// ModeRomanize transliterates Devanagari to Roman script in-process.
	ModeRomanize
	// ModeTranslate rewrites each segment through the translation service.
	ModeTranslate
)

func (m Mode) String() string {
	switch m {
	case ModeRomanize:
		return "romanize"
	case ModeTranslate:
		return "translate"
	default:
		return "keep"
	}
}

var latinScript = language.MustParseScript("Latn")

// Decide maps a source language, requested caption language, and the
// translate flag onto a handling mode. An explicit Latin script subtag on the
// target ("hi-Latn") always means romanization; translation additionally
// requires the flag so a bare caption_language never triggers paid calls.
func Decide(source, target string, requested bool) Mode {
	target = strings.TrimSpace(target)
	if target == "" {
		return ModeKeep
	}
	if isRomanizationTag(target) {
		return ModeRomanize
	}
	if requested && !strings.EqualFold(target, strings.TrimSpace(source)) {
		return ModeTranslate
	}
	return ModeKeep
}

// isRomanizationTag reports whether the tag carries an explicit Latin script
// subtag. Inferred scripts do not count: "en" resolves to Latn but is a plain
// language choice, not a romanization request.
func isRomanizationTag(tag string) bool {
	t, err := language.Parse(tag)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(tag), "-latn")
	}
	scr, conf := t.Script()
	return conf == language.Exact && scr == latinScript
}

// Translator rewrites text from one language to another.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Captions applies the decided handling to clip-local transcript segments and
// returns the rewritten slice. ModeKeep returns the input untouched.
func Captions(ctx context.Context, tr Translator, segments []models.TranscriptSegment, source, target string, requested bool, logger *slog.Logger) []models.TranscriptSegment {
	if logger == nil {
		logger = slog.Default()
	}
	switch mode := Decide(source, target, requested); mode {
	case ModeRomanize:
		logger.Info("romanizing captions", "source", source, "target", target, "segments", len(segments))
		return RomanizeSegments(segments)
	case ModeTranslate:
		logger.Info("translating captions", "source", source, "target", target, "segments", len(segments))
		return TranslateSegments(ctx, tr, segments, source, target, logger)
	default:
		return segments
	}
}

// TranslateSegments rewrites each segment's text through the translator while
// keeping segment timing. Word-level timing cannot survive a translation, so
// tokens are rebuilt by spreading the translated words evenly across the
// segment window. A segment that fails to translate keeps its original text
// so one bad span never drops captions for the rest of the clip.
func TranslateSegments(ctx context.Context, tr Translator, segments []models.TranscriptSegment, source, target string, logger *slog.Logger) []models.TranscriptSegment {
	if tr == nil || strings.EqualFold(source, target) {
		return segments
	}
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]models.TranscriptSegment, 0, len(segments))
	for _, seg := range segments {
		text, err := tr.Translate(ctx, seg.Text, source, target)
		if err != nil {
			logger.Warn("segment translation failed, keeping original",
				"start", seg.Start,
				"error", err)
			out = append(out, seg)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			out = append(out, seg)
			continue
		}
		seg.Text = text
		seg.Words = RedistributeWords(text, seg.Start, seg.End)
		out = append(out, seg)
	}
	return out
}

// RedistributeWords splits text on whitespace and assigns each word an equal
// share of the [start, end) window. The final word ends exactly at end.
func RedistributeWords(text string, start, end float64) []models.WordToken {
	fields := strings.Fields(text)
	if len(fields) == 0 || end <= start {
		return nil
	}
	per := (end - start) / float64(len(fields))
	words := make([]models.WordToken, len(fields))
	for i, f := range fields {
		words[i] = models.WordToken{
			Start: start + float64(i)*per,
			End:   start + float64(i+1)*per,
			Text:  f,
		}
	}
	words[len(words)-1].End = end
	return words
}

// HTTPTranslator calls a LibreTranslate-compatible endpoint: POST
// {endpoint}/translate with {"q", "source", "target", "format"} answering
// {"translatedText": ...}.
type HTTPTranslator struct {
	endpoint string
	client   *httpclient.Client
}

// NewHTTPTranslator builds the remote adapter, or nil when the service is
// disabled so callers can hand the result straight to Captions.
func NewHTTPTranslator(cfg config.ServiceConfig, logger *slog.Logger) *HTTPTranslator {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil
	}
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// Single attempt per segment: the request body does not replay, and a
	// failed segment falls back to its source text anyway.
	client := httpclient.New(httpclient.Config{
		Timeout:            timeout,
		RetryAttempts:      0,
		CircuitThreshold:   5,
		CircuitTimeout:     30 * time.Second,
		CircuitHalfOpenMax: 1,
		UserAgent:          version.UserAgent(),
		Logger:             logger,
	})
	return &HTTPTranslator{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   client,
	}
}

type translateRequest struct {
	Query  string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

// Translate implements Translator.
func (h *HTTPTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if source == "" {
		source = "auto"
	}

	body, err := json.Marshal(translateRequest{
		Query:  text,
		Source: source,
		Target: target,
		Format: "text",
	})
	if err != nil {
		return "", fmt.Errorf("encoding translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var fail translateResponse
		if err := json.NewDecoder(resp.Body).Decode(&fail); err == nil && fail.Error != "" {
			return "", fmt.Errorf("translate service returned HTTP %d: %s", resp.StatusCode, fail.Error)
		}
		return "", fmt.Errorf("translate service returned HTTP %d", resp.StatusCode)
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding translate response: %w", err)
	}
	return out.TranslatedText, nil
}
