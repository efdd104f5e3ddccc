package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/version"
	"github.com/jmylchreest/cliparr/pkg/httpclient"
)

// Sentiment is one classifier verdict: a label plus its confidence in [0,1].
type Sentiment struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"score"`
}

// SentimentScorer classifies the emotional tone of a text span.
type SentimentScorer interface {
	Analyze(ctx context.Context, text string) (Sentiment, error)
}

// NopSentiment disables emotion scoring. Analyze always reports zero
// confidence, which maps to zero emotion points.
type NopSentiment struct{}

// Analyze implements SentimentScorer.
func (NopSentiment) Analyze(context.Context, string) (Sentiment, error) {
	return Sentiment{}, nil
}

// EmotionIntensity maps a classifier verdict to an engagement intensity in
// [0,1]. Strong positive and negative tones both drive engagement; negative
// slightly more. Neutral is discounted, unknown labels pass through raw.
func EmotionIntensity(s Sentiment) float64 {
	c := s.Confidence
	switch strings.ToLower(s.Label) {
	case "positive", "pos":
		return min(1.0, c*1.2)
	case "negative", "neg":
		return min(1.0, c*1.3)
	case "neutral":
		return c * 0.5
	case "":
		return 0
	default:
		return c
	}
}

// HTTPSentiment calls a remote sentiment inference service. The service
// contract is POST {endpoint}/analyze with {"text": ...} answering
// {"label": ..., "score": ...}.
type HTTPSentiment struct {
	endpoint string
	client   *httpclient.Client
}

// NewHTTPSentiment builds the remote adapter. Returns nil when the service
// is disabled so that callers can pass the result straight to NewScorer.
func NewHTTPSentiment(cfg config.ServiceConfig, logger *slog.Logger) *HTTPSentiment {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil
	}
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// Single attempt: a failed verdict just scores zero emotion, and the
	// breaker keeps a down service from stalling every candidate.
	client := httpclient.New(httpclient.Config{
		Timeout:            timeout,
		RetryAttempts:      0,
		CircuitThreshold:   5,
		CircuitTimeout:     30 * time.Second,
		CircuitHalfOpenMax: 1,
		UserAgent:          version.UserAgent(),
		Logger:             logger,
	})
	return &HTTPSentiment{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   client,
	}
}

// Analyze implements SentimentScorer.
func (h *HTTPSentiment) Analyze(ctx context.Context, text string) (Sentiment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Sentiment{}, nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Sentiment{}, fmt.Errorf("encoding sentiment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/analyze", bytes.NewReader(body))
	if err != nil {
		return Sentiment{}, fmt.Errorf("building sentiment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Sentiment{}, fmt.Errorf("sentiment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sentiment{}, fmt.Errorf("sentiment service returned HTTP %d", resp.StatusCode)
	}

	var out Sentiment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Sentiment{}, fmt.Errorf("decoding sentiment response: %w", err)
	}
	return out, nil
}
