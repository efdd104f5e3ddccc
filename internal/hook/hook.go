// Package hook scores a text span for engagement potential. The score is a
// sum of four signals: curated hook-phrase hits, question form, sentiment
// intensity from an optional classifier, and a bonus for landing near the
// target clip length.
package hook

import (
	"context"
	"strings"

	"github.com/jmylchreest/cliparr/internal/models"
)

// hookPhrases are matched case-insensitively as substrings. Overlapping
// entries ("secret" and "secrets") intentionally both count, weighting
// stronger phrasings higher.
var hookPhrases = []string{
	// Secrets and reveals
	"secret", "secrets", "hidden", "revealed", "expose", "exposed", "truth about",
	"nobody told you", "nobody tells you", "they don't want you to know",

	// Mistakes and problems
	"mistake", "mistakes", "wrong", "error", "problem", "issue", "fail", "failure",
	"biggest mistake", "common mistake", "avoid this",

	// Shock value
	"crazy", "insane", "shocking", "unbelievable", "incredible", "amazing",
	"you won't believe", "mind-blowing", "jaw-dropping",

	// Explanatory hooks
	"this is why", "here's why", "the reason", "because", "how to", "watch this",
	"look at this", "check this out", "pay attention",

	// Urgency
	"right now", "immediately", "before it's too late", "limited time",
	"don't miss", "last chance", "urgent",

	// Emotional triggers
	"love", "hate", "angry", "frustrated", "excited", "scared", "worried",
}

var questionStarters = []string{
	"what", "why", "how", "when", "where", "who", "which", "whose",
	"can you", "do you", "have you", "are you", "will you", "would you",
	"is it", "are they", "did you know",
}

const (
	keywordPoints    = 2.0
	questionPoints   = 2.0
	emotionWeight    = 2.0
	lengthTolerance  = 0.1
	lengthBonusValue = 1.0
)

// Scorer computes engagement scores. The sentiment scorer is optional; a nil
// or failing scorer contributes zero emotion points so that scoring stays
// usable without the classifier service.
type Scorer struct {
	sentiment SentimentScorer
}

// NewScorer builds a Scorer around the given sentiment capability.
func NewScorer(sentiment SentimentScorer) *Scorer {
	if sentiment == nil {
		sentiment = NopSentiment{}
	}
	return &Scorer{sentiment: sentiment}
}

// Score computes the breakdown for one candidate text span. Given a fixed
// sentiment scorer the result is a deterministic function of its inputs.
func (s *Scorer) Score(ctx context.Context, text string, duration, targetLength float64) models.ScoreRecord {
	rec := models.ScoreRecord{
		Keywords: DetectKeywords(text),
		Question: IsQuestionHook(text),
	}

	total := float64(len(rec.Keywords)) * keywordPoints
	if rec.Question {
		total += questionPoints
	}

	if sentiment, err := s.sentiment.Analyze(ctx, text); err == nil {
		rec.Emotion = EmotionIntensity(sentiment)
		total += rec.Emotion * emotionWeight
	}

	rec.LengthBonus = lengthBonus(duration, targetLength)
	total += rec.LengthBonus

	rec.Total = total
	return rec
}

// DetectKeywords returns every hook phrase present in the text, in catalog
// order.
func DetectKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, phrase := range hookPhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}

// IsQuestionHook reports whether the span opens as a question: either an
// interrogative starter or a question mark inside the first sentence.
func IsQuestionHook(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, starter := range questionStarters {
		if strings.HasPrefix(lower, starter) {
			return true
		}
	}
	first, _, _ := strings.Cut(text, ".")
	return strings.Contains(first, "?")
}

// lengthBonus rewards durations within 10% of the target.
func lengthBonus(duration, target float64) float64 {
	if target <= 0 {
		return 0
	}
	diff := duration - target
	if diff < 0 {
		diff = -diff
	}
	if diff <= target*lengthTolerance {
		return lengthBonusValue
	}
	return 0
}
