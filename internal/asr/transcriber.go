// Package asr turns an audio file into a word-timed transcript by calling an
// external speech recognition server. The server is a whisper-style HTTP
// service exposing POST /inference; the adapter here owns the request shape,
// the Hindi script policy, and normalization of the response into the
// canonical transcript types.
package asr

import (
	"context"
	"fmt"

	"github.com/jmylchreest/cliparr/internal/models"
)

// LanguageAuto asks the recognizer to detect the spoken language itself.
const LanguageAuto = "auto"

// LanguageHindi triggers the Devanagari script policy.
const LanguageHindi = "hi"

// Transcriber converts one audio file into a transcript with word-level
// timing. Implementations must return segments whose word tokens are
// contained within the segment bounds and monotonically ordered.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (*models.Transcript, error)
}

// TranscriptionError is a fatal recognition failure: the server was
// unreachable, rejected the audio, or produced an empty transcript.
type TranscriptionError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("transcription: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *TranscriptionError) Unwrap() error { return e.Err }

func transcriptionErr(message string, err error) *TranscriptionError {
	return &TranscriptionError{Message: message, Err: err}
}
