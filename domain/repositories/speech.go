package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/sayword/domain/entities"
)

// Recognizer failures reported by SpeechToText adapters. Adapters wrap
// provider-specific errors with one of these so callers can classify them.
var (
	ErrNoSpeech              = errors.New("no speech detected")
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")
	ErrRecognizerAborted     = errors.New("recognition aborted")
	ErrPermissionDenied      = errors.New("recognizer permission denied")
)

// SpeechToText abstracts cloud speech recognition services
type SpeechToText interface {
	// InitRecognitionStreaming opens a streaming recognition session that
	// reports interim and final hypotheses with ranked alternatives
	InitRecognitionStreaming(ctx context.Context, config AudioConfig) (RecognitionStream, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate      int    `json:"sample_rate"`
	Encoding        string `json:"encoding"`
	Language        string `json:"language"`
	MaxAlternatives int    `json:"max_alternatives"`
}

// RecognitionResult is one event from a recognition stream. Alternatives are
// ranked by confidence, best first. Err is set on the last event of a failed
// stream.
type RecognitionResult struct {
	Alternatives []entities.RecognitionAlternative
	IsFinal      bool
	Err          error
}

// Transcript returns the top-ranked transcript, or "" when there is none
func (r RecognitionResult) Transcript() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// RecognitionStream is a live recognition session fed with raw audio
type RecognitionStream interface {
	// Stream sends an audio chunk to the recognizer
	Stream(data []byte) error
	// Finish signals that no more audio will be sent; results keep flowing
	// until the recognizer commits
	Finish() error
	// Results is closed once the recognizer has nothing more to report
	Results() <-chan RecognitionResult
	// Close releases the session. Safe to call more than once.
	Close() error
}

// TextToSpeech abstracts speech synthesis used to pronounce a word for the player
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
