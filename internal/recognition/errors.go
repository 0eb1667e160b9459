package recognition

import (
	"context"
	"errors"

	"github.com/satriahrh/sayword/domain/repositories"
)

// ErrorKind classifies why a listening session was aborted
type ErrorKind string

const (
	ErrorPermissionDenied  ErrorKind = "permission_denied"
	ErrorNoMicrophone      ErrorKind = "no_microphone"
	ErrorNoSpeechDetected  ErrorKind = "no_speech"
	ErrorNetwork           ErrorKind = "network"
	ErrorRecognizerAborted ErrorKind = "aborted"
	ErrorUnrecognized      ErrorKind = "unrecognized"
)

var messages = map[ErrorKind]string{
	ErrorPermissionDenied:  "Microphone access was denied. Allow microphone access and tap to try again.",
	ErrorNoMicrophone:      "No microphone was found. Connect a microphone and tap to try again.",
	ErrorNoSpeechDetected:  "We didn't hear anything. Tap to try again.",
	ErrorNetwork:           "The speech service could not be reached. Check your connection and tap to try again.",
	ErrorRecognizerAborted: "Listening was interrupted. Tap to try again.",
	ErrorUnrecognized:      "Something went wrong while listening. Tap to try again.",
}

// Message returns the player-facing text for the error kind
func (k ErrorKind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return messages[ErrorUnrecognized]
}

// ParseErrorKind maps an error code reported by a browser recognizer to an
// ErrorKind. Both Web Speech API codes and our own kind names are accepted;
// "network" and "aborted" are spelled the same in both.
func ParseErrorKind(code string) ErrorKind {
	switch code {
	case "not-allowed", "service-not-allowed", string(ErrorPermissionDenied):
		return ErrorPermissionDenied
	case "audio-capture", string(ErrorNoMicrophone):
		return ErrorNoMicrophone
	case "no-speech", string(ErrorNoSpeechDetected):
		return ErrorNoSpeechDetected
	case string(ErrorNetwork):
		return ErrorNetwork
	case string(ErrorRecognizerAborted):
		return ErrorRecognizerAborted
	}
	return ErrorUnrecognized
}

// KindFromError classifies an error returned by a SpeechToText adapter
func KindFromError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorUnrecognized
	case errors.Is(err, repositories.ErrNoSpeech):
		return ErrorNoSpeechDetected
	case errors.Is(err, repositories.ErrPermissionDenied):
		return ErrorPermissionDenied
	case errors.Is(err, repositories.ErrRecognizerUnavailable), errors.Is(err, context.DeadlineExceeded):
		return ErrorNetwork
	case errors.Is(err, repositories.ErrRecognizerAborted), errors.Is(err, context.Canceled):
		return ErrorRecognizerAborted
	}
	return ErrorUnrecognized
}
