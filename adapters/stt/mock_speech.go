package stt

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

// MockSpeechToText answers every stream with scripted transcripts, in turn.
// It lets the cloud listening mode run without Google credentials.
type MockSpeechToText struct {
	logger *zap.Logger

	mu      sync.Mutex
	script  [][]entities.RecognitionAlternative
	next    int
	openErr error
}

// NewMockSpeechToText creates a mock that cycles through script. Each entry
// is the ranked alternatives of one utterance.
func NewMockSpeechToText(logger *zap.Logger, script ...[]entities.RecognitionAlternative) *MockSpeechToText {
	if len(script) == 0 {
		script = [][]entities.RecognitionAlternative{{{Transcript: "hello", Confidence: 0.9}}}
	}
	return &MockSpeechToText{logger: logger, script: script}
}

// FailNextOpen makes the next InitRecognitionStreaming call return err
func (s *MockSpeechToText) FailNextOpen(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// InitRecognitionStreaming implements repositories.SpeechToText
func (s *MockSpeechToText) InitRecognitionStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	s.mu.Lock()
	if err := s.openErr; err != nil {
		s.openErr = nil
		s.mu.Unlock()
		return nil, err
	}
	utterance := s.script[s.next%len(s.script)]
	s.next++
	s.mu.Unlock()

	s.logger.Info("Initializing mock recognition stream",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockRecognitionStream{
		logger:    s.logger,
		utterance: utterance,
		results:   make(chan repositories.RecognitionResult, 4),
	}, nil
}

// MockRecognitionStream reports one interim after the first audio chunk and
// the scripted final after Finish
type MockRecognitionStream struct {
	logger    *zap.Logger
	utterance []entities.RecognitionAlternative

	mu            sync.Mutex
	audioReceived bool
	done          bool
	results       chan repositories.RecognitionResult
}

// Stream implements repositories.RecognitionStream
func (m *MockRecognitionStream) Stream(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return errors.New("stream already finished")
	}
	if len(data) == 0 || m.audioReceived {
		return nil
	}

	m.audioReceived = true
	m.results <- repositories.RecognitionResult{Alternatives: m.utterance[:1]}
	return nil
}

// Finish implements repositories.RecognitionStream
func (m *MockRecognitionStream) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return nil
	}
	m.done = true

	if m.audioReceived {
		m.logger.Info("Ending mock recognition stream", zap.String("result", m.utterance[0].Transcript))
		m.results <- repositories.RecognitionResult{Alternatives: m.utterance, IsFinal: true}
	}
	close(m.results)
	return nil
}

// Results implements repositories.RecognitionStream
func (m *MockRecognitionStream) Results() <-chan repositories.RecognitionResult {
	return m.results
}

// Close implements repositories.RecognitionStream
func (m *MockRecognitionStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.done {
		m.done = true
		close(m.results)
	}
	return nil
}
