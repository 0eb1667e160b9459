package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/repositories"
)

// MockTextToSpeech returns the text itself as audio, split into chunks
type MockTextToSpeech struct {
	logger    *zap.Logger
	chunkSize int
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a mock speech synthesizer
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{logger: logger, chunkSize: 4}
}

// ConvertTextToSpeech implements repositories.TextToSpeech
func (m *MockTextToSpeech) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	data := []byte(text)
	audio := make(chan []byte, len(data)/m.chunkSize+1)
	for start := 0; start < len(data); start += m.chunkSize {
		end := min(start+m.chunkSize, len(data))
		audio <- data[start:end]
	}
	close(audio)

	m.logger.Debug("Mock speech generated", zap.String("text", text))
	return audio, nil
}
