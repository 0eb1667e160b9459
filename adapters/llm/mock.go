package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
)

var mockTemplates = []string{
	"Can you say %s?",
	"I like the word %s.",
	"Let's read %s together.",
}

// MockHintGenerator returns canned sentences without calling a model
type MockHintGenerator struct {
	logger *zap.Logger
}

// NewMockHintGenerator creates a new mock hint generator
func NewMockHintGenerator(logger *zap.Logger) *MockHintGenerator {
	return &MockHintGenerator{logger: logger}
}

// GenerateHint picks a template by word length so the same word always gets the same hint
func (m *MockHintGenerator) GenerateHint(ctx context.Context, word entities.Word) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hint := fmt.Sprintf(mockTemplates[len(word.Text)%len(mockTemplates)], word.Text)
	m.logger.Debug("Mock hint", zap.String("word", word.Text))
	return hint, nil
}
