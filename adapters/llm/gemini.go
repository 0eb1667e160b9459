package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/sayword/domain/entities"
)

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 64
	defaultTimeout   = 8 * time.Second
	maxHintLength    = 160
)

const systemPrompt = `You help children practise saying English words out loud.
Given a word, reply with one short example sentence that uses the word.
Keep it under 15 words, friendly, and suitable for young children.
Reply with the sentence only.`

// ErrEmptyHint is returned when the model produced no usable text
var ErrEmptyHint = errors.New("llm: empty hint")

// contentGenerator is the slice of the genai Models service used here
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the hint generator
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiHintGenerator implements repositories.HintGenerator with Gemini
type GeminiHintGenerator struct {
	models  contentGenerator
	logger  *zap.Logger
	model   string
	timeout time.Duration
}

// NewGeminiHintGenerator creates a Gemini client for hint generation
func NewGeminiHintGenerator(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiHintGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiHintGenerator(client.Models, cfg, logger), nil
}

func newGeminiHintGenerator(models contentGenerator, cfg GeminiConfig, logger *zap.Logger) *GeminiHintGenerator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &GeminiHintGenerator{
		models:  models,
		logger:  logger,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// GenerateHint asks the model for an example sentence using word
func (g *GeminiHintGenerator) GenerateHint(ctx context.Context, word entities.Word) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		MaxOutputTokens:   defaultMaxTokens,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
		},
	}
	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf("Word: %s", word.Text), genai.RoleUser),
	}

	response, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Warn("Failed to generate hint", zap.String("word", word.Text), zap.Error(err))
		return "", fmt.Errorf("generate hint: %w", err)
	}

	hint := cleanHint(responseText(response))
	if hint == "" {
		return "", ErrEmptyHint
	}

	g.logger.Debug("Hint generated", zap.String("word", word.Text), zap.String("hint", hint))
	return hint, nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// cleanHint keeps the first line, drops wrapping quotes and caps the length
func cleanHint(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Trim(s, "\"'` ")
	if r := []rune(s); len(r) > maxHintLength {
		s = strings.TrimSpace(string(r[:maxHintLength])) + "..."
	}
	return s
}
