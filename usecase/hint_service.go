package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
	"github.com/satriahrh/sayword/internal/observe"
)

// HintService produces hints, caching them per word. When the primary
// generator fails the fallback is used and its answer is not cached.
type HintService struct {
	primary  repositories.HintGenerator
	fallback repositories.HintGenerator
	provider string
	metrics  *observe.Metrics
	logger   *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewHintService creates a hint service. provider labels the primary in metrics.
func NewHintService(primary, fallback repositories.HintGenerator, provider string, metrics *observe.Metrics, logger *zap.Logger) *HintService {
	return &HintService{
		primary:  primary,
		fallback: fallback,
		provider: provider,
		metrics:  metrics,
		logger:   logger,
		cache:    make(map[string]string),
	}
}

// Hint returns a hint for word
func (s *HintService) Hint(ctx context.Context, word entities.Word) (string, error) {
	key := strings.ToLower(word.Text)

	s.mu.RLock()
	hint, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return hint, nil
	}

	start := time.Now()
	hint, err := s.primary.GenerateHint(ctx, word)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordProviderRequest(ctx, s.provider, "hint", status, time.Since(start).Seconds())

	if err == nil {
		s.mu.Lock()
		s.cache[key] = hint
		s.mu.Unlock()
		return hint, nil
	}

	if s.fallback == nil {
		return "", err
	}
	s.logger.Warn("Hint provider failed, using fallback", zap.String("word", word.Text), zap.Error(err))
	return s.fallback.GenerateHint(ctx, word)
}
