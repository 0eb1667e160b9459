package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
	"github.com/satriahrh/sayword/internal/observe"
)

var (
	// ErrInvalidInput is returned when caller-supplied data fails validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when a player reads another player's result
	ErrForbidden = errors.New("forbidden")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ResultService persists and serves finished games
type ResultService struct {
	results repositories.GameResultRepository
	metrics *observe.Metrics
	logger  *zap.Logger
}

// NewResultService creates a new result service
func NewResultService(results repositories.GameResultRepository, metrics *observe.Metrics, logger *zap.Logger) *ResultService {
	return &ResultService{results: results, metrics: metrics, logger: logger}
}

// Record stores a finished game. Games without a player are counted but not stored.
func (s *ResultService) Record(ctx context.Context, result *entities.GameResult) error {
	if result == nil {
		return fmt.Errorf("%w: nil result", ErrInvalidInput)
	}
	s.metrics.RecordGameFinished(ctx, string(result.Status))

	if result.PlayerID == "" {
		s.logger.Debug("Skipping result without player", zap.String("gameID", result.ID))
		return nil
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.results.Create(ctx, result); err != nil {
		s.logger.Error("Failed to store game result",
			zap.String("gameID", result.ID),
			zap.String("playerID", result.PlayerID),
			zap.Error(err))
		return fmt.Errorf("store result: %w", err)
	}

	s.logger.Info("Game result stored",
		zap.String("gameID", result.ID),
		zap.String("playerID", result.PlayerID),
		zap.String("status", string(result.Status)),
		zap.Int("correct", result.Correct),
		zap.Int("totalWords", result.TotalWords))
	return nil
}

// List returns the player's results, most recent first
func (s *ResultService) List(ctx context.Context, playerID string, limit int) ([]*entities.GameResult, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.results.ListByPlayer(ctx, playerID, limit)
}

// Get returns one result, provided it belongs to playerID
func (s *ResultService) Get(ctx context.Context, playerID, id string) (*entities.GameResult, error) {
	result, err := s.results.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.PlayerID != playerID {
		return nil, ErrForbidden
	}
	return result, nil
}
