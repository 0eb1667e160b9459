package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

// PlayerService registers and looks up players
type PlayerService struct {
	players repositories.PlayerRepository
	logger  *zap.Logger
}

// NewPlayerService creates a new player service
func NewPlayerService(players repositories.PlayerRepository, logger *zap.Logger) *PlayerService {
	return &PlayerService{players: players, logger: logger}
}

// Register creates a player with a fresh ID
func (s *PlayerService) Register(ctx context.Context, name string) (*entities.Player, error) {
	player := &entities.Player{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}
	if err := player.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.players.Create(ctx, player); err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}

	s.logger.Info("Player registered", zap.String("playerID", player.ID))
	return player, nil
}

// Get returns the player with the given ID
func (s *PlayerService) Get(ctx context.Context, id string) (*entities.Player, error) {
	return s.players.GetByID(ctx, id)
}
