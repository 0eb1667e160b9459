// Package memory holds in-memory repositories. They are the default store
// and back the tests of everything above the storage layer.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

// PlayerRepository is an in-memory implementation of repositories.PlayerRepository
type PlayerRepository struct {
	mu      sync.RWMutex
	players map[string]*entities.Player
}

// NewPlayerRepository creates an empty player repository
func NewPlayerRepository() *PlayerRepository {
	return &PlayerRepository{
		players: make(map[string]*entities.Player),
	}
}

// Create stores the player, generating an ID when empty
func (m *PlayerRepository) Create(ctx context.Context, player *entities.Player) error {
	if player == nil {
		return errors.New("player cannot be nil")
	}

	if player.ID == "" {
		player.ID = uuid.NewString()
	}
	if player.CreatedAt.IsZero() {
		player.CreatedAt = time.Now()
	}
	if err := player.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[player.ID]; exists {
		return fmt.Errorf("player %s already exists", player.ID)
	}

	playerCopy := *player
	m.players[player.ID] = &playerCopy
	return nil
}

// GetByID returns a copy of the player
func (m *PlayerRepository) GetByID(ctx context.Context, id string) (*entities.Player, error) {
	if id == "" {
		return nil, errors.New("player ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	player, exists := m.players[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}

	playerCopy := *player
	return &playerCopy, nil
}
