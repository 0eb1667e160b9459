package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/sayword/domain/entities"
)

// ErrNotFound is returned by repositories when the requested record does not exist
var ErrNotFound = errors.New("not found")

// PlayerRepository defines data access methods for players
type PlayerRepository interface {
	Create(ctx context.Context, player *entities.Player) error
	GetByID(ctx context.Context, id string) (*entities.Player, error)
}

// GameResultRepository defines data access methods for finished games
type GameResultRepository interface {
	Create(ctx context.Context, result *entities.GameResult) error
	GetByID(ctx context.Context, id string) (*entities.GameResult, error)
	// ListByPlayer returns the player's results, most recent first
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*entities.GameResult, error)
	// DeleteOlderThan removes results finished before cutoff and returns how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
