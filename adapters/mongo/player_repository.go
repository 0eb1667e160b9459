package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

// PlayerRepository stores players in the "players" collection
type PlayerRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewPlayerRepository creates a new MongoDB player repository
func NewPlayerRepository(db *mongo.Database, logger *zap.Logger) *PlayerRepository {
	return &PlayerRepository{
		collection: db.Collection("players"),
		logger:     logger,
	}
}

// Create implements repositories.PlayerRepository
func (r *PlayerRepository) Create(ctx context.Context, player *entities.Player) error {
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

	if _, err := r.collection.InsertOne(ctx, player); err != nil {
		r.logger.Error("Failed to create player", zap.Error(err), zap.String("playerID", player.ID))
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// GetByID implements repositories.PlayerRepository
func (r *PlayerRepository) GetByID(ctx context.Context, id string) (*entities.Player, error) {
	var player entities.Player
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&player); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player %s: %w", id, err)
	}
	return &player, nil
}
