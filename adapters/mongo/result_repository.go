package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

// ResultRepository stores finished games in the "results" collection
type ResultRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewResultRepository creates the repository and its indexes
func NewResultRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*ResultRepository, error) {
	collection := db.Collection("results")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "player_id", Value: 1}, {Key: "finished_at", Value: -1}}},
		{Keys: bson.D{{Key: "finished_at", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create result indexes: %w", err)
	}

	return &ResultRepository{collection: collection, logger: logger}, nil
}

// Create implements repositories.GameResultRepository
func (r *ResultRepository) Create(ctx context.Context, result *entities.GameResult) error {
	if result == nil {
		return errors.New("result cannot be nil")
	}
	if err := result.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, result); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("result %s already exists: %w", result.ID, err)
		}
		r.logger.Error("Failed to create result", zap.Error(err), zap.String("resultID", result.ID))
		return fmt.Errorf("failed to create result: %w", err)
	}

	r.logger.Debug("Result stored",
		zap.String("resultID", result.ID),
		zap.String("playerID", result.PlayerID))
	return nil
}

// GetByID implements repositories.GameResultRepository
func (r *ResultRepository) GetByID(ctx context.Context, id string) (*entities.GameResult, error) {
	var result entities.GameResult
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get result %s: %w", id, err)
	}
	return &result, nil
}

// ListByPlayer implements repositories.GameResultRepository
func (r *ResultRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*entities.GameResult, error) {
	if playerID == "" {
		return nil, errors.New("player ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "finished_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"player_id": playerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer cursor.Close(ctx)

	results := []*entities.GameResult{}
	for cursor.Next(ctx) {
		var result entities.GameResult
		if err := cursor.Decode(&result); err != nil {
			r.logger.Error("Failed to decode result", zap.Error(err))
			continue
		}
		results = append(results, &result)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return results, nil
}

// DeleteOlderThan implements repositories.GameResultRepository
func (r *ResultRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"finished_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete results: %w", err)
	}
	return res.DeletedCount, nil
}
