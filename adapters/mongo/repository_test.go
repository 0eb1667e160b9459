package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

// TestRepositories_Integration requires a running MongoDB instance and is
// skipped when MONGODB_URI is not set
func TestRepositories_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	client, err := NewClient(ctx, ClientConfig{URI: mongoURI, Database: "sayword_test"}, logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)
	defer client.Database.Drop(ctx)

	results, err := NewResultRepository(ctx, client.Database, logger)
	if err != nil {
		t.Fatalf("NewResultRepository() error = %v", err)
	}
	players := NewPlayerRepository(client.Database, logger)

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	t.Run("Player", func(t *testing.T) {
		player := &entities.Player{Name: "Ada"}
		if err := players.Create(ctx, player); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got, err := players.GetByID(ctx, player.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Name != "Ada" {
			t.Errorf("Expected Ada, got %s", got.Name)
		}
	})

	t.Run("Results", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		old := &entities.GameResult{
			ID: "old", PlayerID: "p1", Status: entities.ResultStatusCompleted,
			StartedAt: now.Add(-49 * time.Hour), FinishedAt: now.Add(-48 * time.Hour), TotalWords: 1,
		}
		recent := &entities.GameResult{
			ID: "recent", PlayerID: "p1", Status: entities.ResultStatusCompleted,
			StartedAt: now.Add(-time.Minute), FinishedAt: now, TotalWords: 1, Correct: 1,
			Log: []entities.GameLogEntry{{ID: "e1", Word: "to", UserAnswer: "too", IsCorrect: true, AttemptNumber: 1}},
		}
		for _, r := range []*entities.GameResult{old, recent} {
			if err := results.Create(ctx, r); err != nil {
				t.Fatalf("Create(%s) error = %v", r.ID, err)
			}
		}

		got, err := results.GetByID(ctx, "recent")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if len(got.Log) != 1 || got.Log[0].UserAnswer != "too" {
			t.Errorf("Unexpected log %+v", got.Log)
		}

		list, err := results.ListByPlayer(ctx, "p1", 10)
		if err != nil {
			t.Fatalf("ListByPlayer() error = %v", err)
		}
		if len(list) != 2 || list[0].ID != "recent" {
			t.Errorf("Expected recent first, got %d results", len(list))
		}

		deleted, err := results.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
		if err != nil || deleted != 1 {
			t.Errorf("DeleteOlderThan() = %d, %v", deleted, err)
		}
		if _, err := results.GetByID(ctx, "old"); !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}
