package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

// ResultRepository is an in-memory implementation of
// repositories.GameResultRepository
type ResultRepository struct {
	mu      sync.RWMutex
	results map[string]*entities.GameResult
	players map[string][]string // player_id -> result ids
}

// NewResultRepository creates an empty result repository
func NewResultRepository() *ResultRepository {
	return &ResultRepository{
		results: make(map[string]*entities.GameResult),
		players: make(map[string][]string),
	}
}

// Create stores a finished game
func (m *ResultRepository) Create(ctx context.Context, result *entities.GameResult) error {
	if result == nil {
		return errors.New("result cannot be nil")
	}
	if err := result.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.results[result.ID]; exists {
		return fmt.Errorf("result %s already exists", result.ID)
	}

	m.results[result.ID] = cloneResult(result)
	m.players[result.PlayerID] = append(m.players[result.PlayerID], result.ID)
	return nil
}

// GetByID returns a copy of the result
func (m *ResultRepository) GetByID(ctx context.Context, id string) (*entities.GameResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, exists := m.results[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return cloneResult(result), nil
}

// ListByPlayer returns the player's results, most recent first
func (m *ResultRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*entities.GameResult, error) {
	if playerID == "" {
		return nil, errors.New("player ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.players[playerID]
	out := make([]*entities.GameResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneResult(m.results[id]))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteOlderThan removes results finished before cutoff
func (m *ResultRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, r := range m.results {
		if !r.FinishedAt.Before(cutoff) {
			continue
		}
		delete(m.results, id)
		m.players[r.PlayerID] = removeID(m.players[r.PlayerID], id)
		if len(m.players[r.PlayerID]) == 0 {
			delete(m.players, r.PlayerID)
		}
		deleted++
	}
	return deleted, nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func cloneResult(r *entities.GameResult) *entities.GameResult {
	c := *r
	c.Log = make([]entities.GameLogEntry, len(r.Log))
	for i, e := range r.Log {
		e.Possibilities = append([]entities.Possibility(nil), e.Possibilities...)
		c.Log[i] = e
	}
	return &c
}
