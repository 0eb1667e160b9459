package entities

import (
	"errors"
	"time"
)

// Player represents a registered player of the game
type Player struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	Name      string    `json:"name" bson:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// Validate validates the player data
func (p *Player) Validate() error {
	if p.ID == "" {
		return errors.New("player id is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	if len(p.Name) > 64 {
		return errors.New("name must be at most 64 characters")
	}
	return nil
}
