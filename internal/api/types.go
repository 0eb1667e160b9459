package api

import (
	"time"

	"github.com/satriahrh/sayword/domain/entities"
)

// RegisterPlayerRequest represents the request payload for player registration
type RegisterPlayerRequest struct {
	Name string `json:"name"`
}

// RegisterPlayerResponse carries the new player and a token for the game socket
type RegisterPlayerResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	PlayerID  string    `json:"player_id"`
	Name      string    `json:"name"`
}

// WordsResponse lists the words a game draws from
type WordsResponse struct {
	Words []entities.Word `json:"words"`
	Count int             `json:"count"`
}

// ResultSummary is a finished game without its log
type ResultSummary struct {
	ID         string                `json:"id"`
	Status     entities.ResultStatus `json:"status"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	TotalWords int                   `json:"total_words"`
	Correct    int                   `json:"correct"`
	FirstTry   int                   `json:"first_try"`
	Skipped    int                   `json:"skipped"`
	Accuracy   float64               `json:"accuracy"`
}

// ResultsResponse lists a player's finished games, most recent first
type ResultsResponse struct {
	Results []ResultSummary `json:"results"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func summarize(r *entities.GameResult) ResultSummary {
	return ResultSummary{
		ID:         r.ID,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		TotalWords: r.TotalWords,
		Correct:    r.Correct,
		FirstTry:   r.FirstTry,
		Skipped:    r.Skipped,
		Accuracy:   r.Accuracy(),
	}
}
