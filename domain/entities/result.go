package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SkippedAnswer is the user answer recorded when the player skips a word
const SkippedAnswer = "(skipped)"

// MaxAttempts is the number of adjudicated attempts a player gets per word
const MaxAttempts = 2

// ResultStatus represents how a game ended
type ResultStatus string

const (
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusAbandoned ResultStatus = "abandoned"
)

// Possibility is a ranked recognizer hypothesis kept in the log
type Possibility struct {
	Word       string  `json:"word" bson:"word"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// GameLogEntry records one adjudicated attempt or skip
type GameLogEntry struct {
	ID            string        `json:"id" bson:"id"`
	Word          string        `json:"word" bson:"word"`
	UserAnswer    string        `json:"user_answer" bson:"user_answer"`
	IsCorrect     bool          `json:"is_correct" bson:"is_correct"`
	Timestamp     time.Time     `json:"timestamp" bson:"timestamp"`
	Difficulty    Difficulty    `json:"difficulty" bson:"difficulty"`
	AttemptNumber int           `json:"attempt_number" bson:"attempt_number"`
	Possibilities []Possibility `json:"possibilities" bson:"possibilities"`
}

// IsSkip reports whether the entry was produced by a skip rather than speech
func (e GameLogEntry) IsSkip() bool {
	return e.UserAnswer == SkippedAnswer && !e.IsCorrect
}

// GameResult is the frozen outcome of a finished game
type GameResult struct {
	ID         string         `json:"id" bson:"_id"`
	PlayerID   string         `json:"player_id" bson:"player_id"`
	StartedAt  time.Time      `json:"started_at" bson:"started_at"`
	FinishedAt time.Time      `json:"finished_at" bson:"finished_at"`
	Status     ResultStatus   `json:"status" bson:"status"`
	TotalWords int            `json:"total_words" bson:"total_words"`
	Correct    int            `json:"correct" bson:"correct"`
	FirstTry   int            `json:"first_try" bson:"first_try"`
	Skipped    int            `json:"skipped" bson:"skipped"`
	Log        []GameLogEntry `json:"log" bson:"log"`
}

// NewGameResult builds a result from a finished game log
func NewGameResult(gameID, playerID string, startedAt time.Time, totalWords int, log []GameLogEntry) *GameResult {
	if gameID == "" {
		gameID = uuid.NewString()
	}
	r := &GameResult{
		ID:         gameID,
		PlayerID:   playerID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Status:     ResultStatusCompleted,
		TotalWords: totalWords,
		Log:        make([]GameLogEntry, len(log)),
	}
	copy(r.Log, log)
	r.tally()
	return r
}

func (r *GameResult) tally() {
	r.Correct, r.FirstTry, r.Skipped = 0, 0, 0
	for _, e := range r.Log {
		switch {
		case e.IsCorrect:
			r.Correct++
			if e.AttemptNumber == 1 {
				r.FirstTry++
			}
		case e.IsSkip():
			r.Skipped++
		}
	}
}

// Accuracy returns the share of words answered correctly, in [0,1]
func (r *GameResult) Accuracy() float64 {
	if r.TotalWords == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.TotalWords)
}

// Validate validates the result data
func (r *GameResult) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.PlayerID == "" {
		return errors.New("player_id is required")
	}
	if r.Status != ResultStatusCompleted && r.Status != ResultStatusAbandoned {
		return errors.New("invalid result status")
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return errors.New("finished_at must not precede started_at")
	}
	return nil
}
