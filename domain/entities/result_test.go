package entities

import (
	"testing"
	"time"
)

func sampleLog() []GameLogEntry {
	return []GameLogEntry{
		{Word: "cat", UserAnswer: "hat", IsCorrect: false, AttemptNumber: 1},
		{Word: "cat", UserAnswer: "cat", IsCorrect: true, AttemptNumber: 2},
		{Word: "two", UserAnswer: "too", IsCorrect: true, AttemptNumber: 1},
		{Word: "knight", UserAnswer: SkippedAnswer, IsCorrect: false, AttemptNumber: 1},
	}
}

func TestNewGameResult(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	result := NewGameResult("game-1", "player-1", started, 3, sampleLog())

	if result.ID != "game-1" {
		t.Errorf("Expected ID game-1, got %s", result.ID)
	}

	if result.Status != ResultStatusCompleted {
		t.Errorf("Expected status %s, got %s", ResultStatusCompleted, result.Status)
	}

	if result.Correct != 2 {
		t.Errorf("Expected 2 correct, got %d", result.Correct)
	}

	if result.FirstTry != 1 {
		t.Errorf("Expected 1 first-try answer, got %d", result.FirstTry)
	}

	if result.Skipped != 1 {
		t.Errorf("Expected 1 skip, got %d", result.Skipped)
	}

	if len(result.Log) != 4 {
		t.Errorf("Expected 4 log entries, got %d", len(result.Log))
	}
}

func TestNewGameResultCopiesLog(t *testing.T) {
	log := sampleLog()
	result := NewGameResult("", "player-1", time.Now(), 3, log)

	if result.ID == "" {
		t.Error("Expected a generated ID when none is given")
	}

	log[0].Word = "mutated"
	if result.Log[0].Word != "cat" {
		t.Error("Result log should not alias the caller's slice")
	}
}

func TestAccuracy(t *testing.T) {
	result := NewGameResult("g", "p", time.Now(), 4, sampleLog())
	if got := result.Accuracy(); got != 0.5 {
		t.Errorf("Expected accuracy 0.5, got %f", got)
	}

	empty := NewGameResult("g", "p", time.Now(), 0, nil)
	if got := empty.Accuracy(); got != 0 {
		t.Errorf("Expected accuracy 0 for empty game, got %f", got)
	}
}

func TestResultValidation(t *testing.T) {
	result := NewGameResult("g", "p", time.Now().Add(-time.Second), 1, nil)
	if err := result.Validate(); err != nil {
		t.Errorf("Valid result should not have validation errors, got: %v", err)
	}

	result.PlayerID = ""
	if err := result.Validate(); err == nil {
		t.Error("Result with empty player ID should have validation error")
	}

	result.PlayerID = "p"
	result.Status = ResultStatus("invalid")
	if err := result.Validate(); err == nil {
		t.Error("Result with invalid status should have validation error")
	}

	result.Status = ResultStatusCompleted
	result.FinishedAt = result.StartedAt.Add(-time.Hour)
	if err := result.Validate(); err == nil {
		t.Error("Result finishing before it started should have validation error")
	}
}

func TestWordValidation(t *testing.T) {
	tests := []struct {
		name    string
		word    Word
		wantErr bool
	}{
		{"valid", Word{Text: "cat", Difficulty: DifficultyEasy}, false},
		{"empty text", Word{Difficulty: DifficultyEasy}, true},
		{"bad difficulty", Word{Text: "cat", Difficulty: "impossible"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.word.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
