package entities

import "errors"

// Difficulty grades how hard a word is to pronounce
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is one of the known difficulty levels
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Word is a single prompt shown to the player. Words are immutable once loaded.
type Word struct {
	Text       string     `json:"text" yaml:"text" bson:"text"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty" bson:"difficulty"`
}

// Validate validates the word data
func (w Word) Validate() error {
	if w.Text == "" {
		return errors.New("word text is required")
	}
	if !w.Difficulty.IsValid() {
		return errors.New("invalid word difficulty")
	}
	return nil
}

// RecognitionAlternative is one ranked hypothesis produced by a speech recognizer
type RecognitionAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}
