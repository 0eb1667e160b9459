// Package wordlist loads the fixed list of words a game draws from.
package wordlist

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/internal/transcript"
)

//go:embed words.yaml
var defaultWords []byte

// ErrEmpty is returned when a list contains no usable words
var ErrEmpty = errors.New("wordlist: no words")

// ErrNotSingleWord is returned for entries that do not normalize to exactly
// one token, such as "ice cream" or "!!!". Answers are matched token by token.
var ErrNotSingleWord = errors.New("wordlist: not a single word")

type file struct {
	Words []entities.Word `yaml:"words"`
}

// Default returns the embedded word list
func Default() ([]entities.Word, error) {
	words, err := Parse(defaultWords)
	if err != nil {
		return nil, fmt.Errorf("wordlist: embedded list: %w", err)
	}
	return words, nil
}

// Load reads a word list from a YAML file at path
func Load(path string) ([]entities.Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wordlist: read %q: %w", path, err)
	}
	words, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("wordlist: parse %q: %w", path, err)
	}
	return words, nil
}

// LoadOrDefault loads path, or the embedded list when path is empty
func LoadOrDefault(path string) ([]entities.Word, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

// Parse decodes and validates a YAML word list. Words without a difficulty
// default to easy; duplicates and multi-word entries are rejected.
func Parse(data []byte) ([]entities.Word, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(f.Words))
	words := make([]entities.Word, 0, len(f.Words))
	for i, w := range f.Words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Difficulty == "" {
			w.Difficulty = entities.DifficultyEasy
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
		tokens := transcript.Normalize(w.Text)
		if len(tokens) != 1 {
			return nil, fmt.Errorf("word %d %q: %w", i, w.Text, ErrNotSingleWord)
		}
		key := tokens[0]
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("word %d: duplicate %q", i, w.Text)
		}
		seen[key] = struct{}{}
		words = append(words, w)
	}

	if len(words) == 0 {
		return nil, ErrEmpty
	}
	return words, nil
}

// FilterByDifficulty returns the words of the given difficulty. An empty
// difficulty returns all words.
func FilterByDifficulty(words []entities.Word, d entities.Difficulty) []entities.Word {
	if d == "" {
		return words
	}
	var out []entities.Word
	for _, w := range words {
		if w.Difficulty == d {
			out = append(out, w)
		}
	}
	return out
}
