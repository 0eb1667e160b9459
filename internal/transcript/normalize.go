// Package transcript turns raw recognizer output into comparable candidate words.
//
// Every string goes through the same pipeline: Unicode case folding, NFKC
// normalization, removal of punctuation and symbols, then whitespace
// tokenization. The same pipeline is used for target words and homophone
// spellings so that all comparisons happen in one normal form.
package transcript

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/satriahrh/sayword/domain/entities"
)

// Normalize folds case, strips punctuation and splits text into words.
// Punctuation inside a word is dropped rather than split on, so "don't"
// becomes "dont".
func Normalize(text string) []string {
	if text == "" {
		return nil
	}

	// cases.Caser is stateful, one per call
	folded := cases.Fold().String(norm.NFKC.String(text))

	stripped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsPunct(r), unicode.IsSymbol(r), unicode.IsControl(r):
			return -1
		}
		return r
	}, folded)

	return strings.Fields(stripped)
}

// NormalizeWord normalizes a single spelling. Multi-word input is joined with
// a single space.
func NormalizeWord(word string) string {
	return strings.Join(Normalize(word), " ")
}

// CandidateSet is an unordered, duplicate-free set of normalized words
type CandidateSet map[string]struct{}

// Candidates builds the candidate set from the primary transcript and every
// ranked alternative
func Candidates(primary string, alternatives []entities.RecognitionAlternative) CandidateSet {
	set := make(CandidateSet)
	set.AddText(primary)
	for _, alt := range alternatives {
		set.AddText(alt.Transcript)
	}
	return set
}

// AddText normalizes text and adds each resulting word
func (s CandidateSet) AddText(text string) {
	for _, w := range Normalize(text) {
		s[w] = struct{}{}
	}
}

// Contains reports whether the normalized word is in the set
func (s CandidateSet) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Sorted returns the words in lexical order
func (s CandidateSet) Sorted() []string {
	words := make([]string, 0, len(s))
	for w := range s {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
