// Package match decides whether anything the recognizer heard counts as the
// target word.
package match

import (
	"github.com/antzucaro/matchr"

	"github.com/satriahrh/sayword/internal/homophone"
	"github.com/satriahrh/sayword/internal/transcript"
)

// Verdict describes how a candidate was judged
type Verdict string

const (
	VerdictExact     Verdict = "exact"
	VerdictHomophone Verdict = "homophone"
	VerdictMiss      Verdict = "miss"
)

// Result is the outcome of evaluating a candidate set against a target
type Result struct {
	Correct bool
	Verdict Verdict
	// Matched is the candidate that made the answer correct
	Matched string
	// Closest and Similarity describe the nearest miss by Jaro-Winkler
	// similarity. They are diagnostic only.
	Closest    string
	Similarity float64
}

// Evaluator checks candidates for exact or homophone equality
type Evaluator struct {
	table *homophone.Table
}

// NewEvaluator creates an evaluator backed by the homophone table
func NewEvaluator(table *homophone.Table) *Evaluator {
	return &Evaluator{table: table}
}

// IsMatch reports whether any candidate equals the target or is one of its
// homophones
func (e *Evaluator) IsMatch(candidates transcript.CandidateSet, target string) bool {
	return e.Evaluate(candidates, target).Correct
}

// Evaluate checks each candidate for exact equality, then homophone
// equality, and stops at the first correct one.
func (e *Evaluator) Evaluate(candidates transcript.CandidateSet, target string) Result {
	t := transcript.NormalizeWord(target)
	if t == "" || len(candidates) == 0 {
		return Result{Verdict: VerdictMiss}
	}

	// exact spelling wins over a homophone found earlier in iteration order
	if candidates.Contains(t) {
		return Result{Correct: true, Verdict: VerdictExact, Matched: t, Closest: t, Similarity: 1}
	}

	ordered := candidates.Sorted()
	for _, c := range ordered {
		if e.table != nil && e.table.AreHomonyms(c, t) {
			return Result{Correct: true, Verdict: VerdictHomophone, Matched: c, Closest: c, Similarity: 1}
		}
	}

	res := Result{Verdict: VerdictMiss}
	for _, c := range ordered {
		if s := matchr.JaroWinkler(c, t, false); s > res.Similarity {
			res.Closest, res.Similarity = c, s
		}
	}
	return res
}
