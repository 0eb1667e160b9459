package match

import (
	"testing"

	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/internal/homophone"
	"github.com/satriahrh/sayword/internal/transcript"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	table, err := homophone.Default(zap.NewNop())
	if err != nil {
		t.Fatalf("homophone.Default() error = %v", err)
	}
	return NewEvaluator(table)
}

func TestEvaluateScenarios(t *testing.T) {
	e := newEvaluator(t)

	tests := []struct {
		name         string
		target       string
		transcript   string
		alternatives []entities.RecognitionAlternative
		wantCorrect  bool
		wantVerdict  Verdict
		wantMatched  string
	}{
		{
			name:        "homophone utterance",
			target:      "to",
			transcript:  "too",
			wantCorrect: true,
			wantVerdict: VerdictHomophone,
			wantMatched: "too",
		},
		{
			name:   "homophone via top alternative",
			target: "two",
			alternatives: []entities.RecognitionAlternative{
				{Transcript: "too", Confidence: 0.9},
				{Transcript: "blue", Confidence: 0.2},
			},
			wantCorrect: true,
			wantVerdict: VerdictHomophone,
			wantMatched: "too",
		},
		{
			name:        "miss",
			target:      "cat",
			transcript:  "hat",
			wantCorrect: false,
			wantVerdict: VerdictMiss,
		},
		{
			name:        "exact inside sentence",
			target:      "Knight",
			transcript:  "the knight.",
			wantCorrect: true,
			wantVerdict: VerdictExact,
			wantMatched: "knight",
		},
		{
			name:       "exact preferred over homophone",
			target:     "two",
			transcript: "to two",
			alternatives: []entities.RecognitionAlternative{
				{Transcript: "too", Confidence: 0.4},
			},
			wantCorrect: true,
			wantVerdict: VerdictExact,
			wantMatched: "two",
		},
		{
			name:   "low ranked alternative still counts",
			target: "flower",
			alternatives: []entities.RecognitionAlternative{
				{Transcript: "flow her", Confidence: 0.8},
				{Transcript: "flour", Confidence: 0.1},
			},
			wantCorrect: true,
			wantVerdict: VerdictHomophone,
			wantMatched: "flour",
		},
		{
			name:        "digit spelling",
			target:      "eight",
			transcript:  "8",
			wantCorrect: true,
			wantVerdict: VerdictHomophone,
			wantMatched: "8",
		},
		{
			name:        "empty transcript",
			target:      "cat",
			wantCorrect: false,
			wantVerdict: VerdictMiss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := transcript.Candidates(tt.transcript, tt.alternatives)
			got := e.Evaluate(candidates, tt.target)

			if got.Correct != tt.wantCorrect {
				t.Errorf("Correct = %v, want %v", got.Correct, tt.wantCorrect)
			}
			if got.Verdict != tt.wantVerdict {
				t.Errorf("Verdict = %s, want %s", got.Verdict, tt.wantVerdict)
			}
			if tt.wantMatched != "" && got.Matched != tt.wantMatched {
				t.Errorf("Matched = %q, want %q", got.Matched, tt.wantMatched)
			}
			if e.IsMatch(candidates, tt.target) != tt.wantCorrect {
				t.Error("IsMatch disagrees with Evaluate")
			}
		})
	}
}

func TestIsMatchProperties(t *testing.T) {
	e := newEvaluator(t)
	table, _ := homophone.Default(zap.NewNop())

	noise := []string{"apple", "river", "quickly"}

	for _, g := range table.Groups() {
		for _, target := range g {
			withExact := transcript.Candidates(target, nil)
			for _, n := range noise {
				withExact.AddText(n)
			}
			if !e.IsMatch(withExact, target) {
				t.Errorf("candidates containing %q should match", target)
			}

			onlyHomophones := make(transcript.CandidateSet)
			for _, h := range table.GetHomonyms(target) {
				onlyHomophones.AddText(h)
			}
			if !e.IsMatch(onlyHomophones, target) {
				t.Errorf("homophones of %q should match", target)
			}

			disjoint := make(transcript.CandidateSet)
			for _, n := range noise {
				disjoint.AddText(n)
			}
			if e.IsMatch(disjoint, target) {
				t.Errorf("unrelated candidates should not match %q", target)
			}
		}
	}
}

func TestEvaluateClosestMiss(t *testing.T) {
	e := newEvaluator(t)

	got := e.Evaluate(transcript.Candidates("hat dog", nil), "cat")
	if got.Correct {
		t.Fatal("Expected a miss")
	}
	if got.Closest != "hat" {
		t.Errorf("Expected closest candidate hat, got %q", got.Closest)
	}
	if got.Similarity <= 0 || got.Similarity >= 1 {
		t.Errorf("Expected similarity in (0,1), got %f", got.Similarity)
	}
}

func TestEvaluateWithoutTable(t *testing.T) {
	e := NewEvaluator(nil)

	if !e.IsMatch(transcript.Candidates("cat", nil), "cat") {
		t.Error("Exact match should work without a homophone table")
	}
	if e.IsMatch(transcript.Candidates("too", nil), "two") {
		t.Error("Homophones need a table")
	}
}
