package homophone

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	return NewTable([]Group{
		{"to", "two", "too", "2"},
		{"night", "knight"},
		{"Blue", "blew."},
	}, zaptest.NewLogger(t))
}

func TestAreHomonyms(t *testing.T) {
	table := testTable(t)

	tests := []struct {
		a, b string
		want bool
	}{
		{"to", "too", true},
		{"two", "2", true},
		{"TWO", "too!", true},
		{"blue", "blew", true},
		{"night", "knight", true},
		{"to", "to", false},
		{"Two", "two", false},
		{"night", "two", false},
		{"cat", "hat", false},
		{"cat", "cat", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := table.AreHomonyms(tt.a, tt.b); got != tt.want {
				t.Errorf("AreHomonyms(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAreHomonymsSymmetricAndIrreflexive(t *testing.T) {
	table, err := Default(zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	for _, g := range table.Groups() {
		for _, a := range g {
			if table.AreHomonyms(a, a) {
				t.Errorf("%q should not be its own homophone", a)
			}
			for _, b := range g {
				if a == b {
					continue
				}
				if !table.AreHomonyms(a, b) || !table.AreHomonyms(b, a) {
					t.Errorf("%q and %q should be homophones in both directions", a, b)
				}
			}
		}
	}
}

func TestGetHomonyms(t *testing.T) {
	table := testTable(t)

	if got, want := table.GetHomonyms("Two"), []string{"to", "too", "2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetHomonyms(Two) = %v, want %v", got, want)
	}

	if got := table.GetHomonyms("cat"); len(got) != 0 {
		t.Errorf("Expected no homophones for cat, got %v", got)
	}
}

func TestNewTableDuplicateSpelling(t *testing.T) {
	table := NewTable([]Group{
		{"to", "two"},
		{"too", "two"},
		{"alone"},
	}, zaptest.NewLogger(t))

	if table.Len() != 1 {
		t.Fatalf("Expected 1 group, got %d", table.Len())
	}

	if !table.AreHomonyms("to", "two") {
		t.Error("First group should keep the duplicated spelling")
	}

	if table.AreHomonyms("too", "two") {
		t.Error("Duplicate spelling should not join the second group")
	}

	if got := table.GetHomonyms("alone"); len(got) != 0 {
		t.Errorf("Single-spelling groups should be dropped, got %v", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	content := "groups:\n  - [sea, see]\n  - [\"1\", one, won]\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	table, err := Load(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !table.AreHomonyms("1", "won") {
		t.Error("Expected 1 and won to be homophones")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), zaptest.NewLogger(t)); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	table, err := Default(nil)
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if !table.AreHomonyms("to", "too") {
		t.Error("Embedded list should group to and too")
	}

	if !table.AreHomonyms("there", "they're") {
		t.Error("Embedded list should match contractions after punctuation stripping")
	}
}
