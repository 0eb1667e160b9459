// Package homophone holds the groups of spellings that are accepted as the
// same spoken answer.
//
// All spellings are stored in the normal form produced by
// transcript.NormalizeWord, so lookups fold case and ignore punctuation.
// Digit spellings ("2", "4", "8") are ordinary group members.
package homophone

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/sayword/internal/transcript"
)

//go:embed homophones.yaml
var defaultGroups []byte

// Group is an ordered set of interchangeable spellings. The first entry is
// the canonical form.
type Group []string

// Canonical returns the first spelling of the group
func (g Group) Canonical() string {
	if len(g) == 0 {
		return ""
	}
	return g[0]
}

type file struct {
	Groups []Group `yaml:"groups"`
}

// Table answers homophone questions. It is read-only after construction and
// safe for concurrent use.
type Table struct {
	groups []Group
	index  map[string]int
}

// NewTable builds a table from groups. A spelling that appears in more than
// one group stays with the first group it was seen in; later occurrences are
// logged and ignored.
func NewTable(groups []Group, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Table{index: make(map[string]int)}
	for _, raw := range groups {
		var g Group
		for _, spelling := range raw {
			s := transcript.NormalizeWord(spelling)
			if s == "" {
				continue
			}
			if owner, ok := t.index[s]; ok {
				if owner != len(t.groups) {
					logger.Warn("Spelling already belongs to another homophone group",
						zap.String("spelling", s),
						zap.String("group", t.groups[owner].Canonical()))
				}
				continue
			}
			t.index[s] = len(t.groups)
			g = append(g, s)
		}
		if len(g) < 2 {
			// a lone spelling has nothing to be equivalent to
			for _, s := range g {
				delete(t.index, s)
			}
			continue
		}
		t.groups = append(t.groups, g)
	}
	return t
}

// Default returns the table built from the embedded homophone list
func Default(logger *zap.Logger) (*Table, error) {
	groups, err := decode(defaultGroups)
	if err != nil {
		return nil, fmt.Errorf("homophone: embedded list: %w", err)
	}
	return NewTable(groups, logger), nil
}

// Load reads homophone groups from a YAML file at path
func Load(path string, logger *zap.Logger) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("homophone: open %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("homophone: read %q: %w", path, err)
	}
	groups, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("homophone: parse %q: %w", path, err)
	}
	return NewTable(groups, logger), nil
}

func decode(data []byte) ([]Group, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Groups, nil
}

// AreHomonyms reports whether a and b are different spellings of the same
// group. A word is never its own homophone.
func (t *Table) AreHomonyms(a, b string) bool {
	na, nb := transcript.NormalizeWord(a), transcript.NormalizeWord(b)
	if na == "" || na == nb {
		return false
	}
	ga, ok := t.index[na]
	if !ok {
		return false
	}
	gb, ok := t.index[nb]
	return ok && ga == gb
}

// GetHomonyms returns the other spellings in word's group, or nil if the word
// has none
func (t *Table) GetHomonyms(word string) []string {
	w := transcript.NormalizeWord(word)
	gi, ok := t.index[w]
	if !ok {
		return nil
	}
	others := make([]string, 0, len(t.groups[gi])-1)
	for _, s := range t.groups[gi] {
		if s != w {
			others = append(others, s)
		}
	}
	return others
}

// Groups returns a copy of all groups in load order
func (t *Table) Groups() []Group {
	out := make([]Group, len(t.groups))
	for i, g := range t.groups {
		out[i] = append(Group(nil), g...)
	}
	return out
}

// Len returns the number of groups
func (t *Table) Len() int {
	return len(t.groups)
}
