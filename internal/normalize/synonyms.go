package normalize

import (
	_ "embed"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonyms []byte

// SynonymTable maps variant spellings of Dutch city and municipality names to
// their canonical form. It is immutable after construction and safe for
// concurrent use.
type SynonymTable struct {
	canonical map[string]string
}

// NewSynonymTable builds a table from canonical name -> variants.
// The canonical names themselves are registered as variants so canonicalizing
// an already canonical name is a no-op regardless of case. Entries are applied
// in sorted canonical order and the first mapping of a key wins; a canonical
// name always maps to itself.
func NewSynonymTable(entries map[string][]string) *SynonymTable {
	t := &SynonymTable{canonical: make(map[string]string)}
	names := slices.Sorted(maps.Keys(entries))

	for _, name := range names {
		if canonical := strings.TrimSpace(name); canonical != "" {
			t.add(synonymKey(canonical), canonical)
		}
	}
	for _, name := range names {
		canonical := strings.TrimSpace(name)
		if canonical == "" {
			continue
		}
		for _, v := range entries[name] {
			if k := synonymKey(v); k != "" {
				t.add(k, canonical)
			}
		}
	}
	return t
}

func (t *SynonymTable) add(key, canonical string) {
	if _, ok := t.canonical[key]; !ok {
		t.canonical[key] = canonical
	}
}

// DefaultSynonymTable returns the table embedded in the binary.
func DefaultSynonymTable() *SynonymTable {
	t, err := parseSynonyms(defaultSynonyms)
	if err != nil {
		panic(fmt.Sprintf("normalize: embedded synonym table: %v", err))
	}
	return t
}

// LoadSynonymTable reads a YAML synonym table from path.
func LoadSynonymTable(path string) (*SynonymTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open synonym table: %w", err)
	}
	defer f.Close()
	return ReadSynonymTable(f)
}

// ReadSynonymTable decodes a YAML document of canonical name -> variants.
func ReadSynonymTable(r io.Reader) (*SynonymTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read synonym table: %w", err)
	}
	return parseSynonyms(data)
}

func parseSynonyms(data []byte) (*SynonymTable, error) {
	entries := make(map[string][]string)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode synonym table: %w", err)
	}
	return NewSynonymTable(entries), nil
}

// Canonicalize returns the canonical spelling of name, or name unchanged when
// the table has no entry for it.
func (t *SynonymTable) Canonicalize(name string) string {
	if t == nil || name == "" {
		return name
	}
	if c, ok := t.canonical[synonymKey(name)]; ok {
		return c
	}
	return name
}

// Len returns the number of registered spellings.
func (t *SynonymTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.canonical)
}

func synonymKey(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
