// Package themes holds the static macro-theme table: a lookup from
// canonical question key to coarse theme label. The table is loaded once
// per run from YAML and is immutable afterwards. Unknown question keys
// map to the explicit Unlabeled theme, so schema drift in question
// naming surfaces as data, never as a pipeline failure.
package themes

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/crosspoll/harmonizer/pkg/errors"
)

// Theme is a macro-theme label from the theme vocabulary.
type Theme string

// String returns the theme as a string.
func (t Theme) String() string {
	return string(t)
}

// Unlabeled is the theme assigned to canonical question keys the table
// does not cover.
const Unlabeled Theme = "unlabeled"

//go:embed default_themes.yaml
var defaultThemesYAML []byte

// Table is an immutable question-to-theme lookup.
type Table struct {
	themes map[string]Theme
}

// Load reads a theme table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return t, nil
}

// Embedded returns the default theme table shipped with the binary,
// covering the standard questionnaire.
func Embedded() *Table {
	t, err := Parse(defaultThemesYAML)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here
		// is a build defect.
		panic(fmt.Sprintf("embedded theme table invalid: %v", err))
	}
	return t
}

// Parse decodes a YAML document mapping canonical question keys to theme
// labels. Duplicate keys are a load error rather than a silent
// last-writer-wins, since a duplicated entry usually means two editors
// disagreed about a question's theme.
func Parse(data []byte) (*Table, error) {
	var entries yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(data, &entries, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("parsing theme table: %w", err)
	}

	themes := make(map[string]Theme, len(entries))
	for _, item := range entries {
		key, ok := item.Key.(string)
		if !ok {
			return nil, fmt.Errorf("theme table key %v is not a string", item.Key)
		}
		value, ok := item.Value.(string)
		if !ok || value == "" {
			return nil, fmt.Errorf("theme for question %q is not a non-empty string", key)
		}
		if _, dup := themes[key]; dup {
			return nil, fmt.Errorf("duplicate question key %q in theme table", key)
		}
		themes[key] = Theme(value)
	}
	return &Table{themes: themes}, nil
}

// Lookup returns the theme for a canonical question key, or Unlabeled
// when the table has no entry.
func (t *Table) Lookup(question string) Theme {
	if theme, ok := t.themes[question]; ok {
		return theme
	}
	return Unlabeled
}

// Has reports whether the table covers the question key.
func (t *Table) Has(question string) bool {
	_, ok := t.themes[question]
	return ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.themes)
}

// Questions returns the covered question keys in sorted order.
func (t *Table) Questions() []string {
	keys := make([]string, 0, len(t.themes))
	for k := range t.themes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Themes returns the distinct theme labels in sorted order.
func (t *Table) Themes() []Theme {
	seen := make(map[Theme]bool)
	for _, theme := range t.themes {
		seen[theme] = true
	}
	out := make([]Theme, 0, len(seen))
	for theme := range seen {
		out = append(out, theme)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
