// Package harmonize normalizes sentiment/rating field names to a common
// scheme within each table, before any cross-period key mapping runs.
// Source tables spell their question columns many ways ("Q1", "q 07",
// "Question 3 rating", "trust_score") and this pass collapses them to
// the uniform q-prefixed form the rest of the pipeline classifies on:
// numbered questions become "q<N>", named sentiment fields "q_<name>".
package harmonize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/crosspoll/harmonizer/pkg/tables"
)

var (
	// numberedPattern matches numbered question columns with optional
	// rating/score/sentiment suffix: "Q1", "q 07", "question-3_rating".
	numberedPattern = regexp.MustCompile(`(?i)^q(?:uestion)?[ _-]?0*(\d+)(?:[ _-]?(?:rating|score|sentiment))?$`)

	// suffixedPattern matches named sentiment fields: "trust_score",
	// "satisfaction rating", "morale-sentiment".
	suffixedPattern = regexp.MustCompile(`(?i)^(.+?)[ _-](?:rating|score|sentiment)$`)

	// slugPattern strips everything a column slug cannot carry.
	slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

	// harmonizedPattern matches named keys already in q_<slug> form.
	harmonizedPattern = regexp.MustCompile(`^q_[a-z][a-z0-9_]*$`)
)

// Report lists the renames one harmonize pass performed, per period.
type Report struct {
	Renamed map[tables.Period]map[string]string
}

// Total returns the number of renamed columns across all periods.
func (r *Report) Total() int {
	n := 0
	for _, renames := range r.Renamed {
		n += len(renames)
	}
	return n
}

// Harmonize rewrites every table's rating columns to the common naming
// scheme. The pass is atomic per registry: replacement tables are built
// first and swapped in only after every table harmonized cleanly. Two
// raw columns collapsing to the same harmonized name within one table is
// an error here: the field harmonizer renames, it never merges.
func Harmonize(reg *tables.Registry) (*Report, error) {
	report := &Report{Renamed: make(map[tables.Period]map[string]string)}

	rewritten := make(map[tables.Period]*tables.Table, reg.Len())
	for _, t := range reg.Tables() {
		renames := make(map[string]string)
		seen := make(map[string]string)
		for _, key := range t.Columns() {
			target, ok := FieldName(key)
			if !ok || target == key {
				continue
			}
			if prev, dup := seen[target]; dup {
				return nil, fmt.Errorf("harmonizing period %s: columns %q and %q both normalize to %q",
					t.Period(), prev, key, target)
			}
			if t.HasColumn(target) {
				return nil, fmt.Errorf("harmonizing period %s: column %q already exists, cannot rename %q",
					t.Period(), target, key)
			}
			seen[target] = key
			renames[key] = target
		}

		out := t.Clone()
		for from, to := range renames {
			if err := out.RenameColumn(from, to); err != nil {
				return nil, fmt.Errorf("harmonizing period %s: %w", t.Period(), err)
			}
		}
		rewritten[t.Period()] = out
		if len(renames) > 0 {
			report.Renamed[t.Period()] = renames
		}
	}

	for period, t := range rewritten {
		if err := reg.Replace(period, t); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// FieldName returns the harmonized name for a rating column, or ok=false
// when the key is not a rating field. Already-harmonized keys return
// themselves unchanged.
func FieldName(key string) (string, bool) {
	if harmonizedPattern.MatchString(key) {
		return key, true
	}
	if m := numberedPattern.FindStringSubmatch(key); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("q%d", n), true
	}
	if m := suffixedPattern.FindStringSubmatch(key); m != nil {
		slug := slugPattern.ReplaceAllString(strings.ToLower(m[1]), "_")
		slug = strings.Trim(slug, "_")
		if slug == "" {
			return "", false
		}
		return "q_" + slug, true
	}
	return "", false
}
