package mapping

import (
	"sort"
	"strings"

	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

// ConflictMarker renders the explicit conflict cell written when raw
// columns mapped to one canonical key disagree on a row's value. Silent
// precedence here would mask a data-quality bug, so every distinct value
// is kept visible in the data itself.
func ConflictMarker(values ...string) string {
	return "!CONFLICT(" + strings.Join(values, "|") + ")"
}

// Report describes what one apply pass did to the registry: columns
// renamed, columns merged after colliding on a canonical key, per-row
// merge conflicts, and non-structural columns the mapping did not cover.
// Callers decide whether unmapped columns are fatal or advisory.
type Report struct {
	Kind Kind

	// Renamed counts renames per canonical key across all tables.
	Renamed map[string]int

	// Merged lists canonical keys that absorbed two or more raw columns
	// in at least one table.
	Merged []string

	// Conflicts holds one finding per conflicting row cell.
	Conflicts []*errors.MergeConflictError

	// Unmapped lists non-structural columns of this kind left untouched,
	// sorted.
	Unmapped []string
}

// Apply rewrites every table in the registry, replacing raw keys of the
// mapping's kind with canonical keys and merging columns that collide
// post-mapping. The pass is atomic: replacement tables are built first
// and swapped into the registry only after every table rewrote cleanly,
// so a failure leaves the registry at its last committed state.
//
// An invalid (non-total) mapping is refused outright.
func Apply(reg *tables.Registry, canonical *Canonical, classifier *Classifier) (*Report, error) {
	if err := canonical.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		Kind:    canonical.Kind(),
		Renamed: make(map[string]int),
	}
	unmapped := make(map[string]bool)
	merged := make(map[string]bool)

	rewritten := make(map[tables.Period]*tables.Table, reg.Len())
	for _, t := range reg.Tables() {
		out, err := applyTable(t, canonical, classifier, report, unmapped, merged)
		if err != nil {
			return nil, err
		}
		rewritten[t.Period()] = out
	}

	// Commit point: every table rewrote cleanly.
	for period, t := range rewritten {
		if err := reg.Replace(period, t); err != nil {
			return nil, err
		}
	}

	report.Unmapped = sortedSet(unmapped)
	report.Merged = sortedSet(merged)
	return report, nil
}

// applyTable builds one table's rewritten replacement.
func applyTable(t *tables.Table, canonical *Canonical, classifier *Classifier,
	report *Report, unmapped, merged map[string]bool) (*tables.Table, error) {

	kind := canonical.Kind()

	// Group source columns by output column, preserving first-seen order.
	var outColumns []string
	groups := make(map[string][]string)
	for _, key := range t.Columns() {
		out := key
		if k, ok := classifier.KindOf(key); ok && k == kind {
			if resolved, ok := canonical.Resolve(key); ok {
				out = resolved
				if out != key {
					report.Renamed[out]++
				}
			} else {
				unmapped[key] = true
			}
		}
		if _, seen := groups[out]; !seen {
			outColumns = append(outColumns, out)
		}
		groups[out] = append(groups[out], key)
	}

	result := tables.New(t.Period(), outColumns...)
	for i, row := range t.Rows() {
		outRow := make(tables.Row, len(outColumns))
		for _, out := range outColumns {
			sources := groups[out]
			if len(sources) > 1 {
				merged[out] = true
			}
			value, conflict := mergeCells(row, sources)
			if conflict != nil {
				conflict.Period = string(t.Period())
				conflict.Key = out
				conflict.Row = i
				report.Conflicts = append(report.Conflicts, conflict)
				value = ConflictMarker(conflict.Values...)
			}
			if value != "" {
				outRow[out] = value
			}
		}
		result.Append(outRow)
	}
	return result, nil
}

// mergeCells merges a row's values across the raw columns feeding one
// output column: prefer the non-empty value; two or more distinct
// non-empty values are a conflict carrying every distinct value in
// column order.
func mergeCells(row tables.Row, sources []string) (string, *errors.MergeConflictError) {
	var values []string
	for _, src := range sources {
		v := row.Value(src)
		if v == "" {
			continue
		}
		dup := false
		for _, prev := range values {
			if prev == v {
				dup = true
				break
			}
		}
		if !dup {
			values = append(values, v)
		}
	}
	switch len(values) {
	case 0:
		return "", nil
	case 1:
		return values[0], nil
	}
	return values[0], &errors.MergeConflictError{Left: values[0], Right: values[1], Values: values}
}

// sortedSet flattens a string set into a sorted slice.
func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
