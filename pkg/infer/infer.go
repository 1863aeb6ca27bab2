// Package infer assigns a semantic type to every column of a table by
// inspecting its values. Inference is deterministic given the data and
// runs independently per table; it must be re-run after any stage that
// changes the column set, since new columns invalidate prior inference.
package infer

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

// ColumnType is a column's inferred semantic type.
type ColumnType string

// The fixed semantic type vocabulary.
const (
	// Numeric marks continuous measures.
	Numeric ColumnType = "numeric"

	// Categorical marks discrete grouping values, including the period
	// column regardless of its shape.
	Categorical ColumnType = "categorical"

	// Boolean marks two-valued yes/no columns.
	Boolean ColumnType = "boolean"

	// Ordinal marks small integer rating scales.
	Ordinal ColumnType = "ordinal"

	// Identifier marks free-text and high-cardinality columns, and is the
	// default for ambiguous columns.
	Identifier ColumnType = "identifier"
)

// Result carries one table's inferred column types plus any ambiguity
// findings. Findings are advisory: the ambiguous column is typed
// Identifier rather than guessed at.
type Result struct {
	Period   tables.Period
	Types    map[string]ColumnType
	Findings []*errors.TypeAmbiguousError
}

// Type returns a column's inferred type.
func (r *Result) Type(column string) (ColumnType, bool) {
	t, ok := r.Types[column]
	return t, ok
}

// Columns returns the typed columns in sorted order.
func (r *Result) Columns() []string {
	out := make([]string, 0, len(r.Types))
	for c := range r.Types {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// booleanLexicon covers the tokens a boolean column may hold.
var booleanLexicon = map[string]bool{
	"true": true, "false": true,
	"yes": true, "no": true,
	"y": true, "n": true,
	"0": true, "1": true,
}

// Infer assigns a semantic type to every column of the table. The
// period column is always Categorical: a number-shaped year must group
// and filter as a discrete category, never as a continuous measure, and
// the override keeps its classification consistent across every table
// that is later compared or grouped.
func Infer(t *tables.Table, periodColumn string) *Result {
	result := &Result{
		Period: t.Period(),
		Types:  make(map[string]ColumnType, len(t.Columns())),
	}

	for _, col := range t.Columns() {
		if col == periodColumn {
			result.Types[col] = Categorical
			continue
		}
		result.Types[col] = inferColumn(col, t, result)
	}
	return result
}

// inferColumn types one column from its non-null values.
func inferColumn(col string, t *tables.Table, result *Result) ColumnType {
	var values []string
	for _, row := range t.Rows() {
		if v := row.Value(col); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return Identifier
	}

	numericCount := 0
	allBoolean := true
	distinct := make(map[string]bool, len(values))
	var nums []float64

	for _, v := range values {
		distinct[v] = true
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			numericCount++
			nums = append(nums, f)
		}
		if !booleanLexicon[strings.ToLower(v)] {
			allBoolean = false
		}
	}

	if allBoolean && len(distinct) <= 2 {
		return Boolean
	}

	switch {
	case numericCount == len(values):
		if isRatingScale(nums, distinct) {
			return Ordinal
		}
		return Numeric

	case numericCount > 0:
		// Mixed numeric and non-numeric values: surfaced, not guessed.
		result.Findings = append(result.Findings,
			errors.NewTypeAmbiguousError(col, numericCount, len(values)-numericCount))
		return Identifier
	}

	if smallDistinct(len(distinct), len(values)) {
		return Categorical
	}
	return Identifier
}

// isRatingScale reports whether an all-numeric column looks like a small
// ordered rating scale: integral values within a narrow span and few
// distinct values.
func isRatingScale(nums []float64, distinct map[string]bool) bool {
	if len(distinct) > constants.OrdinalScaleMax {
		return false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, f := range nums {
		if f != math.Trunc(f) {
			return false
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	return hi-lo < float64(constants.OrdinalScaleMax)
}

// smallDistinct reports whether the distinct-value count is small
// relative to the row count.
func smallDistinct(distinct, total int) bool {
	if distinct > constants.CategoricalAbsoluteCap {
		return false
	}
	if total < 10 {
		// Tiny tables cannot support a ratio test; fall back to the cap.
		return true
	}
	return float64(distinct) <= float64(total)*constants.CategoricalMaxDistinct
}
