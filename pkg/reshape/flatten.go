package reshape

import (
	"sort"
	"strconv"
	"strings"

	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

// ColumnSeparator joins theme and question into a flattened column name.
const ColumnSeparator = "::"

// ColumnName renders the flattened column for a (theme, question) pair.
func ColumnName(theme, question string) string {
	return theme + ColumnSeparator + question
}

// SplitColumn splits a flattened column name back into theme and
// question. ok is false for identity columns.
func SplitColumn(column string) (theme, question string, ok bool) {
	idx := strings.Index(column, ColumnSeparator)
	if idx < 0 {
		return "", "", false
	}
	return column[:idx], column[idx+len(ColumnSeparator):], true
}

// identitySep is an unlikely-in-data separator for identity tuple keys.
const identitySep = "\x1f"

// Flatten pivots a labeled exploded set back into one wide table keyed
// by the identity columns, with one column per distinct (theme,
// question) pair observed in the set. Two exploded rows landing on the
// same (identity, theme, question) cell cannot happen if the explosion
// invariants held, so a collision is raised as a consistency error
// rather than arbitrarily overwritten.
//
// Output rows follow the first appearance of each identity tuple, which
// for a freshly exploded set is the source table's row order. Flattened
// columns are appended in sorted order after the identity columns.
func Flatten(set *Exploded) (*tables.Table, error) {
	columnSet := make(map[string]bool)
	for _, row := range set.Rows {
		columnSet[ColumnName(string(row.Theme), row.Question)] = true
	}
	flatCols := make([]string, 0, len(columnSet))
	for c := range columnSet {
		flatCols = append(flatCols, c)
	}
	sort.Strings(flatCols)

	columns := append(append([]string{}, set.IdentityCols...), flatCols...)
	out := tables.New(set.Period, columns...)

	rowIndex := make(map[string]tables.Row)
	var order []string

	for _, row := range set.Rows {
		key := strings.Join(row.Identity, identitySep)
		outRow, seen := rowIndex[key]
		if !seen {
			outRow = make(tables.Row, len(set.IdentityCols)+len(flatCols))
			for j, col := range set.IdentityCols {
				if row.Identity[j] != "" {
					outRow[col] = row.Identity[j]
				}
			}
			rowIndex[key] = outRow
			order = append(order, key)
		}

		col := ColumnName(string(row.Theme), row.Question)
		if _, taken := outRow[col]; taken {
			return nil, errors.NewFlattenCollisionError(string(set.Period), col,
				strings.Join(row.Identity, ", "))
		}
		outRow[col] = formatRating(row.Rating)
	}

	for _, key := range order {
		out.Append(rowIndex[key])
	}
	return out, nil
}

// formatRating renders a rating value the way it was ingested: integral
// ratings stay integral.
func formatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
