// Package reshape implements the structural reshape of the pipeline:
// the wide-to-long explosion of per-question rating columns, macro-theme
// labeling of the exploded rows, and the long-to-wide flattening back to
// one table per period. Explode and Flatten are inverses over the same
// identity columns, and both defend the invariants that make the
// round-trip exact.
package reshape

import (
	"strconv"

	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/mapping"
	"github.com/crosspoll/harmonizer/pkg/tables"
	"github.com/crosspoll/harmonizer/pkg/themes"
)

// Row is one exploded observation: the source row's identity values, the
// canonical question key, the macro theme (attached by Label), and the
// rating value.
type Row struct {
	// Identity holds the source row's values aligned with the exploded
	// set's identity column order.
	Identity []string

	// Source is the source row's index in its period table, preserved so
	// flattening restores the original row order.
	Source int

	Question string
	Theme    themes.Theme
	Rating   float64
}

// Exploded is one period table's exploded set.
type Exploded struct {
	Period tables.Period

	// IdentityCols is the ordered set of non-question columns of the
	// source table; every Row's Identity aligns with it.
	IdentityCols []string

	Rows []Row
}

// Explode converts a table's wide set of question rating columns into
// long rows, one per non-absent rating. Absent ratings (empty cell or
// missing key) never produce a row, the only filtering in the reshape,
// and a non-numeric non-empty rating is a consistency error naming the
// table, row, and column. Identity column order follows the source
// table's column order.
func Explode(t *tables.Table, classifier *mapping.Classifier) (*Exploded, error) {
	var identityCols, questionCols []string
	for _, key := range t.Columns() {
		if classifier.IsQuestion(key) {
			questionCols = append(questionCols, key)
		} else {
			identityCols = append(identityCols, key)
		}
	}

	out := &Exploded{
		Period:       t.Period(),
		IdentityCols: identityCols,
	}

	for i, row := range t.Rows() {
		identity := make([]string, len(identityCols))
		for j, col := range identityCols {
			identity[j] = row.Value(col)
		}

		for _, q := range questionCols {
			value := row.Value(q)
			if value == "" {
				continue
			}
			rating, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, errors.NewExplosionError(string(t.Period()), q, i,
					"rating "+strconv.Quote(value)+" is not numeric")
			}
			out.Rows = append(out.Rows, Row{
				Identity: identity,
				Source:   i,
				Question: q,
				Rating:   rating,
			})
		}
	}
	return out, nil
}

// Label annotates every exploded row with its macro theme from the
// static theme table. Unknown question keys get themes.Unlabeled; they
// are never dropped and never an error.
func Label(set *Exploded, table *themes.Table) {
	for i := range set.Rows {
		set.Rows[i].Theme = table.Lookup(set.Rows[i].Question)
	}
}
